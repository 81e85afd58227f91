// Package config holds the settings of the clone pipeline: which tools to run,
// how to sign, and how long each stage may take.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apex/log"
	yaml "gopkg.in/yaml.v3"
)

const (
	// DecompiledDirName is the intermediate directory inside the output
	// directory. Kept to one character to stay clear of path length limits.
	DecompiledDirName = "d"
	// RebuiltName is the unsigned archive produced by the build stage.
	RebuiltName = "rebuilt.apk"
	// SignedPrefix prefixes the source file name to form the result name.
	SignedPrefix = "signed_"
)

// Config is the pipeline configuration.
type Config struct {
	Apktool   Tool     `yaml:"apktool,omitempty" json:"apktool,omitempty" mapstructure:"apktool" jsonschema:"description=decoder/rebuilder invocation"`
	Jarsigner Tool     `yaml:"jarsigner,omitempty" json:"jarsigner,omitempty" mapstructure:"jarsigner" jsonschema:"description=signer invocation"`
	Sign      Sign     `yaml:"sign,omitempty" json:"sign,omitempty" mapstructure:"sign"`
	Timeouts  Timeouts `yaml:"timeouts,omitempty" json:"timeouts,omitempty" mapstructure:"timeouts"`
}

// Tool is an external command. Args are placed before the stage's own
// arguments, so a jar based tool is configured as
// command: java, args: [-jar, apktool.jar].
type Tool struct {
	Command string   `yaml:"command,omitempty" json:"command,omitempty" mapstructure:"command"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty" mapstructure:"args"`
	Env     []string `yaml:"env,omitempty" json:"env,omitempty" mapstructure:"env" jsonschema:"description=extra KEY=VALUE pairs"`
}

// Sign is the signing identity.
type Sign struct {
	Keystore  string `yaml:"keystore,omitempty" json:"keystore,omitempty" mapstructure:"keystore"`
	StorePass string `yaml:"storepass,omitempty" json:"storepass,omitempty" mapstructure:"storepass"`
	KeyPass   string `yaml:"keypass,omitempty" json:"keypass,omitempty" mapstructure:"keypass"`
	Alias     string `yaml:"alias,omitempty" json:"alias,omitempty" mapstructure:"alias"`
}

// Timeouts are per stage, in seconds.
type Timeouts struct {
	Decompile int `yaml:"decompile,omitempty" json:"decompile,omitempty" mapstructure:"decompile" jsonschema:"minimum=1,default=600"`
	Build     int `yaml:"build,omitempty" json:"build,omitempty" mapstructure:"build" jsonschema:"minimum=1,default=600"`
	Sign      int `yaml:"sign,omitempty" json:"sign,omitempty" mapstructure:"sign" jsonschema:"minimum=1,default=300"`
}

// Seconds converts a timeout setting to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Default returns the configuration used when nothing is overridden: apktool
// 2.11.1 through java and the Android debug keystore.
func Default() Config {
	return Config{
		Apktool: Tool{
			Command: "java",
			Args:    []string{"-Xmx4g", "-Dapktool.threads=4", "-jar", "apktool_2.11.1.jar"},
		},
		Jarsigner: Tool{
			Command: "jarsigner",
		},
		Sign: Sign{
			Keystore:  "debug.keystore",
			StorePass: "android",
			KeyPass:   "android",
			Alias:     "androiddebugkey",
		},
		Timeouts: Timeouts{
			Decompile: 600,
			Build:     600,
			Sign:      300,
		},
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.Apktool.Command == "":
		return fmt.Errorf("apktool.command is required")
	case c.Jarsigner.Command == "":
		return fmt.Errorf("jarsigner.command is required")
	case c.Sign.Keystore == "":
		return fmt.Errorf("sign.keystore is required")
	case c.Sign.Alias == "":
		return fmt.Errorf("sign.alias is required")
	case c.Timeouts.Decompile <= 0, c.Timeouts.Build <= 0, c.Timeouts.Sign <= 0:
		return fmt.Errorf("timeouts must be positive (got decompile=%d build=%d sign=%d)",
			c.Timeouts.Decompile, c.Timeouts.Build, c.Timeouts.Sign)
	}
	return nil
}

// Secrets returns the values that must never be logged.
func (c Config) Secrets() []string {
	var s []string
	for _, v := range []string{c.Sign.StorePass, c.Sign.KeyPass} {
		if v != "" {
			s = append(s, v)
		}
	}
	return s
}

// Load config file.
func Load(file string) (config Config, err error) {
	f, err := os.Open(file) // #nosec
	if err != nil {
		return config, err
	}
	defer f.Close()
	log.WithField("file", file).Debug("loading config file")
	return LoadReader(f)
}

// LoadReader config via io.Reader. Settings absent from the document keep
// their Default value.
func LoadReader(fd io.Reader) (config Config, err error) {
	data, err := io.ReadAll(fd)
	if err != nil {
		return config, err
	}
	config = Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, config.Validate()
}
