/*
Copyright © 2026 The apkclone Authors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/multi"
	"github.com/apkcloner/apkclone/api/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// AppVersion stores the daemon's version
	AppVersion string
	// AppBuildTime stores the daemon's build time
	AppBuildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apkcloned",
	Short: "apkclone daemon",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	types.BuildVersion = AppVersion
	types.BuildTime = AppBuildTime
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)
	cobra.OnInitialize(initConfig)
	// Flags
	var defaultConfg string
	switch runtime.GOOS {
	case "windows":
		defaultConfg = filepath.Join("$AppData", "apkclone", "config.yml")
	default:
		defaultConfg = "/etc/apkclone/config.yml"
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", fmt.Sprintf("config file (default is %s)", defaultConfg))
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON lines")
	rootCmd.PersistentFlags().String("log-file", "", "also append JSON logs to this file")
	viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("log-json"))
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
	// Settings
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// setupLogging installs the log handlers selected by the log.* settings.
func setupLogging() error {
	var handler log.Handler = clihander.Default
	if viper.GetBool("log.json") {
		handler = jsonhandler.New(os.Stderr)
	}
	if path := viper.GetString("log.file"); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		handler = multi.New(handler, jsonhandler.New(f))
	}
	log.SetHandler(handler)
	if viper.GetBool("daemon.debug") {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		switch runtime.GOOS {
		case "windows":
			dir := os.Getenv("AppData")
			if dir == "" {
				log.Error("init config: %AppData% is not defined")
			}
			viper.AddConfigPath(filepath.Join(dir, "apkclone"))
		default:
			viper.AddConfigPath(filepath.Join("/etc", "apkclone"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("apkclone")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.WithField("config", viper.ConfigFileUsed()).Debug("using config file")
	}
}
