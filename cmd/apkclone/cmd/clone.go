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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/apkcloner/apkclone/internal/classify"
	"github.com/apkcloner/apkclone/internal/colors"
	"github.com/apkcloner/apkclone/internal/pipeline"
	"github.com/apkcloner/apkclone/internal/pipeline/config"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
	"github.com/briandowns/spinner"
	"github.com/caarlos0/ctrlc"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(cloneCmd)

	d := config.Default()
	cloneCmd.Flags().StringP("package", "p", "", "New package name (e.g. com.cloned.work)")
	cloneCmd.Flags().StringP("output", "o", "", "Output folder (default is the folder of the APK)")
	cloneCmd.Flags().String("keystore", d.Sign.Keystore, "Keystore to sign with")
	cloneCmd.Flags().String("storepass", d.Sign.StorePass, "Keystore password")
	cloneCmd.Flags().String("keypass", d.Sign.KeyPass, "Key password")
	cloneCmd.Flags().String("alias", d.Sign.Alias, "Key alias")
	cloneCmd.Flags().Int("timeout-decompile", d.Timeouts.Decompile, "Decompile timeout in seconds")
	cloneCmd.Flags().Int("timeout-build", d.Timeouts.Build, "Build timeout in seconds")
	cloneCmd.Flags().Int("timeout-sign", d.Timeouts.Sign, "Sign timeout in seconds")
	viper.BindPFlag("clone.package", cloneCmd.Flags().Lookup("package"))
	viper.BindPFlag("clone.output", cloneCmd.Flags().Lookup("output"))
	viper.BindPFlag("sign.keystore", cloneCmd.Flags().Lookup("keystore"))
	viper.BindPFlag("sign.storepass", cloneCmd.Flags().Lookup("storepass"))
	viper.BindPFlag("sign.keypass", cloneCmd.Flags().Lookup("keypass"))
	viper.BindPFlag("sign.alias", cloneCmd.Flags().Lookup("alias"))
	viper.BindPFlag("timeouts.decompile", cloneCmd.Flags().Lookup("timeout-decompile"))
	viper.BindPFlag("timeouts.build", cloneCmd.Flags().Lookup("timeout-build"))
	viper.BindPFlag("timeouts.sign", cloneCmd.Flags().Lookup("timeout-sign"))

	cloneCmd.MarkZshCompPositionalArgumentFile(1, "*.apk")
}

// cloneCmd represents the clone command
var cloneCmd = &cobra.Command{
	Use:   "clone <APK>",
	Short: "Re-emit an APK under a new package name",
	Example: heredoc.Doc(`
		# Clone an APK next to the original
		❯ apkclone clone app.apk --package com.cloned.work
		# Clone into a folder and sign with a release key
		❯ apkclone clone app.apk -p com.cloned.work -o out/ --keystore release.jks --alias release
		# Give slow machines more time to rebuild
		❯ APKCLONE_TIMEOUTS_BUILD=1800 apkclone clone big.apk -p com.cloned.big`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {

		if Verbose {
			log.SetLevel(log.DebugLevel)
		}
		if viper.IsSet("color") {
			c := viper.GetBool("color")
			colors.Init(&c)
		}

		if _, err := os.Stat(args[0]); os.IsNotExist(err) {
			return fmt.Errorf("file %s does not exist", args[0])
		}
		pkg := viper.GetString("clone.package")
		if pkg == "" {
			return fmt.Errorf("you must supply a --package")
		}
		output := viper.GetString("clone.output")
		if output == "" {
			output = filepath.Dir(args[0])
		}

		conf := config.Default()
		if err := viper.Unmarshal(&conf); err != nil {
			return errors.Wrap(err, "failed to parse config")
		}

		var l log.Interface = log.Log
		var s *spinner.Spinner
		if !Verbose && term.IsTerminal(int(os.Stderr.Fd())) {
			// stage progress goes to the spinner; only problems are logged
			l = &log.Logger{Handler: clihander.Default, Level: log.WarnLevel}
			s = spinner.New(spinner.CharSets[38], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			s.Prefix = colors.Progress().Sprintf("   • Cloning %s... ", filepath.Base(args[0]))
			s.Start()
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var (
			name   string
			runErr error
		)
		done := make(chan struct{})
		err := ctrlc.Default.Run(ctx, func() error {
			defer close(done)
			name, runErr = pipeline.Run(ctx, conf, l, pipeline.Request{
				Source:    args[0],
				Package:   pkg,
				OutputDir: output,
			})
			return nil
		})
		if err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				if s != nil {
					s.Stop()
				}
				log.Warn("Interrupted, cleaning up...")
				cancel()
				<-done
			}
			return err
		}
		if s != nil {
			s.Stop()
		}

		if runErr != nil {
			res := classify.Classify(runErr)
			if f := pipe.AsFailure(runErr); f != nil {
				log.WithFields(log.Fields{
					"stage": f.Stage,
					"kind":  f.Kind,
				}).Debug(f.Error())
			}
			return errors.New(colors.Failed().Sprint(res.Message))
		}

		path := filepath.Join(output, name)
		fi, err := os.Stat(path)
		if err != nil {
			return errors.Wrap(err, "failed to stat signed APK")
		}
		fmt.Printf("%s %s %s\n",
			colors.Done().Sprint("Cloned"),
			colors.Path().Sprint(path),
			colors.Detail().Sprintf("(%s)", humanize.Bytes(uint64(fi.Size()))),
		)
		return nil
	},
}
