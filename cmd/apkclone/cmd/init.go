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
	"os"

	"github.com/apex/log"
	"github.com/apkcloner/apkclone/internal/pipeline/static"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("output", "o", ".apkclone.yml", "Where to write the config file")
	viper.BindPFlag("init.output", initCmd.Flags().Lookup("output"))
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:           "init",
	Aliases:       []string{"i"},
	Short:         "Generates a .apkclone.yml file",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output := viper.GetString("init.output")
		conf, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_EXCL, 0o600)
		if err != nil {
			return err
		}
		defer conf.Close()

		log.Infof("Generating %s file", output)
		if _, err := conf.Write(static.ExampleConfig); err != nil {
			return err
		}

		log.WithField("file", output).Info("config created; please edit accordingly to your needs and pass it with --config")
		return nil
	},
}
