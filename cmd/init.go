package cmd

import (
	"fmt"

	"github.com/nikogura/cv-generator/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a starter config file to --config, or to $HOME/.cv-generator/config.yaml.

Edit the API key afterwards, or leave it as is and set GEMINI_API_KEY
(or ANTHROPIC_API_KEY with provider: anthropic) in the environment.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) (err error) {
	path := getConfigFile()
	if path == "" {
		path, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}

	err = config.InitConfig(path)
	if err != nil {
		err = errors.Wrap(err, "failed to write config")
		return err
	}

	fmt.Printf("Config written to %s\n", path)
	return err
}
