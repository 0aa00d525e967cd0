package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/nikogura/cv-generator/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

//nolint:gochecknoglobals // Cobra boilerplate
var verbose bool

//nolint:gochecknoglobals // Cobra boilerplate
var configFile string

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "cv-generator",
	Short: "Generate LaTeX and PDF CVs from free-text details",
	Long: `cv-generator turns a free-text description of a person into a CV by
asking a language model to fill in a LaTeX template, then compiling it to PDF
with pdflatex when it is installed.

Run it as a web service with 'serve', or once from the terminal with 'generate'.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.cv-generator/config.yaml)")
}

// getVerbose returns the verbose flag value.
func getVerbose() (result bool) {
	result = verbose
	return result
}

// getConfigFile returns the config file path.
func getConfigFile() (result string) {
	result = configFile
	return result
}

// newLogger builds the process logger; --verbose lowers the level to debug.
func newLogger(w io.Writer) (logger *slog.Logger) {
	level := slog.LevelInfo
	if getVerbose() {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger
}

// loadConfig reads the configuration named by --config.
func loadConfig() (cfg config.Config, err error) {
	cfg, err = config.Load(getConfigFile())
	if err != nil {
		err = errors.Wrap(err, "failed to load config")
		return cfg, err
	}
	return cfg, err
}

// logFlags records the flags given on the command line at debug level.
func logFlags(logger *slog.Logger, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		logger.Debug("flag set", "name", f.Name, "value", f.Value.String())
	})
}
