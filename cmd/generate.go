package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nikogura/cv-generator/pkg/generator"
	"github.com/nikogura/cv-generator/pkg/input"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var outputDir string

//nolint:gochecknoglobals // Cobra boilerplate
var generateCmd = &cobra.Command{
	Use:   "generate <details-file-or-url>",
	Short: "Generate a CV once from the terminal",
	Long: `Generate a CV from a free-text description of yourself.

The details can be provided as:
- A file path (e.g., me.txt)
- A URL (e.g., https://example.com/about)
- '-' to read from standard input

The LaTeX source, and the PDF when pdflatex is available, are written to a new
directory under --output-dir.

Example:
  cv-generator generate me.txt
  cv-generator generate https://example.com/about --output-dir ~/Documents/cv
  echo "Jane Roe, backend engineer" | cv-generator generate -`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&outputDir, "output-dir", "", "Output directory (default from config temp_dir)")
}

func runGenerate(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	logger := newLogger(os.Stderr)
	logFlags(logger, cmd.Flags())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	details, err := fetchAndLogDetails(ctx, args[0])
	if err != nil {
		return err
	}

	outDir := outputDir
	if outDir == "" {
		outDir = cfg.TempDir
	}

	svc, _, err := buildPipeline(ctx, cfg, outDir, logger)
	if err != nil {
		return err
	}

	// Verbose runs log every state change, so the status line would only garble them.
	var status *progress
	if !getVerbose() {
		status = startProgress(os.Stderr, fmt.Sprintf("Generating CV with %s", svc.Provider()), progressInterval)
	}

	var result generator.Result
	result, err = svc.Generate(ctx, details)
	status.Stop()
	if err != nil {
		err = errors.Wrap(err, "failed to generate CV")
		return err
	}

	fmt.Println("✓ Generation complete")
	fmt.Printf("  LaTeX: %s\n", result.TexFile)
	if result.PDFAvailable {
		fmt.Printf("  PDF:   %s\n", result.PDFFile)
	} else {
		fmt.Println("  PDF:   not produced (pdflatex unavailable or compilation failed)")
	}

	return err
}

func fetchAndLogDetails(ctx context.Context, source string) (details string, err error) {
	if getVerbose() {
		fmt.Printf("Loading details from: %s\n", source)
	}

	details, err = input.Fetch(ctx, source)
	if err != nil && source != input.Stdin {
		// Pages rendered by JavaScript often come back empty; accept a paste instead.
		fmt.Printf("\nWarning: Failed to load details: %v\n", err)
		fmt.Println("\nPlease paste your details below.")
		fmt.Println("When finished, press Ctrl+D (Unix/Mac) or Ctrl+Z then Enter (Windows):")
		fmt.Println()

		details, err = readPasted()
		if err != nil {
			return details, err
		}

		fmt.Printf("\nDetails received (%d characters)\n", len(details))
		return details, err
	}
	if err != nil {
		return details, err
	}

	if getVerbose() {
		fmt.Printf("Details loaded (%d characters)\n", len(details))
	}

	return details, err
}

func readPasted() (text string, err error) {
	scanner := bufio.NewScanner(os.Stdin)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if scanner.Err() != nil {
		err = errors.Wrap(scanner.Err(), "failed to read details from stdin")
		return text, err
	}

	text = strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		err = errors.New("no details provided")
		return text, err
	}

	return text, err
}
