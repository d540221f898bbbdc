package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"omniwizz/internal/domain"
	"omniwizz/internal/textparse"
)

var parseCmd = &cobra.Command{
	Use:       "parse <tags|entities|creative|lrc>",
	Short:     "Parse a saved model reply the way the pipeline does",
	Long:      "Parse reads a model reply from --in (or stdin) and prints what the pipeline would extract from it.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"tags", "entities", "creative", "lrc"},
	RunE:      runParse,
}

var (
	parseInputFile string
	parseLanguage  string
)

func init() {
	parseCmd.Flags().StringVarP(&parseInputFile, "in", "i", "", "Path to the reply text (default stdin)")
	parseCmd.Flags().StringVarP(&parseLanguage, "language", "l", "en", "Reply language for creative headers (en or zh)")

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	var (
		raw []byte
		err error
	)
	if parseInputFile != "" {
		raw, err = os.ReadFile(parseInputFile)
	} else {
		raw, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	text := string(raw)

	out := cmd.OutOrStdout()
	switch args[0] {
	case "tags":
		return printJSON(out, map[string][]string{"tags": textparse.ParseTags(text)})
	case "entities":
		return printJSON(out, map[string][]string{"entities": textparse.ParseEntities(text)})
	case "creative":
		return printJSON(out, textparse.ExtractCreative(text, domain.ParseLanguage(parseLanguage)))
	default:
		lrc := textparse.NormalizeLRC(text)
		if !textparse.HasTimestamps(lrc) {
			lrc = textparse.AlignLyrics(text, textparse.DefaultLyricStart, textparse.DefaultLyricStep)
		}
		_, err := io.WriteString(out, lrc)
		return err
	}
}
