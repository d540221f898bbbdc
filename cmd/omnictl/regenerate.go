package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"omniwizz/internal/domain"
	"omniwizz/internal/pipeline"
)

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Regenerate the song of an existing run from an edited prompt and lyrics",
	RunE:  runRegenerate,
}

var (
	regenerateFolder     string
	regeneratePrompt     string
	regenerateLyricsFile string
	regenerateLanguage   string
)

func init() {
	regenerateCmd.Flags().StringVarP(&regenerateFolder, "folder", "f", "", "Run folder under the output directory (required)")
	regenerateCmd.Flags().StringVarP(&regeneratePrompt, "prompt", "p", "", "Music prompt (required)")
	regenerateCmd.Flags().StringVar(&regenerateLyricsFile, "lyrics", "", "Path to a lyrics file; plain lines are aligned to timestamps")
	regenerateCmd.Flags().StringVarP(&regenerateLanguage, "language", "l", "en", "Lyrics language (en or zh)")
	_ = regenerateCmd.MarkFlagRequired("folder")
	_ = regenerateCmd.MarkFlagRequired("prompt")

	rootCmd.AddCommand(regenerateCmd)
}

func runRegenerate(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(regeneratePrompt) == "" {
		return fmt.Errorf("--prompt must not be blank")
	}
	var lyrics string
	if regenerateLyricsFile != "" {
		data, err := os.ReadFile(regenerateLyricsFile)
		if err != nil {
			return fmt.Errorf("failed to read lyrics: %w", err)
		}
		lyrics = string(data)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	services, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer services.Close()

	res, err := services.Pipeline.Regenerate(ctx, pipeline.RegenerateRequest{
		Run:      regenerateFolder,
		Prompt:   regeneratePrompt,
		Lyrics:   lyrics,
		Language: domain.ParseLanguage(regenerateLanguage),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
