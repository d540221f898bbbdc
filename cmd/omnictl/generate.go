package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"omniwizz/internal/bootstrap"
	"omniwizz/internal/domain"
	"omniwizz/internal/infra"
	"omniwizz/internal/pipeline"
	"omniwizz/internal/providers/vision"
)

var generateCmd = &cobra.Command{
	Use:   "generate <image>",
	Short: "Generate music, tags and images for an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

var (
	generateLanguage  string
	generateModes     string
	generateReference string
)

func init() {
	generateCmd.Flags().StringVarP(&generateLanguage, "language", "l", "en", "Output language (en or zh)")
	generateCmd.Flags().StringVarP(&generateModes, "modes", "m", "", "Comma separated flavors: music,tags,images (default all)")
	generateCmd.Flags().StringVar(&generateReference, "reference-audio", "", "Optional audio clip whose chords steer the lyrics")

	rootCmd.AddCommand(generateCmd)
}

type generateOutput struct {
	Folder string                   `json:"folder"`
	Music  *pipeline.MusicResult    `json:"music,omitempty"`
	Tags   *pipeline.TagsResult     `json:"tags,omitempty"`
	Images *pipeline.ImagesResult   `json:"images,omitempty"`
	Errors map[domain.Flavor]string `json:"errors,omitempty"`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	flavors := domain.ParseFlavors(generateModes)
	if len(flavors) == 0 {
		return fmt.Errorf("no valid mode in %q", generateModes)
	}
	img, err := vision.LoadImage(args[0])
	if err != nil {
		return err
	}

	req := pipeline.GenerateRequest{
		Input: pipeline.Input{
			Image:     img,
			ImageName: args[0],
			Language:  domain.ParseLanguage(generateLanguage),
		},
		Flavors: flavors,
	}
	if generateReference != "" {
		data, err := os.ReadFile(generateReference)
		if err != nil {
			return fmt.Errorf("failed to read reference audio: %w", err)
		}
		req.ReferenceAudio = data
		req.ReferenceType = http.DetectContentType(data)
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

	res, err := services.Pipeline.Generate(ctx, req)
	if err != nil {
		return err
	}
	out := generateOutput{Folder: res.Run, Music: res.Music, Tags: res.Tags, Images: res.Images}
	if len(res.Errors) > 0 {
		out.Errors = map[domain.Flavor]string{}
		for f, ferr := range res.Errors {
			out.Errors[f] = ferr.Error()
		}
	}
	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	return res.Err()
}

func buildServices(ctx context.Context) (*bootstrap.Services, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := infra.NewStderrLogger(cfg.AppEnv)
	return bootstrap.BuildPipeline(ctx, cfg, &logger)
}
