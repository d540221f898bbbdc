// Package pipeline turns one uploaded image into music, mood tags and related
// images. Each flavor runs generate text, postprocess, invoke and persist
// against its own run directory; music may be deferred to a background task
// whose state is recorded in status.json.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omniwizz/internal/domain"
	"omniwizz/internal/infra"
	"omniwizz/internal/providers/chords"
	"omniwizz/internal/providers/image"
	"omniwizz/internal/providers/music"
	"omniwizz/internal/providers/vision"
	"omniwizz/internal/storage"
	"omniwizz/internal/textparse"
)

const (
	defaultImageSuffix      = " abstract art"
	defaultMaxEntities      = 8
	defaultImagesPerEntity  = 1
	defaultImageConcurrency = 4
	defaultLyricsStart      = textparse.DefaultLyricStart
	defaultLyricsStep       = textparse.DefaultLyricStep
	defaultMusicTaskTimeout = 15 * time.Minute
)

// FallbackPolicy decides whether failures switch to stand-in providers.
type FallbackPolicy struct {
	Enabled bool
}

// StandIns are the providers used on the degraded path. Zero fields default
// to the static implementations.
type StandIns struct {
	Vision vision.Generator
	Music  music.Generator
	Images image.Source
}

type Options struct {
	Store    *storage.RunStore
	Vision   vision.Generator
	Music    music.Generator
	Images   image.Source
	Chords   chords.Transcriber
	StandIns StandIns
	Fallback FallbackPolicy

	ImageSuffix      string
	MaxEntities      int
	ImagesPerEntity  int
	ImageConcurrency int
	LyricsStart      time.Duration
	LyricsStep       time.Duration
	MusicTaskTimeout time.Duration

	Logger *infra.Logger
}

// Pipeline orchestrates the providers for each run.
type Pipeline struct {
	store    *storage.RunStore
	vision   vision.Generator
	music    music.Generator
	images   image.Source
	chords   chords.Transcriber
	standIns StandIns
	fallback FallbackPolicy

	imageSuffix      string
	maxEntities      int
	imagesPerEntity  int
	imageConcurrency int
	lyricsStart      time.Duration
	lyricsStep       time.Duration
	musicTaskTimeout time.Duration

	logger *infra.Logger
	tasks  sync.WaitGroup
	// owners holds the names of runs whose music artifacts are being written.
	owners sync.Map
}

func (p *Pipeline) claim(runName string) bool {
	_, taken := p.owners.LoadOrStore(runName, struct{}{})
	return !taken
}

func (p *Pipeline) release(runName string) {
	p.owners.Delete(runName)
}

// New validates opts and applies defaults.
func New(opts Options) (*Pipeline, error) {
	if opts.Store == nil {
		return nil, errors.New("pipeline: run store is required")
	}
	if opts.Vision == nil || opts.Music == nil || opts.Images == nil {
		return nil, errors.New("pipeline: vision, music and image providers are required")
	}
	standIns := opts.StandIns
	if standIns.Vision == nil {
		standIns.Vision = vision.NewStatic()
	}
	if standIns.Music == nil {
		standIns.Music = music.NewStatic()
	}
	if standIns.Images == nil {
		standIns.Images = image.NewStatic()
	}
	p := &Pipeline{
		store:            opts.Store,
		vision:           opts.Vision,
		music:            opts.Music,
		images:           opts.Images,
		chords:           opts.Chords,
		standIns:         standIns,
		fallback:         opts.Fallback,
		imageSuffix:      opts.ImageSuffix,
		maxEntities:      opts.MaxEntities,
		imagesPerEntity:  opts.ImagesPerEntity,
		imageConcurrency: opts.ImageConcurrency,
		lyricsStart:      opts.LyricsStart,
		lyricsStep:       opts.LyricsStep,
		musicTaskTimeout: opts.MusicTaskTimeout,
		logger:           opts.Logger,
	}
	if p.imageSuffix == "" {
		p.imageSuffix = defaultImageSuffix
	}
	if p.maxEntities <= 0 {
		p.maxEntities = defaultMaxEntities
	}
	if p.imagesPerEntity <= 0 {
		p.imagesPerEntity = defaultImagesPerEntity
	}
	if p.imageConcurrency <= 0 {
		p.imageConcurrency = defaultImageConcurrency
	}
	if p.lyricsStart <= 0 {
		p.lyricsStart = defaultLyricsStart
	}
	if p.lyricsStep <= 0 {
		p.lyricsStep = defaultLyricsStep
	}
	if p.musicTaskTimeout <= 0 {
		p.musicTaskTimeout = defaultMusicTaskTimeout
	}
	if p.logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		p.logger = &l
	}
	return p, nil
}

// Store exposes the run store so the delivery layer can serve artifacts.
func (p *Pipeline) Store() *storage.RunStore {
	return p.store
}

// Input is the uploaded image shared by every flavor.
type Input struct {
	Image     vision.Image
	ImageName string
	Language  domain.Language
}

// Outcome records whether the degraded path was taken and why.
type Outcome struct {
	Degraded        bool     `json:"degraded"`
	FallbackReasons []string `json:"fallback_reasons,omitempty"`
}

func (o *Outcome) degrade(reason string) {
	o.Degraded = true
	o.FallbackReasons = append(o.FallbackReasons, reason)
}

// GenerateRequest runs several flavors against one run directory.
type GenerateRequest struct {
	Input
	Flavors        []domain.Flavor
	ReferenceAudio []byte
	ReferenceType  string
	DeferMusic     bool
}

// GenerateResult holds the partial results and per-flavor errors of a run.
type GenerateResult struct {
	Run    string
	Music  *MusicResult
	Tags   *TagsResult
	Images *ImagesResult
	Errors map[domain.Flavor]error
}

// Err joins the per-flavor errors, or returns nil when every flavor succeeded.
func (r *GenerateResult) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	var errs []error
	for _, f := range []domain.Flavor{domain.FlavorMusic, domain.FlavorTags, domain.FlavorImages} {
		if err, ok := r.Errors[f]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
		}
	}
	return errors.Join(errs...)
}

// Generate creates one run directory and executes the requested flavors in
// it, always in the order tags, images, music. Tags and images run
// synchronously; music runs in the background when DeferMusic is set and is
// reported as pending.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	flavors := req.Flavors
	if len(flavors) == 0 {
		flavors = domain.ParseFlavors("")
	}
	run, err := p.prepareRun(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	res := &GenerateResult{Run: run.Name, Errors: map[domain.Flavor]error{}}
	musicReq := MusicRequest{Input: req.Input, ReferenceAudio: req.ReferenceAudio, ReferenceType: req.ReferenceType}

	selected := map[domain.Flavor]bool{}
	for _, f := range flavors {
		selected[f] = true
	}
	if selected[domain.FlavorTags] {
		out, err := p.runTags(ctx, run, req.Input)
		res.Tags = out
		if err != nil {
			res.Errors[domain.FlavorTags] = err
		}
	}
	if selected[domain.FlavorImages] {
		out, err := p.runImages(ctx, run, req.Input)
		res.Images = out
		if err != nil {
			res.Errors[domain.FlavorImages] = err
		}
	}
	// Music goes last so its vision call never overlaps tags or images.
	if !selected[domain.FlavorMusic] {
		return res, nil
	}
	if req.DeferMusic {
		pending, err := p.queueMusic(ctx, run, musicReq)
		res.Music = pending
		if err != nil {
			res.Errors[domain.FlavorMusic] = err
		}
		return res, nil
	}
	out, err := p.runMusic(ctx, run, musicReq)
	res.Music = out
	if err != nil {
		res.Errors[domain.FlavorMusic] = err
	}
	return res, nil
}

// Wait blocks until every deferred task has finished or ctx is done.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) prepareRun(ctx context.Context, in Input) (*storage.Run, error) {
	run, err := p.store.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if len(in.Image.Data) > 0 {
		if _, err := run.SaveUpload(ctx, in.ImageName, in.Image.Data); err != nil {
			return nil, fmt.Errorf("pipeline: save upload: %w", err)
		}
	}
	return run, nil
}

// generateText asks the vision model for task output and switches to the
// stand-in when the model fails and fallback is enabled.
func (p *Pipeline) generateText(ctx context.Context, tr *tracker, inst vision.Instruction, out *Outcome) (string, error) {
	text, err := p.vision.Generate(ctx, inst)
	if err == nil {
		return text, nil
	}
	if !p.fallback.Enabled {
		return "", fmt.Errorf("pipeline: %s: %w", p.vision.Name(), err)
	}
	p.degrade(tr, out, fmt.Sprintf("%s %s generation failed: %v", p.vision.Name(), inst.Task, err))
	return p.standIns.Vision.Generate(ctx, inst)
}

// standInText is used when the model replied but nothing usable could be
// extracted from it.
func (p *Pipeline) standInText(ctx context.Context, tr *tracker, inst vision.Instruction, out *Outcome) (string, error) {
	if !p.fallback.Enabled {
		return "", fmt.Errorf("pipeline: %s output: %w", inst.Task, domain.ErrUnusableExtraction)
	}
	p.degrade(tr, out, fmt.Sprintf("unusable %s output", inst.Task))
	return p.standIns.Vision.Generate(ctx, inst)
}

func (p *Pipeline) degrade(tr *tracker, out *Outcome, reason string) {
	out.degrade(reason)
	p.logger.Warn().
		Str("run", tr.run).
		Str("flavor", string(tr.flavor)).
		Str("state", string(tr.state)).
		Str("reason", reason).
		Msg("pipeline using stand-in")
}
