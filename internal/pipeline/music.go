package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"omniwizz/internal/domain"
	"omniwizz/internal/providers/chords"
	"omniwizz/internal/providers/music"
	"omniwizz/internal/providers/vision"
	"omniwizz/internal/storage"
	"omniwizz/internal/textparse"
)

// MusicRequest generates a song for an image. ReferenceAudio is an optional
// clip whose chords steer the lyrics.
type MusicRequest struct {
	Input
	ReferenceAudio []byte
	ReferenceType  string
}

// MusicResult describes the artifacts written for the music flavor.
type MusicResult struct {
	Run      string            `json:"folder"`
	Status   domain.TaskStatus `json:"status"`
	Prompt   string            `json:"prompt,omitempty"`
	Lyrics   string            `json:"lyrics,omitempty"`
	LRC      string            `json:"lrc,omitempty"`
	Chords   *chords.Result    `json:"chords,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Outcome
}

// RegenerateRequest re-invokes the music provider for an existing run with
// user edited prompt and lyrics.
type RegenerateRequest struct {
	Run      string
	Prompt   string
	Lyrics   string
	Language domain.Language
}

// MusicTaskStatus is the content of status.json for deferred music.
type MusicTaskStatus struct {
	Status    domain.TaskStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
	Outcome
}

// Music runs the music flavor synchronously in a new run directory.
func (p *Pipeline) Music(ctx context.Context, req MusicRequest) (*MusicResult, error) {
	run, err := p.prepareRun(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	return p.runMusic(ctx, run, req)
}

// MusicStatus reads the deferred music state of a run.
func (p *Pipeline) MusicStatus(runName string) (*MusicTaskStatus, error) {
	run, err := p.store.Open(runName)
	if err != nil {
		return nil, err
	}
	var status MusicTaskStatus
	if err := run.ReadJSON(storage.StatusFile, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Regenerate replaces the audio, lyrics and prompt of an existing run. Text
// generation is skipped; only invoking and persisting run again. A run whose
// deferred music is still pending is rejected with domain.ErrRunBusy, and the
// outcome is recorded in status.json.
func (p *Pipeline) Regenerate(ctx context.Context, req RegenerateRequest) (*MusicResult, error) {
	run, err := p.store.Open(req.Run)
	if err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(req.Prompt)
	lyrics := strings.TrimSpace(req.Lyrics)
	if prompt == "" {
		return nil, fmt.Errorf("pipeline: regenerate: %w", music.ErrEmptyPrompt)
	}
	if p.pendingElsewhere(run) || !p.claim(run.Name) {
		return nil, fmt.Errorf("pipeline: regenerate %s: %w", run.Name, domain.ErrRunBusy)
	}
	defer p.release(run.Name)

	res, err := p.regenerate(ctx, run, prompt, lyrics, req.Language)
	status := MusicTaskStatus{Status: domain.TaskStatusDone}
	if res != nil {
		status.Provider = res.Provider
		status.Outcome = res.Outcome
	}
	if err != nil {
		status.Status = domain.TaskStatusFailed
		status.Error = err.Error()
	}
	if werr := p.writeStatus(context.WithoutCancel(ctx), run, status); werr != nil {
		p.logger.Error().Err(werr).Str("run", run.Name).Msg("write music status")
	}
	return res, err
}

// pendingElsewhere reports whether status.json marks music as pending and
// the pending task could still be running.
func (p *Pipeline) pendingElsewhere(run *storage.Run) bool {
	var status MusicTaskStatus
	if err := run.ReadJSON(storage.StatusFile, &status); err != nil {
		return false
	}
	if status.Status != domain.TaskStatusPending {
		return false
	}
	return time.Since(status.UpdatedAt) < p.musicTaskTimeout
}

func (p *Pipeline) regenerate(ctx context.Context, run *storage.Run, prompt, lyrics string, lang domain.Language) (*MusicResult, error) {
	tr := newTracker(p.logger, run.Name, domain.FlavorMusic)
	if err := run.Remove(storage.AudioFile, storage.LyricsFile, storage.PromptFile); err != nil {
		return nil, tr.fail(fmt.Errorf("pipeline: %w", err))
	}
	if err := tr.to(domain.RunStateInvoking); err != nil {
		return nil, tr.fail(err)
	}
	res := &MusicResult{Run: run.Name, Prompt: prompt, Lyrics: lyrics}
	res.LRC = textparse.NormalizeLRC(textparse.AlignLyrics(lyrics, p.lyricsStart, p.lyricsStep))
	track, err := p.invokeMusic(ctx, tr, music.Request{
		Prompt:   prompt,
		Lyrics:   lyrics,
		LRC:      res.LRC,
		Language: lang,
	}, &res.Outcome)
	if err != nil {
		res.Status = domain.TaskStatusFailed
		return res, tr.fail(err)
	}
	if err := p.persistMusic(ctx, tr, run, res, track); err != nil {
		res.Status = domain.TaskStatusFailed
		return res, err
	}
	return res, nil
}

// queueMusic records a pending status and runs the music flavor in a tracked
// background goroutine detached from the request context.
func (p *Pipeline) queueMusic(ctx context.Context, run *storage.Run, req MusicRequest) (*MusicResult, error) {
	pending := &MusicResult{Run: run.Name, Status: domain.TaskStatusPending}
	if !p.claim(run.Name) {
		pending.Status = domain.TaskStatusFailed
		return pending, fmt.Errorf("pipeline: music %s: %w", run.Name, domain.ErrRunBusy)
	}
	if err := p.writeStatus(ctx, run, MusicTaskStatus{Status: domain.TaskStatusPending}); err != nil {
		p.release(run.Name)
		pending.Status = domain.TaskStatusFailed
		return pending, err
	}
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.musicTaskTimeout)
	p.tasks.Add(1)
	go func() {
		defer p.tasks.Done()
		defer p.release(run.Name)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error().Interface("panic", r).Str("run", run.Name).Msg("deferred music task panicked")
				_ = p.writeStatus(taskCtx, run, MusicTaskStatus{Status: domain.TaskStatusFailed, Error: fmt.Sprint(r)})
			}
		}()
		res, err := p.runMusic(taskCtx, run, req)
		status := MusicTaskStatus{Status: domain.TaskStatusDone}
		if res != nil {
			status.Provider = res.Provider
			status.Outcome = res.Outcome
		}
		if err != nil {
			status.Status = domain.TaskStatusFailed
			status.Error = err.Error()
		}
		if werr := p.writeStatus(context.WithoutCancel(taskCtx), run, status); werr != nil {
			p.logger.Error().Err(werr).Str("run", run.Name).Msg("write music status")
		}
	}()
	return pending, nil
}

func (p *Pipeline) writeStatus(ctx context.Context, run *storage.Run, status MusicTaskStatus) error {
	status.UpdatedAt = time.Now().UTC()
	if _, err := run.WriteJSON(ctx, storage.StatusFile, status); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func (p *Pipeline) runMusic(ctx context.Context, run *storage.Run, req MusicRequest) (*MusicResult, error) {
	tr := newTracker(p.logger, run.Name, domain.FlavorMusic)
	res := &MusicResult{Run: run.Name, Status: domain.TaskStatusPending}
	lang := req.Language

	hint, err := p.transcribe(ctx, tr, run, req, &res.Outcome)
	if err != nil {
		return res, tr.fail(err)
	}
	if hint != nil {
		res.Chords = &chords.Result{Key: hint.Key, Chords: hint.Chords}
	}

	if err := tr.to(domain.RunStateGeneratingText); err != nil {
		return res, tr.fail(err)
	}
	inst := vision.Instruction{Task: vision.TaskLyrics, Language: lang, Image: req.Image, Chords: hint}
	text, err := p.generateText(ctx, tr, inst, &res.Outcome)
	if err != nil {
		return res, tr.fail(err)
	}

	if err := tr.to(domain.RunStatePostprocessing); err != nil {
		return res, tr.fail(err)
	}
	creative := textparse.ExtractCreative(text, lang)
	if !usableCreative(creative) {
		text, err = p.standInText(ctx, tr, inst, &res.Outcome)
		if err != nil {
			return res, tr.fail(err)
		}
		creative = textparse.ExtractCreative(text, lang)
		if !usableCreative(creative) {
			return res, tr.fail(fmt.Errorf("pipeline: stand-in lyrics: %w", domain.ErrUnusableExtraction))
		}
	}
	res.Prompt = creative.Prompt
	res.Lyrics = creative.Lyrics
	res.LRC = textparse.NormalizeLRC(textparse.AlignLyrics(creative.Lyrics, p.lyricsStart, p.lyricsStep))

	if err := tr.to(domain.RunStateInvoking); err != nil {
		return res, tr.fail(err)
	}
	track, err := p.invokeMusic(ctx, tr, music.Request{
		Prompt:   res.Prompt,
		Lyrics:   res.Lyrics,
		LRC:      res.LRC,
		Language: lang,
	}, &res.Outcome)
	if err != nil {
		res.Status = domain.TaskStatusFailed
		return res, tr.fail(err)
	}
	if err := p.persistMusic(ctx, tr, run, res, track); err != nil {
		res.Status = domain.TaskStatusFailed
		return res, err
	}
	return res, nil
}

// usableCreative requires a prompt. Lyrics may be empty; the provider then
// gets an instrumental request.
func usableCreative(c textparse.Creative) bool {
	return strings.TrimSpace(c.Prompt) != ""
}

// transcribe extracts the reference clip's chords, if one was supplied.
func (p *Pipeline) transcribe(ctx context.Context, tr *tracker, run *storage.Run, req MusicRequest, out *Outcome) (*vision.ChordHint, error) {
	if len(req.ReferenceAudio) == 0 || p.chords == nil {
		return nil, nil
	}
	result, err := p.chords.Transcribe(ctx, req.ReferenceAudio, req.ReferenceType)
	if err != nil {
		if !p.fallback.Enabled {
			return nil, fmt.Errorf("pipeline: %s: %w", p.chords.Name(), err)
		}
		p.degrade(tr, out, fmt.Sprintf("%s chord transcription failed: %v", p.chords.Name(), err))
		return nil, nil
	}
	if result == nil || len(result.Chords) == 0 {
		return nil, nil
	}
	if result.Key == "" {
		result.Key = chords.EstimateKey(result.Chords)
	}
	if _, err := run.WriteJSON(ctx, storage.ChordsFile, result); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return &vision.ChordHint{Key: result.Key, Chords: result.Chords}, nil
}

func (p *Pipeline) invokeMusic(ctx context.Context, tr *tracker, req music.Request, out *Outcome) (*music.Track, error) {
	track, err := p.music.Generate(ctx, req)
	if err == nil && track != nil && len(track.Data) > 0 {
		return track, nil
	}
	if err == nil {
		err = errors.New("empty audio")
	}
	if !p.fallback.Enabled {
		return nil, fmt.Errorf("pipeline: %s: %w", p.music.Name(), err)
	}
	p.degrade(tr, out, fmt.Sprintf("%s music generation failed: %v", p.music.Name(), err))
	track, err = p.standIns.Music.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pipeline: stand-in music: %w", err)
	}
	return track, nil
}

func (p *Pipeline) persistMusic(ctx context.Context, tr *tracker, run *storage.Run, res *MusicResult, track *music.Track) error {
	if err := tr.to(domain.RunStatePersisting); err != nil {
		return tr.fail(err)
	}
	res.Provider = track.Provider
	writes := []struct {
		key  string
		data []byte
	}{
		{storage.PromptFile, []byte(res.Prompt)},
		{storage.LyricsFile, []byte(res.LRC)},
		{storage.AudioFile, track.Data},
	}
	for _, w := range writes {
		if _, err := run.Write(ctx, w.key, w.data); err != nil {
			return tr.fail(fmt.Errorf("pipeline: %w", err))
		}
	}
	res.Status = domain.TaskStatusDone
	return tr.to(domain.RunStateDone)
}
