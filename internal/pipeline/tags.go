package pipeline

import (
	"context"
	"fmt"

	"omniwizz/internal/domain"
	"omniwizz/internal/providers/vision"
	"omniwizz/internal/storage"
	"omniwizz/internal/textparse"
)

// TagsResult is the mood tag list written to tags.json.
type TagsResult struct {
	Run  string   `json:"folder"`
	Tags []string `json:"tags"`
	Outcome
}

// Tags runs the tags flavor in a new run directory.
func (p *Pipeline) Tags(ctx context.Context, in Input) (*TagsResult, error) {
	run, err := p.prepareRun(ctx, in)
	if err != nil {
		return nil, err
	}
	return p.runTags(ctx, run, in)
}

func (p *Pipeline) runTags(ctx context.Context, run *storage.Run, in Input) (*TagsResult, error) {
	tr := newTracker(p.logger, run.Name, domain.FlavorTags)
	res := &TagsResult{Run: run.Name, Tags: []string{}}

	if err := tr.to(domain.RunStateGeneratingText); err != nil {
		return res, tr.fail(err)
	}
	inst := vision.Instruction{Task: vision.TaskTags, Language: in.Language, Image: in.Image}
	text, err := p.generateText(ctx, tr, inst, &res.Outcome)
	if err != nil {
		return res, tr.fail(err)
	}

	if err := tr.to(domain.RunStatePostprocessing); err != nil {
		return res, tr.fail(err)
	}
	tags := textparse.ParseTags(text)
	if len(tags) == 0 {
		text, err = p.standInText(ctx, tr, inst, &res.Outcome)
		if err != nil {
			return res, tr.fail(err)
		}
		tags = textparse.ParseTags(text)
	}
	if tags != nil {
		res.Tags = tags
	}

	if err := tr.to(domain.RunStatePersisting); err != nil {
		return res, tr.fail(err)
	}
	if _, err := run.WriteJSON(ctx, storage.TagsFile, res.Tags); err != nil {
		return res, tr.fail(fmt.Errorf("pipeline: %w", err))
	}
	return res, tr.to(domain.RunStateDone)
}
