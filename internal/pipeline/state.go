package pipeline

import (
	"fmt"

	"omniwizz/internal/domain"
	"omniwizz/internal/infra"
)

var transitions = map[domain.RunState][]domain.RunState{
	domain.RunStateCreated:        {domain.RunStateGeneratingText, domain.RunStateInvoking, domain.RunStateFailed},
	domain.RunStateGeneratingText: {domain.RunStatePostprocessing, domain.RunStateFailed},
	domain.RunStatePostprocessing: {domain.RunStateInvoking, domain.RunStatePersisting, domain.RunStateFailed},
	domain.RunStateInvoking:       {domain.RunStatePersisting, domain.RunStateFailed},
	domain.RunStatePersisting:     {domain.RunStateDone, domain.RunStateFailed},
}

// tracker follows one flavor of one run through its states.
type tracker struct {
	run    string
	flavor domain.Flavor
	state  domain.RunState
	logger *infra.Logger
}

func newTracker(logger *infra.Logger, run string, flavor domain.Flavor) *tracker {
	t := &tracker{run: run, flavor: flavor, state: domain.RunStateCreated, logger: logger}
	logger.Debug().Str("run", run).Str("flavor", string(flavor)).Str("state", string(t.state)).Msg("pipeline run created")
	return t
}

func canTransition(from, to domain.RunState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (t *tracker) to(next domain.RunState) error {
	if !canTransition(t.state, next) {
		return fmt.Errorf("pipeline: illegal transition %s -> %s", t.state, next)
	}
	t.logger.Info().
		Str("run", t.run).
		Str("flavor", string(t.flavor)).
		Str("from", string(t.state)).
		Str("to", string(next)).
		Msg("pipeline transition")
	t.state = next
	return nil
}

// fail moves the run to failed from any non-terminal state and returns err.
func (t *tracker) fail(err error) error {
	if t.state != domain.RunStateDone && t.state != domain.RunStateFailed {
		t.logger.Error().
			Err(err).
			Str("run", t.run).
			Str("flavor", string(t.flavor)).
			Str("from", string(t.state)).
			Msg("pipeline failed")
		t.state = domain.RunStateFailed
	}
	return err
}
