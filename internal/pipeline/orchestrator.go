package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/dpshade/scriptureqa/internal/generator"
	"github.com/rs/zerolog/log"
)

// Orchestrator drives one turn through the three stages. It holds no state
// between turns; the generator and lookup are shared by reference.
type Orchestrator struct {
	proposer *Proposer
	resolver *Resolver
	composer *Composer
	now      func() time.Time
}

// Options configures an Orchestrator
type Options struct {
	StrictReferences bool
}

// NewOrchestrator wires the stages around a generator and a verse lookup
func NewOrchestrator(gen generator.Generator, lookup Lookup, opts Options) *Orchestrator {
	return &Orchestrator{
		proposer: NewProposer(gen, opts.StrictReferences),
		resolver: NewResolver(lookup),
		composer: NewComposer(gen),
		now:      time.Now,
	}
}

// Run answers question. On success the turn is appended to rec (when non-nil)
// and the result carries the Answer. When no verse resolves the composer is
// never called and ErrNoVersesResolved is returned; a composition failure
// returns a *CompositionError. Neither failure is recorded.
func (o *Orchestrator) Run(ctx context.Context, question string, rec Recorder) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	refs := o.proposer.Propose(ctx, question)
	verses := o.resolver.ResolveAll(ctx, refs)

	result := &Result{
		Question:   question,
		References: refs,
		Verses:     verses,
	}

	if len(verses) == 0 {
		log.Warn().Int("proposed", len(refs)).Msg("No verses resolved, aborting turn")
		result.Outcome = OutcomeNoVersesResolved
		result.Error = ErrNoVersesResolved.Error()
		return result, ErrNoVersesResolved
	}

	text, elapsed, err := o.composer.Compose(ctx, question, verses)
	if err != nil {
		log.Error().Err(err).Msg("Composition failed")
		result.Outcome = OutcomeCompositionFailed
		result.Error = err.Error()
		return result, err
	}

	answer := &Answer{
		Question:   question,
		Text:       text,
		References: refs,
		Verses:     verses,
		Elapsed:    elapsed,
	}
	result.Outcome = OutcomeAnswered
	result.Answer = answer

	if rec != nil {
		rec.Append(Turn{Question: question, Answer: answer, At: o.now()})
	}
	return result, nil
}
