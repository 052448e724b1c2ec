package pipeline

import (
	"context"

	"github.com/dpshade/scriptureqa/internal/generator"
	"github.com/dpshade/scriptureqa/internal/reference"
	"github.com/rs/zerolog/log"
)

// FallbackReferences are proposed whenever the model call fails
var FallbackReferences = []reference.Reference{"John 3:16", "Romans 6:23"}

// Proposer asks the model for candidate verse references
type Proposer struct {
	gen    generator.Generator
	strict bool
}

// NewProposer creates a new proposer. With strict set, candidates must pass
// the reference grammar instead of the colon check.
func NewProposer(gen generator.Generator, strict bool) *Proposer {
	return &Proposer{
		gen:    gen,
		strict: strict,
	}
}

// Propose returns candidate references in model order. It never fails: a
// model error yields a copy of FallbackReferences.
func (p *Proposer) Propose(ctx context.Context, question string) []reference.Reference {
	raw, err := p.gen.Generate(ctx, proposalPrompt(question), ProposalMaxLength)
	if err != nil {
		log.Warn().Err(err).Msg("Error finding verses, using fallback references")
		fallback := make([]reference.Reference, len(FallbackReferences))
		copy(fallback, FallbackReferences)
		return fallback
	}

	var refs []reference.Reference
	if p.strict {
		refs = reference.SplitStrict(raw)
	} else {
		refs = reference.Split(raw)
	}

	if len(refs) != 3 {
		log.Debug().Int("count", len(refs)).Str("raw", raw).Msg("Unexpected number of proposed references")
	}
	return refs
}
