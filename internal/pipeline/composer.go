package pipeline

import (
	"context"
	"time"

	"github.com/dpshade/scriptureqa/internal/generator"
	"github.com/rs/zerolog/log"
)

// Composer asks the model for a summary that cites the resolved verses
type Composer struct {
	gen generator.Generator
	now func() time.Time
}

// NewComposer creates a new composer
func NewComposer(gen generator.Generator) *Composer {
	return &Composer{
		gen: gen,
		now: time.Now,
	}
}

// Compose generates the summary and reports how long generation took.
// Failures come back as *CompositionError.
func (c *Composer) Compose(ctx context.Context, question string, verses []ResolvedVerse) (string, time.Duration, error) {
	prompt := compositionPrompt(question, VerseBlock(verses))

	start := c.now()
	text, err := c.gen.Generate(ctx, prompt, CompositionMaxLength)
	elapsed := c.now().Sub(start)
	if err != nil {
		return "", elapsed, &CompositionError{Err: err}
	}

	log.Info().Dur("elapsed", elapsed).Int("verses", len(verses)).Msg("Answer generated")
	return text, elapsed, nil
}
