package pipeline

import (
	"context"

	"github.com/dpshade/scriptureqa/internal/reference"
	"github.com/rs/zerolog/log"
)

// Resolver fetches verse text for proposed references
type Resolver struct {
	lookup Lookup
}

// NewResolver creates a new resolver
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// ResolveAll looks references up one at a time, in order, and keeps the
// ones that resolved. Failures are dropped without being reported.
func (r *Resolver) ResolveAll(ctx context.Context, refs []reference.Reference) []ResolvedVerse {
	verses := make([]ResolvedVerse, 0, len(refs))
	for _, ref := range refs {
		text, ok := r.lookup.Lookup(ctx, ref)
		if !ok {
			continue
		}
		verses = append(verses, ResolvedVerse{Reference: ref, Text: text})
	}

	log.Debug().Int("proposed", len(refs)).Int("resolved", len(verses)).Msg("References resolved")
	return verses
}
