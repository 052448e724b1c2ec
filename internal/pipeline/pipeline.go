// Package pipeline turns a question into a cited answer in three sequential
// stages: propose references, resolve them to verse text, compose a summary.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/dpshade/scriptureqa/internal/reference"
)

// ResolvedVerse is a reference paired with its fetched text
type ResolvedVerse struct {
	Reference reference.Reference `json:"reference"`
	Text      string              `json:"text"`
}

// Answer is a generated summary and what it was built from
type Answer struct {
	Question string `json:"question"`
	Text     string `json:"text"`
	// References holds every proposed reference, resolved or not.
	References []reference.Reference `json:"references"`
	Verses     []ResolvedVerse       `json:"verses"`
	Elapsed    time.Duration         `json:"elapsed"`
}

// Outcome tags how a turn ended
type Outcome string

// Turn outcomes
const (
	OutcomeAnswered          Outcome = "answered"
	OutcomeNoVersesResolved  Outcome = "no_verses_resolved"
	OutcomeCompositionFailed Outcome = "composition_failed"
)

// Result describes a finished turn. Answer is set only for OutcomeAnswered.
type Result struct {
	Outcome    Outcome               `json:"outcome"`
	Question   string                `json:"question"`
	References []reference.Reference `json:"references"`
	Verses     []ResolvedVerse       `json:"verses"`
	Answer     *Answer               `json:"answer,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Turn is a question with the answer it produced
type Turn struct {
	Question string    `json:"question"`
	Answer   *Answer   `json:"answer"`
	At       time.Time `json:"at"`
}

// Recorder receives successful turns; the session layer owns it
type Recorder interface {
	Append(turn Turn)
}

// Lookup fetches verse text; ok is false when the verse could not be resolved
type Lookup interface {
	Lookup(ctx context.Context, ref reference.Reference) (text string, ok bool)
}

// VerseBlock renders verses as "Reference: text" entries separated by blank lines
func VerseBlock(verses []ResolvedVerse) string {
	parts := make([]string, len(verses))
	for i, v := range verses {
		parts[i] = v.Reference.String() + ": " + v.Text
	}
	return strings.Join(parts, "\n\n")
}
