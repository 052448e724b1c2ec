// Package reference extracts scripture references from model output.
//
// Two validation levels are offered. The weak check keeps any comma-separated
// fragment containing a colon, which is how candidates have always been
// accepted. The strict check runs each fragment through a small grammar
// (Book Chapter:Verse with an optional verse range) and canonicalises it.
package reference

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Reference names a location in scripture, nominally "Book Chapter:Verse".
type Reference string

// String returns the reference text
func (r Reference) String() string {
	return string(r)
}

// Strings converts a slice of references to plain strings
func Strings(refs []Reference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = string(r)
	}
	return out
}

// Verse is a reference that passed the strict grammar.
//
//nolint:govet // participle grammar tags are not standard struct tags
type Verse struct {
	Book     string `parser:"@Book"`
	Chapter  int    `parser:"@Number \":\""`
	Verse    int    `parser:"@Number"`
	VerseEnd *int   `parser:"( \"-\" @Number )?"`
}

var verseLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Book names may carry a numeric prefix and several words:
	// John, 1 John, 1John, Song of Solomon, Rev.
	{Name: "Book", Pattern: `(?:[1-3]\s*)?[A-Za-z]+(?:\s+(?:of\s+)?[A-Za-z]+)*\.?`},
	{Name: "Number", Pattern: `\d+`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var verseParser = participle.MustBuild[Verse](
	participle.Lexer(verseLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a single reference with the strict grammar
func Parse(input string) (*Verse, error) {
	v, err := verseParser.ParseString("", strings.TrimSpace(input))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reference %q: %w", input, err)
	}
	v.Book = strings.TrimSuffix(strings.Join(strings.Fields(v.Book), " "), ".")
	if v.Chapter <= 0 || v.Verse <= 0 {
		return nil, fmt.Errorf("invalid reference %q: chapter and verse must be positive", input)
	}
	if v.VerseEnd != nil && *v.VerseEnd < v.Verse {
		return nil, fmt.Errorf("invalid reference %q: range ends before it starts", input)
	}
	return v, nil
}

// Reference returns the canonical form of the verse
func (v *Verse) Reference() Reference {
	s := fmt.Sprintf("%s %d:%d", v.Book, v.Chapter, v.Verse)
	if v.VerseEnd != nil && *v.VerseEnd != v.Verse {
		s += fmt.Sprintf("-%d", *v.VerseEnd)
	}
	return Reference(s)
}

// Split breaks raw model output into candidate references. Fragments are
// separated by commas and trimmed; only those containing a colon are kept.
func Split(raw string) []Reference {
	refs := make([]Reference, 0, 3)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if strings.Contains(part, ":") {
			refs = append(refs, Reference(part))
		}
	}
	return refs
}

// SplitStrict is Split followed by the strict grammar. Fragments that do not
// parse are dropped; survivors are canonicalised.
func SplitStrict(raw string) []Reference {
	candidates := Split(raw)
	refs := make([]Reference, 0, len(candidates))
	for _, c := range candidates {
		// Models like to quote their answers: 'John 3:16'.
		v, err := Parse(strings.Trim(string(c), `'"`))
		if err != nil {
			continue
		}
		refs = append(refs, v.Reference())
	}
	return refs
}
