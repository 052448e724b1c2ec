package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_KeepsColonFragmentsInOrder(t *testing.T) {
	refs := Split("1 Corinthians 13:4, John 3:16, Romans 5:8")

	assert.Equal(t, []Reference{"1 Corinthians 13:4", "John 3:16", "Romans 5:8"}, refs)
}

func TestSplit_TrimsWhitespace(t *testing.T) {
	refs := Split("  John 3:16 ,\n Romans 6:23\t")

	assert.Equal(t, []Reference{"John 3:16", "Romans 6:23"}, refs)
}

func TestSplit_DropsFragmentsWithoutColon(t *testing.T) {
	refs := Split("John 3:16, Psalm 23, love")

	assert.Equal(t, []Reference{"John 3:16"}, refs)
}

func TestSplit_NoColonsYieldsNothing(t *testing.T) {
	refs := Split("I don't know")

	assert.Empty(t, refs)
}

func TestSplit_AcceptsMalformedColonFragments(t *testing.T) {
	// The weak check only looks for a colon.
	refs := Split("Answer: none")

	assert.Equal(t, []Reference{"Answer: none"}, refs)
}

func TestParse_SimpleReference(t *testing.T) {
	v, err := Parse("John 3:16")

	require.NoError(t, err)
	assert.Equal(t, "John", v.Book)
	assert.Equal(t, 3, v.Chapter)
	assert.Equal(t, 16, v.Verse)
	assert.Nil(t, v.VerseEnd)
	assert.Equal(t, Reference("John 3:16"), v.Reference())
}

func TestParse_NumberedAndMultiWordBooks(t *testing.T) {
	tests := []struct {
		input string
		want  Reference
	}{
		{"1 Corinthians 13:4", "1 Corinthians 13:4"},
		{"1John 4:8", "1John 4:8"},
		{"Song of Solomon 2:4", "Song of Solomon 2:4"},
		{"Rev. 21:4", "Rev 21:4"},
		{"Romans  5:8", "Romans 5:8"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Reference())
		})
	}
}

func TestParse_VerseRange(t *testing.T) {
	v, err := Parse("1 Corinthians 13:4-7")

	require.NoError(t, err)
	require.NotNil(t, v.VerseEnd)
	assert.Equal(t, 7, *v.VerseEnd)
	assert.Equal(t, Reference("1 Corinthians 13:4-7"), v.Reference())
}

func TestParse_RejectsIncompleteReferences(t *testing.T) {
	for _, input := range []string{"John 3", "John", "3:16", "Answer: none", "John 0:1", "John 3:16-2"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestSplitStrict_CanonicalisesAndFilters(t *testing.T) {
	refs := SplitStrict("'John 3:16', Answer: none, Rev. 21:4, Psalm 23")

	assert.Equal(t, []Reference{"John 3:16", "Rev 21:4"}, refs)
}

func TestStrings(t *testing.T) {
	assert.Equal(t, []string{"John 3:16", "Romans 6:23"}, Strings([]Reference{"John 3:16", "Romans 6:23"}))
}
