package cloze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasMarkers(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"single marker", "The capital is {{c1::Paris}}", true},
		{"marker with hint", "{{c2::Berlin::city}}", true},
		{"no markers", "plain text", false},
		{"braces without cloze", "{{not a marker}}", false},
		{"missing index", "{{c::Paris}}", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasMarkers(tt.text))
		})
	}
}

func TestExtract_TwoIndices(t *testing.T) {
	text := "{{c1::Paris}} is the capital of {{c2::France}}"

	variations := Extract(text)
	require.Len(t, variations, 2)

	assert.Equal(t, 1, variations[0].Index)
	assert.Equal(t, "[...] is the capital of France", variations[0].Text)
	assert.Equal(t, "Paris", variations[0].Answer)

	assert.Equal(t, 2, variations[1].Index)
	assert.Equal(t, "Paris is the capital of [...]", variations[1].Text)
	assert.Equal(t, "France", variations[1].Answer)
}

func TestExtract_DuplicateIndex(t *testing.T) {
	// Two markers sharing an index produce a single variation where both
	// occurrences are hidden together.
	text := "{{c1::Madrid}} and again {{c1::Madrid}}"

	variations := Extract(text)
	require.Len(t, variations, 1)
	assert.Equal(t, 1, variations[0].Index)
	assert.Equal(t, "[...] and again [...]", variations[0].Text)
	assert.Equal(t, "Madrid", variations[0].Answer)
}

func TestExtract_Hint(t *testing.T) {
	text := "The answer is {{c1::42::a number}}"

	variations := Extract(text)
	require.Len(t, variations, 1)
	assert.Equal(t, "The answer is [a number]", variations[0].Text)
	assert.Equal(t, "42", variations[0].Answer)
}

func TestExtract_IndicesSortedNotInTextOrder(t *testing.T) {
	text := "{{c3::gamma}} {{c1::alpha}} {{c2::beta}}"

	variations := Extract(text)
	require.Len(t, variations, 3)
	assert.Equal(t, 1, variations[0].Index)
	assert.Equal(t, 2, variations[1].Index)
	assert.Equal(t, 3, variations[2].Index)
	assert.Equal(t, "gamma [...] beta", variations[0].Text)
}

func TestExtract_NonContiguousIndices(t *testing.T) {
	// Index gaps are preserved, not renumbered.
	text := "{{c1::one}} and {{c5::five}}"

	variations := Extract(text)
	require.Len(t, variations, 2)
	assert.Equal(t, 1, variations[0].Index)
	assert.Equal(t, 5, variations[1].Index)
}

func TestExtract_SanitizesContent(t *testing.T) {
	text := "<div>{{c1::<b>Paris</b>}} is the capital</div>"

	variations := Extract(text)
	require.Len(t, variations, 1)
	assert.Equal(t, "[...] is the capital", variations[0].Text)
	assert.Equal(t, "**Paris**", variations[0].Answer)
}

func TestExtract_NoMarkers(t *testing.T) {
	assert.Nil(t, Extract("no cloze here"))
	assert.Nil(t, Extract(""))
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"single", "{{c1::Paris}} is nice", "Paris is nice"},
		{"multiple", "{{c1::a}} {{c2::b}} {{c1::c}}", "a b c"},
		{"hint dropped", "{{c1::Paris::capital}}", "Paris"},
		{"no markers unchanged", "plain", "plain"},
		{"surrounding text kept", "pre {{c1::mid}} post", "pre mid post"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Strip(tt.text))
		})
	}
}

func TestExtract_ZeroIndexIgnored(t *testing.T) {
	// c0 is not a valid cloze index.
	assert.Nil(t, Extract("{{c0::nothing}}"))
	assert.False(t, HasMarkers("plain") || len(Extract("{{c0::x}}")) > 0)
}
