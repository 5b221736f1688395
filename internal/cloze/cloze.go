// Package cloze decomposes Anki cloze-deletion markup of the form
// {{cN::answer}} or {{cN::answer::hint}} into per-index variations.
package cloze

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mkowalik/ankiconv/internal/entities"
	"github.com/mkowalik/ankiconv/internal/sanitize"
)

var markerRe = regexp.MustCompile(`\{\{c(\d+)::(.*?)\}\}`)

type marker struct {
	start  int
	end    int
	index  int
	answer string
	hint   string
}

// HasMarkers reports whether text contains at least one cloze marker.
func HasMarkers(text string) bool {
	return markerRe.MatchString(text)
}

// Extract returns one variation per distinct cloze index found in text,
// ordered by ascending index. In each variation the target index is hidden
// behind its hint (or "[...]" without one) while every other index shows its
// own answer, and both text and answer are cleaned.
func Extract(text string) []entities.ClozeVariation {
	markers := parseMarkers(text)
	if len(markers) == 0 {
		return nil
	}

	answers := make(map[int]string)
	indices := make([]int, 0, len(markers))
	for _, m := range markers {
		if _, seen := answers[m.index]; !seen {
			answers[m.index] = m.answer
			indices = append(indices, m.index)
		}
	}
	sort.Ints(indices)

	variations := make([]entities.ClozeVariation, 0, len(indices))
	for _, idx := range indices {
		variations = append(variations, entities.ClozeVariation{
			Index:  idx,
			Text:   sanitize.Clean(renderFor(text, markers, idx)),
			Answer: sanitize.Clean(answers[idx]),
		})
	}
	return variations
}

// Strip replaces every marker with its answer content, yielding the full
// text of the note with all deletions revealed.
func Strip(text string) string {
	markers := parseMarkers(text)
	if len(markers) == 0 {
		return text
	}
	return render(text, markers, func(m marker) string { return m.answer })
}

func parseMarkers(text string) []marker {
	locs := markerRe.FindAllStringSubmatchIndex(text, -1)
	markers := make([]marker, 0, len(locs))
	for _, loc := range locs {
		index, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil || index <= 0 {
			continue
		}
		content := text[loc[4]:loc[5]]
		answer, hint := content, ""
		if at := strings.Index(content, "::"); at >= 0 {
			answer, hint = content[:at], content[at+2:]
		}
		markers = append(markers, marker{
			start:  loc[0],
			end:    loc[1],
			index:  index,
			answer: answer,
			hint:   hint,
		})
	}
	return markers
}

// renderFor hides the target index and reveals all others.
func renderFor(text string, markers []marker, target int) string {
	return render(text, markers, func(m marker) string {
		if m.index != target {
			return m.answer
		}
		if m.hint != "" {
			return "[" + m.hint + "]"
		}
		return "[...]"
	})
}

func render(text string, markers []marker, replace func(marker) string) string {
	var b strings.Builder
	last := 0
	for _, m := range markers {
		b.WriteString(text[last:m.start])
		b.WriteString(replace(m))
		last = m.end
	}
	b.WriteString(text[last:])
	return b.String()
}
