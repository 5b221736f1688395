package sanitize

import (
	"html"
	"regexp"
	"strings"
)

// Media references are removed with no residue: self-closing media elements,
// content-bearing media elements, and Anki's bracketed sound marker.
var (
	selfClosingMediaRe = regexp.MustCompile(`(?is)<(?:img|source|embed)\b[^>]*>`)
	audioRe            = regexp.MustCompile(`(?is)<audio\b[^>]*>.*?</audio>`)
	videoRe            = regexp.MustCompile(`(?is)<video\b[^>]*>.*?</video>`)
	objectRe           = regexp.MustCompile(`(?is)<object\b[^>]*>.*?</object>`)
	soundMarkerRe      = regexp.MustCompile(`\[sound:[^\]]*\]`)
)

// formatRule converts one whitelisted inline element to a plain-text marker.
type formatRule struct {
	re   *regexp.Regexp
	pre  string
	post string
}

var formatRules = []formatRule{
	{regexp.MustCompile(`(?is)<(?:b|strong)\b[^>]*>(.*?)</(?:b|strong)>`), "**", "**"},
	{regexp.MustCompile(`(?is)<(?:i|em)\b[^>]*>(.*?)</(?:i|em)>`), "*", "*"},
	{regexp.MustCompile(`(?is)<u\b[^>]*>(.*?)</u>`), "_", "_"},
	{regexp.MustCompile(`(?is)<(?:s|strike|del)\b[^>]*>(.*?)</(?:s|strike|del)>`), "~~", "~~"},
	{regexp.MustCompile(`(?is)<sub\b[^>]*>(.*?)</sub>`), "[", "]"},
	{regexp.MustCompile(`(?is)<sup\b[^>]*>(.*?)</sup>`), "^", "^"},
}

var (
	blockTagRe   = regexp.MustCompile(`(?i)</?(?:div|p|br|li|ul|ol|h[1-6]|table|thead|tbody|tr|td|th|blockquote|hr|pre|section|article)\b[^>]*/?>`)
	anyTagRe     = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
	lineEdgeRe   = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
)

// maxPasses bounds the fixpoint iteration over the cleaning stages.
const maxPasses = 16

// Clean transforms raw card-field HTML into plain text. The five stages run
// in a fixed order: media removal, inline formatting conversion, entity
// decoding, tag stripping, whitespace normalization. The sequence repeats
// until the output stops changing, so applying Clean to its own output is a
// no-op even when entity decoding uncovers further markup or media markers.
// Non-ASCII content passes through untouched.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	s := raw
	for i := 0; i < maxPasses; i++ {
		next := cleanOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func cleanOnce(s string) string {
	s = stripMedia(s)
	s = convertFormatting(s)
	s = html.UnescapeString(s)
	s = stripTags(s)
	return normalizeWhitespace(s)
}

func stripMedia(s string) string {
	s = audioRe.ReplaceAllString(s, "")
	s = videoRe.ReplaceAllString(s, "")
	s = objectRe.ReplaceAllString(s, "")
	s = selfClosingMediaRe.ReplaceAllString(s, "")
	return soundMarkerRe.ReplaceAllString(s, "")
}

// convertFormatting applies the marker rules repeatedly so nested elements
// compose, e.g. <b><i>x</i></b> becomes ***x***. The iteration cap guards
// against pathological nesting depth.
func convertFormatting(s string) string {
	for i := 0; i < 32; i++ {
		changed := false
		for _, rule := range formatRules {
			out := rule.re.ReplaceAllString(s, rule.pre+"${1}"+rule.post)
			if out != s {
				s = out
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return s
}

func stripTags(s string) string {
	s = blockTagRe.ReplaceAllString(s, "\n")
	return anyTagRe.ReplaceAllString(s, "")
}

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = lineEdgeRe.ReplaceAllString(s, "")
	s = newlineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
