// Package detect classifies raw input bytes into one of the supported
// export formats using magic-byte sniffing, the filename extension, and a
// content heuristic for delimited text.
package detect

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format identifies one supported input container.
type Format string

const (
	FormatPackage           Format = "apkg"
	FormatCollectionPackage Format = "colpkg"
	FormatDatabase          Format = "anki2"
	FormatText              Format = "text"
	FormatUnknown           Format = "unknown"
)

// Confidence grades a detection result. Unknown results are always Low so
// callers never proceed on a guess.
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// Result is the outcome of one detection.
type Result struct {
	Format     Format
	Confidence Confidence
}

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	sqliteMagic   = []byte("SQLite format 3\x00")
)

// extensionFormats maps filename extensions to formats. Extensions decide
// the subtype within a magic-byte family; magic bytes decide the family.
var extensionFormats = map[string]Format{
	".apkg":    FormatPackage,
	".colpkg":  FormatCollectionPackage,
	".anki2":   FormatDatabase,
	".anki21":  FormatDatabase,
	".db":      FormatDatabase,
	".sqlite":  FormatDatabase,
	".sqlite3": FormatDatabase,
	".tsv":     FormatText,
	".txt":     FormatText,
}

// Detect classifies data, using filename (may be empty) as a tie-breaker.
// Empty or unrecognizable input yields FormatUnknown with Low confidence.
func Detect(data []byte, filename string) Result {
	if len(data) == 0 {
		return Result{Format: FormatUnknown, Confidence: Low}
	}

	extFormat := extensionFormat(filename)

	switch {
	case bytes.HasPrefix(data, zipMagic), bytes.HasPrefix(data, zipEmptyMagic):
		// Extension picks the subtype within the ZIP family.
		if extFormat == FormatCollectionPackage {
			return Result{Format: FormatCollectionPackage, Confidence: High}
		}
		if extFormat == FormatPackage {
			return Result{Format: FormatPackage, Confidence: High}
		}
		return Result{Format: FormatPackage, Confidence: Medium}

	case bytes.HasPrefix(data, sqliteMagic):
		if extFormat == FormatDatabase {
			return Result{Format: FormatDatabase, Confidence: High}
		}
		return Result{Format: FormatDatabase, Confidence: Medium}
	}

	// No magic signature. Delimited text is recognized by content only; an
	// extension alone never selects a format.
	if looksLikeDelimitedText(data) {
		if extFormat == FormatText {
			return Result{Format: FormatText, Confidence: High}
		}
		return Result{Format: FormatText, Confidence: Medium}
	}

	return Result{Format: FormatUnknown, Confidence: Low}
}

func extensionFormat(filename string) Format {
	if filename == "" {
		return FormatUnknown
	}
	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return f
	}
	return FormatUnknown
}

// looksLikeDelimitedText requires a tab and a line separator within the
// first kilobyte and no binary bytes there.
func looksLikeDelimitedText(data []byte) bool {
	sample := data
	if len(sample) > 1024 {
		sample = sample[:1024]
	}
	if !bytes.ContainsRune(sample, '\t') {
		return false
	}
	if !bytes.ContainsRune(sample, '\n') && !bytes.ContainsRune(sample, '\r') {
		return false
	}
	for _, b := range sample {
		if b == 0x00 {
			return false
		}
	}
	return true
}
