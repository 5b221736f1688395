// Package tsv parses tab-separated deck exports into the shared intermediate
// dataset, auto-detecting a header row and a trailing tags column.
package tsv

import (
	"fmt"
	"strings"

	"github.com/mkowalik/ankiconv/internal/entities"
)

// Synthetic ids for the single flat deck and note type every text import
// produces.
const (
	syntheticDeckID     = 1
	syntheticNoteTypeID = 1
)

const defaultDeckName = "Imported"

// maxSampleRows bounds how many rows the tags-column heuristic inspects.
const maxSampleRows = 50

// headerWords is the whitelist of common column titles the header heuristic
// accepts.
var headerWords = map[string]bool{
	"front":      true,
	"back":       true,
	"question":   true,
	"answer":     true,
	"text":       true,
	"extra":      true,
	"tags":       true,
	"note":       true,
	"notes":      true,
	"hint":       true,
	"prompt":     true,
	"response":   true,
	"word":       true,
	"definition": true,
}

// Options control parsing. Nil pointer members mean "auto-detect".
type Options struct {
	HasHeader  *bool
	FieldNames []string
	TagsColumn *int
	DeckName   string
}

// Reader parses delimited text exports.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// Read parses content into the intermediate dataset. Empty input yields a
// valid dataset with one empty deck rather than an error.
func (r *Reader) Read(content string, opts Options) (*entities.ParsedAnkiData, error) {
	rows := splitRows(content)

	hasHeader := false
	if opts.HasHeader != nil {
		hasHeader = *opts.HasHeader
	} else if len(rows) > 0 {
		hasHeader = looksLikeHeader(rows[0])
	}

	var header []string
	if hasHeader && len(rows) > 0 {
		header = rows[0]
		rows = rows[1:]
	}

	columns := columnCount(rows, header)

	tagsColumn := -1
	if opts.TagsColumn != nil {
		tagsColumn = *opts.TagsColumn
	} else if columns >= 3 {
		tagsColumn = detectTagsColumn(rows, columns)
	}

	fieldColumns := columns
	if tagsColumn >= 0 && tagsColumn < columns {
		fieldColumns = columns - 1
	}
	fieldNames := resolveFieldNames(opts.FieldNames, header, fieldColumns, tagsColumn)

	parsed := entities.NewParsedAnkiData()

	deckName := opts.DeckName
	if deckName == "" {
		deckName = defaultDeckName
	}
	parsed.Decks[syntheticDeckID] = entities.DeckInfo{ID: syntheticDeckID, Name: deckName}
	parsed.NoteTypes[syntheticNoteTypeID] = syntheticNoteType(fieldNames)

	for i, row := range rows {
		noteID := int64(i + 1)
		fields := make([]string, 0, fieldColumns)
		for col := 0; col < len(row) && len(fields) < fieldColumns; col++ {
			if col == tagsColumn {
				continue
			}
			fields = append(fields, row[col])
		}
		for len(fields) < fieldColumns {
			fields = append(fields, "")
		}
		note := entities.Note{
			ID:         noteID,
			NoteTypeID: syntheticNoteTypeID,
			Fields:     fields,
		}
		if tagsColumn >= 0 && tagsColumn < len(row) {
			note.Tags = strings.Fields(row[tagsColumn])
		}
		if note.Tags == nil {
			note.Tags = []string{}
		}
		parsed.Notes[noteID] = note
		parsed.Cards = append(parsed.Cards, entities.Card{
			ID:     noteID,
			NoteID: noteID,
			DeckID: syntheticDeckID,
		})
	}

	return parsed, nil
}

// splitRows splits content into non-empty logical lines, tolerating LF,
// CRLF, and bare CR line endings, and unescapes each field.
func splitRows(content string) [][]string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var rows [][]string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		for i, f := range fields {
			fields[i] = unescape(f)
		}
		rows = append(rows, fields)
	}
	return rows
}

// unescape handles the fixed set of backslash escapes: \t, \n, and \\.
// Unrecognized sequences pass through verbatim.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 't':
			b.WriteByte('\t')
			i++
		case 'n':
			b.WriteByte('\n')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// looksLikeHeader decides whether the first row is a header. Markup or very
// long values rule it out; otherwise enough fields must match the common
// header words, with the required fraction growing with column count.
func looksLikeHeader(row []string) bool {
	for _, field := range row {
		if len(field) > 100 {
			return false
		}
		if strings.ContainsRune(field, '<') && strings.ContainsRune(field, '>') {
			return false
		}
	}

	matches := 0
	for _, field := range row {
		if headerWords[strings.ToLower(strings.TrimSpace(field))] {
			matches++
		}
	}
	required := 1
	if len(row) > 3 {
		required = (len(row) + 2) / 3
	}
	return matches >= required
}

func columnCount(rows [][]string, header []string) int {
	columns := len(header)
	for _, row := range rows {
		if len(row) > columns {
			columns = len(row)
		}
	}
	return columns
}

// detectTagsColumn checks whether the last column behaves like a tags
// column: no markup anywhere, no suspiciously long unbroken values, and the
// sampled values either contain space-separated tokens or are empty
// throughout.
func detectTagsColumn(rows [][]string, columns int) int {
	last := columns - 1
	sawTokens := false
	sawValue := false

	sampled := 0
	for _, row := range rows {
		if sampled == maxSampleRows {
			break
		}
		sampled++
		if last >= len(row) {
			continue
		}
		value := row[last]
		if value == "" {
			continue
		}
		sawValue = true
		if strings.ContainsRune(value, '<') && strings.ContainsRune(value, '>') {
			return -1
		}
		if len(value) > 100 && !strings.ContainsAny(value, " \t") {
			return -1
		}
		if strings.ContainsRune(strings.TrimSpace(value), ' ') {
			sawTokens = true
		}
	}

	if !sawValue || sawTokens {
		return last
	}
	return -1
}

func resolveFieldNames(declared, header []string, fieldColumns, tagsColumn int) []string {
	names := make([]string, fieldColumns)
	for i := range names {
		switch {
		case i < len(declared) && declared[i] != "":
			names[i] = declared[i]
		case i < len(header) && i != tagsColumn && strings.TrimSpace(header[i]) != "":
			names[i] = strings.TrimSpace(header[i])
		case fieldColumns == 2 && i == 0:
			names[i] = "Front"
		case fieldColumns == 2 && i == 1:
			names[i] = "Back"
		default:
			names[i] = fmt.Sprintf("Field %d", i+1)
		}
	}
	return names
}

func syntheticNoteType(fieldNames []string) entities.NoteType {
	nt := entities.NoteType{
		ID:   syntheticNoteTypeID,
		Name: "Imported",
		Type: entities.NoteTypeStandard,
	}
	for i, name := range fieldNames {
		nt.Fields = append(nt.Fields, entities.NoteTypeField{Name: name, Ord: i})
	}
	nt.Templates = append(nt.Templates, entities.NoteTypeTemplate{Name: "Card 1", Ord: 0})
	return nt
}
