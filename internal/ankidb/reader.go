// Package ankidb reads an Anki collection SQLite database into the shared
// intermediate dataset. The reader is schema-aware but policy-free: it keeps
// suspended cards, raw scheduling counters, and unusual rows for downstream
// layers to filter.
package ankidb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/mkowalik/ankiconv/internal/entities"
	apperrors "github.com/mkowalik/ankiconv/internal/errors"
)

// Known schema version range. Versions below legacySchemaVersion are valid
// but flagged legacy; versions outside the range are rejected.
const (
	minSchemaVersion    = 1
	legacySchemaVersion = 11
	maxSchemaVersion    = 18
)

// Reader extracts notes, cards, decks, and note types from collection
// database bytes.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// Read opens data as an SQLite collection database and extracts the full
// intermediate dataset. Empty collections are valid and yield an empty
// dataset, not an error.
func (r *Reader) Read(data []byte) (*entities.ParsedAnkiData, error) {
	dbPath, cleanup, err := materialize(data)
	if err != nil {
		return nil, apperrors.NewCorruptedFile("failed to stage database for reading", err)
	}
	defer cleanup()

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&immutable=1")
	if err != nil {
		return nil, apperrors.NewCorruptedFile("failed to open database", err)
	}
	defer db.Close()

	parsed := entities.NewParsedAnkiData()

	if err := readCollectionRow(db, parsed); err != nil {
		return nil, err
	}
	if err := readNotes(db, parsed); err != nil {
		return nil, err
	}
	if err := readCards(db, parsed); err != nil {
		return nil, err
	}

	return parsed, nil
}

// materialize writes the in-memory database bytes to a temp file so the
// driver can open them. The returned cleanup removes the file.
func materialize(data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "ankiconv-collection-*.db")
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

// readCollectionRow reads the single col row: schema version, timestamps,
// and the two JSON blobs holding deck and note-type definitions.
func readCollectionRow(db *sql.DB, parsed *entities.ParsedAnkiData) error {
	var (
		crt, mod, scm int64
		ver           int
		decksJSON     string
		modelsJSON    string
	)
	row := db.QueryRow(`SELECT crt, mod, scm, ver, decks, models FROM col LIMIT 1`)
	if err := row.Scan(&crt, &mod, &scm, &ver, &decksJSON, &modelsJSON); err != nil {
		return apperrors.NewCorruptedFile("collection metadata table is missing or unreadable", err)
	}

	if ver < minSchemaVersion || ver > maxSchemaVersion {
		return apperrors.NewUnsupportedVersion(ver)
	}

	parsed.Metadata = entities.AnkiMetadata{
		CreatedAt:     crt,
		ModifiedAt:    mod,
		SchemaVersion: ver,
		Legacy:        ver < legacySchemaVersion,
	}

	decks, err := parseDecks(decksJSON)
	if err != nil {
		return apperrors.NewParseError("failed to parse deck definitions", err)
	}
	parsed.Decks = decks

	noteTypes, err := parseNoteTypes(modelsJSON)
	if err != nil {
		return apperrors.NewParseError("failed to parse note type definitions", err)
	}
	parsed.NoteTypes = noteTypes

	return nil
}

type deckJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Desc string `json:"desc"`
	Conf int64  `json:"conf"`
}

func parseDecks(blob string) (map[int64]entities.DeckInfo, error) {
	decks := make(map[int64]entities.DeckInfo)
	if strings.TrimSpace(blob) == "" {
		return decks, nil
	}
	var raw map[string]deckJSON
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, err
	}
	for key, d := range raw {
		id := d.ID
		if id == 0 {
			// Older exports omit the embedded id; the map key carries it.
			parsedID, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("deck key %q is not an id: %w", key, err)
			}
			id = parsedID
		}
		decks[id] = entities.DeckInfo{ID: id, Name: d.Name, Desc: d.Desc, Conf: d.Conf}
	}
	return decks, nil
}

type noteTypeJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
	Flds []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
		Font string `json:"font"`
		Size int    `json:"size"`
	} `json:"flds"`
	Tmpls []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
		Qfmt string `json:"qfmt"`
		Afmt string `json:"afmt"`
	} `json:"tmpls"`
}

func parseNoteTypes(blob string) (map[int64]entities.NoteType, error) {
	noteTypes := make(map[int64]entities.NoteType)
	if strings.TrimSpace(blob) == "" {
		return noteTypes, nil
	}
	var raw map[string]noteTypeJSON
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, err
	}
	for key, m := range raw {
		id := m.ID
		if id == 0 {
			parsedID, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("note type key %q is not an id: %w", key, err)
			}
			id = parsedID
		}
		nt := entities.NoteType{ID: id, Name: m.Name, Type: m.Type}
		for _, f := range m.Flds {
			nt.Fields = append(nt.Fields, entities.NoteTypeField{
				Name: f.Name, Ord: f.Ord, Font: f.Font, Size: f.Size,
			})
		}
		for _, t := range m.Tmpls {
			nt.Templates = append(nt.Templates, entities.NoteTypeTemplate{
				Name: t.Name, Ord: t.Ord, QuestionFormat: t.Qfmt, AnswerFormat: t.Afmt,
			})
		}
		noteTypes[id] = nt
	}
	return noteTypes, nil
}

func readNotes(db *sql.DB, parsed *entities.ParsedAnkiData) error {
	rows, err := db.Query(`SELECT id, guid, mid, mod, tags, flds FROM notes`)
	if err != nil {
		return apperrors.NewCorruptedFile("failed to query notes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			note       entities.Note
			tags, flds string
		)
		if err := rows.Scan(&note.ID, &note.GUID, &note.NoteTypeID, &note.Mod, &tags, &flds); err != nil {
			return apperrors.NewCorruptedFile("failed to scan note row", err)
		}
		note.Fields = strings.Split(flds, entities.FieldSeparator)
		note.Tags = strings.Fields(tags)
		parsed.Notes[note.ID] = note
	}
	if err := rows.Err(); err != nil {
		return apperrors.NewCorruptedFile("error iterating note rows", err)
	}
	return nil
}

func readCards(db *sql.DB, parsed *entities.ParsedAnkiData) error {
	rows, err := db.Query(`SELECT id, nid, did, ord, type, queue, due, ivl, factor, reps, lapses FROM cards`)
	if err != nil {
		return apperrors.NewCorruptedFile("failed to query cards", err)
	}
	defer rows.Close()

	for rows.Next() {
		var card entities.Card
		if err := rows.Scan(
			&card.ID, &card.NoteID, &card.DeckID, &card.Ord, &card.Type,
			&card.Queue, &card.Due, &card.Interval, &card.Factor, &card.Reps, &card.Lapses,
		); err != nil {
			return apperrors.NewCorruptedFile("failed to scan card row", err)
		}
		parsed.Cards = append(parsed.Cards, card)
	}
	if err := rows.Err(); err != nil {
		return apperrors.NewCorruptedFile("error iterating card rows", err)
	}
	return nil
}
