package ankidb

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkowalik/ankiconv/internal/entities"
	apperrors "github.com/mkowalik/ankiconv/internal/errors"
)

const fixtureDecks = `{
	"1": {"id": 1, "name": "Default", "desc": "", "conf": 1},
	"1700000001": {"id": 1700000001, "name": "Spanish::Verbs", "desc": "Irregular verbs", "conf": 1}
}`

const fixtureModels = `{
	"1700000100": {
		"id": 1700000100, "name": "Basic", "type": 0,
		"flds": [
			{"name": "Front", "ord": 0, "font": "Arial", "size": 20},
			{"name": "Back", "ord": 1, "font": "Arial", "size": 20}
		],
		"tmpls": [{"name": "Card 1", "ord": 0, "qfmt": "{{Front}}", "afmt": "{{Back}}"}]
	},
	"1700000200": {
		"id": 1700000200, "name": "Cloze", "type": 1,
		"flds": [{"name": "Text", "ord": 0, "font": "Arial", "size": 20}],
		"tmpls": [{"name": "Cloze", "ord": 0, "qfmt": "{{cloze:Text}}", "afmt": "{{cloze:Text}}"}]
	}
}`

type fixture struct {
	version int
	decks   string
	models  string
	notes   [][]any
	cards   [][]any
}

// buildCollection writes a collection database to a temp file and returns
// its raw bytes, the way the reader receives them.
func buildCollection(t *testing.T, fx fixture) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collection.anki2")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE col (
			id INTEGER PRIMARY KEY, crt INTEGER, mod INTEGER, scm INTEGER,
			ver INTEGER, dty INTEGER, usn INTEGER, ls INTEGER,
			conf TEXT, models TEXT, decks TEXT, dconf TEXT, tags TEXT
		);
		CREATE TABLE notes (
			id INTEGER PRIMARY KEY, guid TEXT, mid INTEGER, mod INTEGER,
			usn INTEGER, tags TEXT, flds TEXT, sfld TEXT,
			csum INTEGER, flags INTEGER, data TEXT
		);
		CREATE TABLE cards (
			id INTEGER PRIMARY KEY, nid INTEGER, did INTEGER, ord INTEGER,
			mod INTEGER, usn INTEGER, type INTEGER, queue INTEGER,
			due INTEGER, ivl INTEGER, factor INTEGER, reps INTEGER,
			lapses INTEGER, left INTEGER, odue INTEGER, odid INTEGER,
			flags INTEGER, data TEXT
		);
	`)
	require.NoError(t, err)

	_, err = db.Exec(
		`INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		 VALUES (1, 1600000000, 1700000000, 1700000000, ?, 0, 0, 0, '{}', ?, ?, '{}', '{}')`,
		fx.version, fx.models, fx.decks)
	require.NoError(t, err)

	for _, n := range fx.notes {
		_, err = db.Exec(
			`INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
			 VALUES (?, ?, ?, ?, 0, ?, ?, '', 0, 0, '')`, n...)
		require.NoError(t, err)
	}
	for _, c := range fx.cards {
		_, err = db.Exec(
			`INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left, odue, odid, flags, data)
			 VALUES (?, ?, ?, ?, 0, 0, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0, '')`, c...)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func defaultFixture() fixture {
	return fixture{
		version: 11,
		decks:   fixtureDecks,
		models:  fixtureModels,
		notes: [][]any{
			// id, guid, mid, mod, tags, flds
			{101, "guid-a", 1700000100, 1700000010, " spanish verbs ", "hola\x1fhello"},
			{102, "guid-b", 1700000200, 1700000020, "", "{{c1::ser}} means to be"},
		},
		cards: [][]any{
			// id, nid, did, ord, type, queue, due, ivl, factor, reps, lapses
			{201, 101, 1700000001, 0, 2, 2, 100, 15, 2500, 7, 1},
			{202, 101, 1700000001, 1, 0, 0, 0, 0, 0, 0, 0},
			{203, 102, 1, 0, 2, -1, 50, 30, 2300, 12, 3},
		},
	}
}

func TestRead_FullCollection(t *testing.T) {
	data := buildCollection(t, defaultFixture())

	parsed, err := NewReader().Read(data)
	require.NoError(t, err)

	assert.Equal(t, 11, parsed.Metadata.SchemaVersion)
	assert.False(t, parsed.Metadata.Legacy)
	assert.Equal(t, int64(1600000000), parsed.Metadata.CreatedAt)

	require.Len(t, parsed.Decks, 2)
	assert.Equal(t, "Spanish::Verbs", parsed.Decks[1700000001].Name)
	assert.Equal(t, "Irregular verbs", parsed.Decks[1700000001].Desc)

	require.Len(t, parsed.NoteTypes, 2)
	basic := parsed.NoteTypes[1700000100]
	assert.Equal(t, "Basic", basic.Name)
	assert.False(t, basic.Cloze())
	assert.Equal(t, []string{"Front", "Back"}, basic.FieldNames())
	assert.True(t, parsed.NoteTypes[1700000200].Cloze())

	require.Len(t, parsed.Notes, 2)
	noteA := parsed.Notes[101]
	assert.Equal(t, []string{"hola", "hello"}, noteA.Fields)
	assert.Equal(t, []string{"spanish", "verbs"}, noteA.Tags)
	assert.Empty(t, parsed.Notes[102].Tags)

	require.Len(t, parsed.Cards, 3)
}

func TestRead_SuspendedCardsKept(t *testing.T) {
	// The reader keeps suspended cards; filtering is a build-time decision.
	data := buildCollection(t, defaultFixture())

	parsed, err := NewReader().Read(data)
	require.NoError(t, err)

	suspended := 0
	for _, card := range parsed.Cards {
		if card.Suspended() {
			suspended++
			assert.Equal(t, int64(203), card.ID)
		}
	}
	assert.Equal(t, 1, suspended)
}

func TestRead_SchedulingCountersVerbatim(t *testing.T) {
	data := buildCollection(t, defaultFixture())

	parsed, err := NewReader().Read(data)
	require.NoError(t, err)

	var reviewed entities.Card
	for _, card := range parsed.Cards {
		if card.ID == 201 {
			reviewed = card
		}
	}
	assert.Equal(t, int64(100), reviewed.Due)
	assert.Equal(t, int64(15), reviewed.Interval)
	assert.Equal(t, int64(2500), reviewed.Factor)
	assert.Equal(t, int64(7), reviewed.Reps)
	assert.Equal(t, int64(1), reviewed.Lapses)
}

func TestRead_EmptyCollection(t *testing.T) {
	// A valid database with no notes or cards is an empty dataset, not an
	// error.
	fx := fixture{version: 11, decks: "{}", models: "{}"}
	data := buildCollection(t, fx)

	parsed, err := NewReader().Read(data)
	require.NoError(t, err)
	assert.Empty(t, parsed.Notes)
	assert.Empty(t, parsed.Cards)
	assert.Empty(t, parsed.Decks)
	assert.Empty(t, parsed.NoteTypes)
}

func TestRead_LegacySchemaFlagged(t *testing.T) {
	fx := defaultFixture()
	fx.version = 8
	data := buildCollection(t, fx)

	parsed, err := NewReader().Read(data)
	require.NoError(t, err)
	assert.True(t, parsed.Metadata.Legacy)
	assert.Equal(t, 8, parsed.Metadata.SchemaVersion)
}

func TestRead_UnsupportedVersion(t *testing.T) {
	tests := []struct {
		name    string
		version int
	}{
		{"too new", 99},
		{"zero", 0},
		{"negative", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := defaultFixture()
			fx.version = tt.version
			data := buildCollection(t, fx)

			_, err := NewReader().Read(data)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedVersion))

			var ce *apperrors.ConversionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.version, ce.Details["version"])
		})
	}
}

func TestRead_DeckIDFromMapKey(t *testing.T) {
	// Older exports omit the embedded deck id; the JSON map key carries it.
	fx := defaultFixture()
	fx.decks = `{"42": {"name": "Keyed", "desc": ""}}`
	data := buildCollection(t, fx)

	parsed, err := NewReader().Read(data)
	require.NoError(t, err)
	require.Contains(t, parsed.Decks, int64(42))
	assert.Equal(t, "Keyed", parsed.Decks[42].Name)
}

func TestRead_MalformedDeckJSON(t *testing.T) {
	fx := defaultFixture()
	fx.decks = `{"not valid`
	data := buildCollection(t, fx)

	_, err := NewReader().Read(data)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeParseError))
}

func TestRead_NotADatabase(t *testing.T) {
	_, err := NewReader().Read([]byte("this is not sqlite at all"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeCorruptedFile))
}

func TestRead_MissingColTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.anki2")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE unrelated (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = NewReader().Read(data)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeCorruptedFile))
}
