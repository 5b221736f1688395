package entities

// FieldSeparator is the unit-separator control character Anki uses to join
// the fields of one note into a single column value.
const FieldSeparator = "\x1f"

// DeckSeparator joins nested deck name segments in a flat deck name,
// e.g. "Parent::Child::Grandchild".
const DeckSeparator = "::"

// Note type kinds as stored in the collection's model definitions.
const (
	NoteTypeStandard = 0
	NoteTypeCloze    = 1
)

// Note is the data record backing one or more cards. Fields keep the order
// declared by the note type; tags are whitespace-split from the source.
type Note struct {
	ID         int64
	GUID       string
	NoteTypeID int64
	Fields     []string
	Tags       []string
	Mod        int64
}

// Card is one schedulable flashcard generated from a note plus a template
// ordinal. Scheduling columns are carried verbatim from the source; a
// negative Queue value means the card is suspended.
type Card struct {
	ID       int64
	NoteID   int64
	DeckID   int64
	Ord      int
	Type     int
	Queue    int
	Due      int64
	Interval int64
	Factor   int64
	Reps     int64
	Lapses   int64
}

// Suspended reports whether the card sits in a suspended queue.
func (c Card) Suspended() bool {
	return c.Queue < 0
}

// DeckInfo describes one deck as stored in the source. Name may contain
// DeckSeparator sequences; that flat name is the only encoding of nesting.
type DeckInfo struct {
	ID   int64
	Name string
	Desc string
	Conf int64
}

// NoteTypeField is one field definition of a note type.
type NoteTypeField struct {
	Name string
	Ord  int
	Font string
	Size int
}

// NoteTypeTemplate is one card template of a note type. Question and answer
// formats are preserved as metadata only and never evaluated.
type NoteTypeTemplate struct {
	Name           string
	Ord            int
	QuestionFormat string
	AnswerFormat   string
}

// NoteType is the schema shared by a family of notes.
type NoteType struct {
	ID        int64
	Name      string
	Type      int
	Fields    []NoteTypeField
	Templates []NoteTypeTemplate
}

// Cloze reports whether notes of this type use cloze-deletion markup.
func (nt NoteType) Cloze() bool {
	return nt.Type == NoteTypeCloze
}

// FieldNames returns the field names in declaration order.
func (nt NoteType) FieldNames() []string {
	names := make([]string, len(nt.Fields))
	for i, f := range nt.Fields {
		names[i] = f.Name
	}
	return names
}

// AnkiMetadata carries the collection-level counters unchanged.
type AnkiMetadata struct {
	CreatedAt     int64
	ModifiedAt    int64
	SchemaVersion int
	Legacy        bool
}

// ParsedAnkiData is the single normal form every format-specific reader
// produces before output building. Maps are keyed by source ids.
type ParsedAnkiData struct {
	Notes     map[int64]Note
	Cards     []Card
	Decks     map[int64]DeckInfo
	NoteTypes map[int64]NoteType
	Metadata  AnkiMetadata
}

// NewParsedAnkiData returns an empty, valid dataset.
func NewParsedAnkiData() *ParsedAnkiData {
	return &ParsedAnkiData{
		Notes:     make(map[int64]Note),
		Decks:     make(map[int64]DeckInfo),
		NoteTypes: make(map[int64]NoteType),
	}
}
