package entities

// CardType discriminates the output card union.
type CardType string

const (
	CardTypeBasic  CardType = "basic"
	CardTypeCloze  CardType = "cloze"
	CardTypeCustom CardType = "custom"
)

// CardStats carries the raw review counters of one card. Attached only when
// the caller asked for stats; never interpreted.
type CardStats struct {
	Due      int64 `json:"due"`
	Interval int64 `json:"interval"`
	Factor   int64 `json:"factor"`
	Reps     int64 `json:"reps"`
	Lapses   int64 `json:"lapses"`
}

// ClozeVariation is one generated blank of a cloze card: Text is the full
// field with this index hidden and every other index revealed, Answer is the
// cleaned answer for this index.
type ClozeVariation struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Answer string `json:"answer"`
}

// OutputCard is the tagged union of the three card shapes. Type selects
// which optional members are populated:
//
//	basic  — Front and Back resolved from the front-/back-named fields
//	cloze  — Text plus one ClozeVariation per distinct cloze index
//	custom — NoteTypeName of the originating note type
//
// Fields always holds every cleaned field keyed by field name, and Tags is
// always present (possibly empty), never null.
type OutputCard struct {
	ID           int64             `json:"id"`
	Type         CardType          `json:"type"`
	Fields       map[string]string `json:"fields"`
	Tags         []string          `json:"tags"`
	Front        string            `json:"front,omitempty"`
	Back         string            `json:"back,omitempty"`
	Text         string            `json:"text,omitempty"`
	Variations   []ClozeVariation  `json:"variations,omitempty"`
	NoteTypeName string            `json:"noteTypeName,omitempty"`
	Suspended    bool              `json:"suspended,omitempty"`
	Stats        *CardStats        `json:"stats,omitempty"`
}

// OutputDeck is one node of the output tree. Name is a single path segment,
// not the separator-joined full name.
type OutputDeck struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Cards       []OutputCard  `json:"cards"`
	Subdecks    []*OutputDeck `json:"subdecks,omitempty"`
}

// ConversionMetadata summarizes one conversion run.
type ConversionMetadata struct {
	TotalDecks       int      `json:"totalDecks"`
	TotalCards       int      `json:"totalCards"`
	NoteTypes        []string `json:"noteTypes"`
	SourceFormat     string   `json:"sourceFormat"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
}

// ConversionResult is the top-level output document.
type ConversionResult struct {
	Decks    []*OutputDeck      `json:"decks"`
	Metadata ConversionMetadata `json:"metadata"`
}
