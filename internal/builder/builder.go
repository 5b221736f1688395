// Package builder turns the intermediate dataset into the hierarchical
// output document: it filters cards, reconstructs the deck tree from flat
// separator-joined names, classifies each card, and computes run metadata.
package builder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mkowalik/ankiconv/internal/cloze"
	"github.com/mkowalik/ankiconv/internal/entities"
	"github.com/mkowalik/ankiconv/internal/sanitize"
)

// basicFieldLimit is the classification threshold: note types with front-
// and back-named fields stay "basic" up to this many fields total.
const basicFieldLimit = 3

// Options control output building. IncludeTags is reserved and defaults to
// true; tags are always emitted today.
type Options struct {
	IncludeStats     bool
	IncludeSuspended bool
	IncludeTags      bool
	StartedAt        time.Time
}

// DefaultOptions returns the options used when the caller passes none.
func DefaultOptions() Options {
	return Options{IncludeTags: true}
}

// Builder assembles conversion results.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build produces the output document from parsed source data. Suspended
// cards are dropped unless opts.IncludeSuspended; a deck with zero surviving
// cards still appears with an empty card list.
func (b *Builder) Build(parsed *entities.ParsedAnkiData, opts Options) *entities.ConversionResult {
	start := opts.StartedAt
	if start.IsZero() {
		start = time.Now()
	}

	cardsByDeck := make(map[int64][]entities.Card)
	totalCards := 0
	for _, card := range parsed.Cards {
		if card.Suspended() && !opts.IncludeSuspended {
			continue
		}
		cardsByDeck[card.DeckID] = append(cardsByDeck[card.DeckID], card)
		totalCards++
	}

	tree := newDeckTree()
	for _, deck := range sortedDecks(parsed.Decks) {
		node := tree.insert(deck.Name)
		node.Description = deck.Desc
	}

	for deckID, cards := range cardsByDeck {
		sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
		node := tree.insert(deckName(parsed, deckID))
		for _, card := range cards {
			node.Cards = append(node.Cards, b.buildCard(parsed, card, opts))
		}
	}

	decks := tree.roots()
	return &entities.ConversionResult{
		Decks: decks,
		Metadata: entities.ConversionMetadata{
			TotalDecks:       countDecks(decks),
			TotalCards:       totalCards,
			NoteTypes:        noteTypeNames(parsed),
			SourceFormat:     formatLabel(parsed.Metadata),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}
}

func deckName(parsed *entities.ParsedAnkiData, deckID int64) string {
	if deck, ok := parsed.Decks[deckID]; ok {
		return deck.Name
	}
	// Cards referencing an unknown deck are collected under Default rather
	// than dropped.
	return "Default"
}

// buildCard classifies one card and produces the matching typed output. A
// dangling note reference degrades to a minimal custom card instead of
// failing the conversion.
func (b *Builder) buildCard(parsed *entities.ParsedAnkiData, card entities.Card, opts Options) entities.OutputCard {
	out := entities.OutputCard{
		ID:     card.ID,
		Type:   entities.CardTypeCustom,
		Fields: make(map[string]string),
		Tags:   []string{},
	}
	if card.Suspended() {
		out.Suspended = true
	}
	if opts.IncludeStats {
		out.Stats = &entities.CardStats{
			Due:      card.Due,
			Interval: card.Interval,
			Factor:   card.Factor,
			Reps:     card.Reps,
			Lapses:   card.Lapses,
		}
	}

	note, ok := parsed.Notes[card.NoteID]
	if !ok {
		return out
	}
	if note.Tags != nil {
		out.Tags = append(out.Tags, note.Tags...)
	}

	noteType, ok := parsed.NoteTypes[note.NoteTypeID]
	if !ok {
		noteType = entities.NoteType{Name: "Unknown"}
	}
	for i, raw := range note.Fields {
		out.Fields[fieldName(noteType, i)] = sanitize.Clean(raw)
	}

	switch {
	case noteType.Cloze():
		out.Type = entities.CardTypeCloze
		raw := clozeSource(note)
		out.Text = sanitize.Clean(cloze.Strip(raw))
		out.Variations = cloze.Extract(raw)
	case isBasic(noteType):
		out.Type = entities.CardTypeBasic
		out.Front = out.Fields[frontFieldName(noteType)]
		out.Back = out.Fields[backFieldName(noteType)]
	default:
		out.Type = entities.CardTypeCustom
		out.NoteTypeName = noteType.Name
	}
	return out
}

// clozeSource picks the field carrying cloze markers, falling back to the
// first field when none do.
func clozeSource(note entities.Note) string {
	for _, field := range note.Fields {
		if cloze.HasMarkers(field) {
			return field
		}
	}
	if len(note.Fields) > 0 {
		return note.Fields[0]
	}
	return ""
}

// isBasic keeps the inherited heuristic: a standard note type with both a
// front-named and a back-named field and at most three fields total.
func isBasic(nt entities.NoteType) bool {
	if nt.Type != entities.NoteTypeStandard || len(nt.Fields) > basicFieldLimit {
		return false
	}
	return frontFieldName(nt) != "" && backFieldName(nt) != ""
}

func frontFieldName(nt entities.NoteType) string {
	return namedField(nt, "front")
}

func backFieldName(nt entities.NoteType) string {
	return namedField(nt, "back")
}

func namedField(nt entities.NoteType, lower string) string {
	for _, f := range nt.Fields {
		if strings.EqualFold(f.Name, lower) {
			return f.Name
		}
	}
	return ""
}

func fieldName(nt entities.NoteType, ord int) string {
	if ord < len(nt.Fields) {
		return nt.Fields[ord].Name
	}
	return fmt.Sprintf("Field %d", ord+1)
}

func sortedDecks(decks map[int64]entities.DeckInfo) []entities.DeckInfo {
	out := make([]entities.DeckInfo, 0, len(decks))
	for _, d := range decks {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func noteTypeNames(parsed *entities.ParsedAnkiData) []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(parsed.NoteTypes))
	for _, nt := range parsed.NoteTypes {
		if !seen[nt.Name] {
			seen[nt.Name] = true
			names = append(names, nt.Name)
		}
	}
	sort.Strings(names)
	return names
}

// formatLabel derives a human-readable source label from the schema
// version. Version zero marks text imports, which carry no schema.
func formatLabel(meta entities.AnkiMetadata) string {
	switch {
	case meta.SchemaVersion == 0:
		return "Text export"
	case meta.Legacy:
		return "Anki 2.0 (legacy)"
	default:
		return "Anki 2.1"
	}
}

func countDecks(decks []*entities.OutputDeck) int {
	count := 0
	for _, d := range decks {
		count += 1 + countDecks(d.Subdecks)
	}
	return count
}

// deckTree builds the output hierarchy from flat separator-joined names
// using a path→node map, creating intermediate nodes as needed.
type deckTree struct {
	nodes map[string]*entities.OutputDeck
	order []string
}

func newDeckTree() *deckTree {
	return &deckTree{nodes: make(map[string]*entities.OutputDeck)}
}

// insert returns the node for the full deck name, creating it and any
// missing ancestors along the path.
func (t *deckTree) insert(name string) *entities.OutputDeck {
	segments := strings.Split(name, entities.DeckSeparator)
	var node *entities.OutputDeck
	path := ""
	for i, segment := range segments {
		if i == 0 {
			path = segment
		} else {
			path = path + entities.DeckSeparator + segment
		}
		existing, ok := t.nodes[path]
		if !ok {
			existing = &entities.OutputDeck{Name: segment, Cards: []entities.OutputCard{}}
			t.nodes[path] = existing
			t.order = append(t.order, path)
			if node != nil {
				node.Subdecks = append(node.Subdecks, existing)
			}
		}
		node = existing
	}
	return node
}

// roots returns the top-level decks sorted by name, with every subdeck list
// sorted as well.
func (t *deckTree) roots() []*entities.OutputDeck {
	var roots []*entities.OutputDeck
	for _, path := range t.order {
		if !strings.Contains(path, entities.DeckSeparator) {
			roots = append(roots, t.nodes[path])
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
	for _, node := range t.nodes {
		subs := node.Subdecks
		sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })
	}
	if roots == nil {
		roots = []*entities.OutputDeck{}
	}
	return roots
}
