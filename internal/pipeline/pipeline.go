// Package pipeline sequences the conversion stages: format detection,
// archive extraction, database or text reading, and output building, with
// weighted monotonic progress reporting and taxonomy errors.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mkowalik/ankiconv/internal/ankidb"
	"github.com/mkowalik/ankiconv/internal/archive"
	"github.com/mkowalik/ankiconv/internal/builder"
	"github.com/mkowalik/ankiconv/internal/detect"
	"github.com/mkowalik/ankiconv/internal/entities"
	apperrors "github.com/mkowalik/ankiconv/internal/errors"
	"github.com/mkowalik/ankiconv/internal/logger"
	"github.com/mkowalik/ankiconv/internal/tsv"
)

// Stage names the five ordered pipeline stages.
type Stage string

const (
	StageDetecting    Stage = "detecting"
	StageParsing      Stage = "parsing"
	StageExtracting   Stage = "extracting"
	StageTransforming Stage = "transforming"
	StageBuilding     Stage = "building"
)

// stageWeights assigns each stage its share of the 0–100 progress range.
// The weights sum to exactly 100.
var stageWeights = map[Stage]int{
	StageDetecting:    5,
	StageParsing:      40,
	StageExtracting:   20,
	StageTransforming: 20,
	StageBuilding:     15,
}

// stageOrder fixes the execution sequence.
var stageOrder = []Stage{StageDetecting, StageParsing, StageExtracting, StageTransforming, StageBuilding}

// Progress is one progress event. Progress values are integers in 0–100 and
// strictly increase over the lifetime of a conversion.
type Progress struct {
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// ProgressFunc receives progress events. May be nil.
type ProgressFunc func(Progress)

// Options configure one conversion.
type Options struct {
	// Format forces a specific input format, bypassing detection.
	Format detect.Format
	// SizeLimit rejects inputs larger than this many bytes before any
	// parsing. Zero disables the check.
	SizeLimit        int64
	IncludeStats     bool
	IncludeSuspended bool
	IncludeTags      bool
	// TSV carries delimited-text options, used only for text inputs.
	TSV tsv.Options
}

// Pipeline runs conversions. It is stateless and safe for concurrent use.
type Pipeline struct {
	packageExtractor    *archive.Extractor
	collectionExtractor *archive.Extractor
	dbReader            *ankidb.Reader
	textReader          *tsv.Reader
	builder             *builder.Builder
	log                 *logger.Logger
}

// New creates a Pipeline logging through log.
func New(log *logger.Logger) *Pipeline {
	return &Pipeline{
		packageExtractor:    archive.NewPackageExtractor(),
		collectionExtractor: archive.NewCollectionExtractor(),
		dbReader:            ankidb.NewReader(),
		textReader:          tsv.NewReader(),
		builder:             builder.NewBuilder(),
		log:                 log,
	}
}

// Convert runs the full pipeline over data. On failure a taxonomy error is
// returned and no further progress is emitted; any error outside the
// taxonomy is wrapped, never downgraded.
func (p *Pipeline) Convert(ctx context.Context, data []byte, filename string, opts Options, onProgress ProgressFunc) (*entities.ConversionResult, error) {
	start := time.Now()
	tracker := newTracker(onProgress)

	if opts.SizeLimit > 0 && int64(len(data)) > opts.SizeLimit {
		return nil, apperrors.NewFileTooLarge(int64(len(data)), opts.SizeLimit)
	}

	format := opts.Format
	if format == "" || format == detect.FormatUnknown {
		result := detect.Detect(data, filename)
		if result.Format == detect.FormatUnknown {
			return nil, apperrors.NewInvalidFormat("could not recognize the input format")
		}
		format = result.Format
		p.log.Debug("detected input format",
			"format", string(format), "confidence", result.Confidence.String())
	}
	tracker.emit(StageDetecting, 1.0, fmt.Sprintf("Detected %s input", format))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := p.parse(ctx, data, format, opts, tracker)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	tracker.emit(StageExtracting, 1.0, "Extracted collection data")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tracker.emit(StageTransforming, 1.0, "Transformed cards")
	result := p.builder.Build(parsed, builder.Options{
		IncludeStats:     opts.IncludeStats,
		IncludeSuspended: opts.IncludeSuspended,
		IncludeTags:      opts.IncludeTags,
		StartedAt:        start,
	})
	tracker.emit(StageBuilding, 1.0, "Built deck hierarchy")

	p.log.Info("conversion complete",
		"format", string(format),
		"decks", result.Metadata.TotalDecks,
		"cards", result.Metadata.TotalCards,
		"elapsed", time.Since(start).String())
	return result, nil
}

// parse routes the input through the format-specific reader, emitting the
// parsing-stage progress band.
func (p *Pipeline) parse(ctx context.Context, data []byte, format detect.Format, opts Options, tracker *tracker) (*entities.ParsedAnkiData, error) {
	switch format {
	case detect.FormatPackage, detect.FormatCollectionPackage:
		extractor := p.packageExtractor
		if format == detect.FormatCollectionPackage {
			extractor = p.collectionExtractor
		}
		tracker.emit(StageParsing, 0.1, "Opening archive")
		extracted, err := extractor.Extract(data)
		if err != nil {
			return nil, err
		}
		tracker.emit(StageParsing, 1.0, fmt.Sprintf("Extracted %s", extracted.DatabaseName))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return p.dbReader.Read(extracted.Database)

	case detect.FormatDatabase:
		tracker.emit(StageParsing, 1.0, "Opening collection database")
		return p.dbReader.Read(data)

	case detect.FormatText:
		tracker.emit(StageParsing, 1.0, "Parsing delimited text")
		return p.textReader.Read(string(data), opts.TSV)

	default:
		return nil, apperrors.NewInvalidFormat(fmt.Sprintf("unsupported format %q", format))
	}
}

// tracker maps stage-relative fractions into the global 0–100 range and
// enforces strict monotonicity by suppressing non-increasing values.
type tracker struct {
	onProgress ProgressFunc
	offsets    map[Stage]int
	last       int
}

func newTracker(onProgress ProgressFunc) *tracker {
	offsets := make(map[Stage]int, len(stageOrder))
	total := 0
	for _, stage := range stageOrder {
		offsets[stage] = total
		total += stageWeights[stage]
	}
	return &tracker{onProgress: onProgress, offsets: offsets, last: -1}
}

// emit reports fraction (0..1) of the given stage's band. Values that do
// not strictly exceed the last emitted value are dropped.
func (t *tracker) emit(stage Stage, fraction float64, message string) {
	if t.onProgress == nil {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	value := t.offsets[stage] + int(fraction*float64(stageWeights[stage]))
	if value <= t.last {
		return
	}
	t.last = value
	t.onProgress(Progress{Stage: stage, Progress: value, Message: message})
}
