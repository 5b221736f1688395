package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mkowalik/ankiconv/internal/config"
	"github.com/mkowalik/ankiconv/internal/detect"
	"github.com/mkowalik/ankiconv/internal/logger"
	"github.com/mkowalik/ankiconv/internal/pipeline"
)

// ConvertCommand converts one deck export file to JSON from the command
// line, using the batch size limit.
type ConvertCommand struct {
	InputPath        string
	OutputPath       string
	Format           string
	IncludeStats     bool
	IncludeSuspended bool
	DeckName         string
	Verbose          bool
}

func NewConvertCommand() *ConvertCommand {
	return &ConvertCommand{}
}

func (cmd *ConvertCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)

	fs.StringVar(&cmd.InputPath, "file", "", "Path to the deck export file (required)")
	fs.StringVar(&cmd.OutputPath, "output", "", "Path for the JSON output (default: stdout)")
	fs.StringVar(&cmd.Format, "format", "", "Force input format: apkg, colpkg, anki2, text (default: auto-detect)")
	fs.BoolVar(&cmd.IncludeStats, "stats", false, "Attach review counters to each card")
	fs.BoolVar(&cmd.IncludeSuspended, "suspended", false, "Keep suspended cards, marked as such")
	fs.StringVar(&cmd.DeckName, "deck-name", "", "Deck name for text imports (default: Imported)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print progress events")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s convert -file <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Convert an Anki deck export (.apkg, .colpkg, collection database, or\n")
		fmt.Fprintf(os.Stderr, "tab-separated text) into a normalized JSON document.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s convert -file deck.apkg -output deck.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s convert -file export.txt -deck-name Spanish -suspended\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.InputPath == "" {
		return fmt.Errorf("required flag -file not provided")
	}
	return nil
}

func (cmd *ConvertCommand) Run() error {
	cfg := config.NewConfig()

	logMode := "prod"
	if cmd.Verbose {
		logMode = "dev"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	info, err := os.Stat(cmd.InputPath)
	if err != nil {
		return fmt.Errorf("input file not found: %s", cmd.InputPath)
	}
	if info.Size() > cfg.Limits.BatchBytes {
		return fmt.Errorf("input file is %d bytes, above the %d byte batch limit",
			info.Size(), cfg.Limits.BatchBytes)
	}

	data, err := os.ReadFile(cmd.InputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	opts := pipeline.Options{
		Format:           detect.Format(cmd.Format),
		SizeLimit:        cfg.Limits.BatchBytes,
		IncludeStats:     cmd.IncludeStats,
		IncludeSuspended: cmd.IncludeSuspended,
		IncludeTags:      true,
	}
	opts.TSV.DeckName = cmd.DeckName

	var onProgress pipeline.ProgressFunc
	if cmd.Verbose {
		onProgress = func(p pipeline.Progress) {
			fmt.Fprintf(os.Stderr, "[%3d%%] %s: %s\n", p.Progress, p.Stage, p.Message)
		}
	}

	result, err := pipeline.New(log).Convert(context.Background(), data, cmd.InputPath, opts, onProgress)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if cmd.OutputPath == "" {
		fmt.Println(string(encoded))
		return nil
	}
	if err := os.WriteFile(cmd.OutputPath, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (%d decks, %d cards)\n",
		cmd.OutputPath, result.Metadata.TotalDecks, result.Metadata.TotalCards)
	return nil
}
