// Package archive opens ZIP-wrapped deck packages and extracts the embedded
// collection database plus an optional media manifest. The package and
// collection-package formats share all logic and differ only in which
// manifest filenames they recognize.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/mkowalik/ankiconv/internal/errors"
)

// maxCompressionRatio is the zip-bomb guard: archives whose declared
// uncompressed size exceeds this multiple of the compressed input are
// rejected before any entry is materialized.
const maxCompressionRatio = 10

// maxListedEntries caps how many archive entry names a missing-database
// error reports.
const maxListedEntries = 10

// databaseCandidates is the ordered list of collection database filenames,
// newer schema first.
var databaseCandidates = []string{"collection.anki21", "collection.anki2"}

// Result carries the extracted database bytes and, when present, the parsed
// media manifest mapping archive entry names to original filenames.
type Result struct {
	Database     []byte
	DatabaseName string
	Manifest     map[string]string
	ManifestName string
}

// Extractor extracts deck packages. Manifest candidate names are the only
// per-format variation.
type Extractor struct {
	manifestCandidates []string
}

// NewPackageExtractor handles the .apkg package format.
func NewPackageExtractor() *Extractor {
	return &Extractor{manifestCandidates: []string{"media"}}
}

// NewCollectionExtractor handles the .colpkg collection-package format,
// which adds the newer "media21" manifest name and prefers it.
func NewCollectionExtractor() *Extractor {
	return &Extractor{manifestCandidates: []string{"media21", "media"}}
}

// Extract opens data as a ZIP archive, validates it against corruption and
// decompression bombs, and pulls out the collection database and manifest.
func (e *Extractor) Extract(data []byte) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.NewCorruptedFile("failed to open archive", err)
	}

	if len(reader.File) == 0 {
		return nil, apperrors.NewCorruptedFile("archive contains no entries", nil)
	}

	if err := checkCompressionRatio(reader, int64(len(data))); err != nil {
		return nil, err
	}

	dbFile, dbName := findEntry(reader, databaseCandidates)
	if dbFile == nil {
		return nil, missingDatabaseError(reader)
	}

	dbBytes, err := readEntry(dbFile)
	if err != nil {
		return nil, apperrors.NewExtractionError(
			fmt.Sprintf("failed to read archive entry %q", dbName), err)
	}
	if len(dbBytes) == 0 {
		return nil, apperrors.NewCorruptedFile(
			fmt.Sprintf("archive entry %q is empty", dbName), nil)
	}

	result := &Result{Database: dbBytes, DatabaseName: dbName}

	// The media manifest is optional: absence or malformed content yields
	// "no manifest" rather than an error.
	if manifestFile, manifestName := findEntry(reader, e.manifestCandidates); manifestFile != nil {
		if manifest := readManifest(manifestFile); manifest != nil {
			result.Manifest = manifest
			result.ManifestName = manifestName
		}
	}

	return result, nil
}

func checkCompressionRatio(reader *zip.Reader, compressedSize int64) error {
	if compressedSize <= 0 {
		return nil
	}
	var total uint64
	for _, f := range reader.File {
		total += f.UncompressedSize64
	}
	ratio := float64(total) / float64(compressedSize)
	if ratio > maxCompressionRatio {
		e := apperrors.NewCorruptedFile(
			fmt.Sprintf("archive expands to %d bytes from %d compressed (ratio %.1f exceeds %d)",
				total, compressedSize, ratio, maxCompressionRatio), nil)
		return e.WithDetail("uncompressedSize", total).WithDetail("compressedSize", compressedSize)
	}
	return nil
}

func findEntry(reader *zip.Reader, candidates []string) (*zip.File, string) {
	for _, name := range candidates {
		for _, f := range reader.File {
			if f.Name == name {
				return f, name
			}
		}
	}
	return nil, ""
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func readManifest(f *zip.File) map[string]string {
	raw, err := readEntry(f)
	if err != nil {
		return nil
	}
	var manifest map[string]string
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil
	}
	return manifest
}

func missingDatabaseError(reader *zip.Reader) error {
	names := make([]string, 0, maxListedEntries)
	for _, f := range reader.File {
		if len(names) == maxListedEntries {
			names = append(names, "...")
			break
		}
		names = append(names, f.Name)
	}
	e := apperrors.NewCorruptedFile(
		fmt.Sprintf("no collection database (%s) in archive; found: %s",
			strings.Join(databaseCandidates, ", "), strings.Join(names, ", ")), nil)
	return e.WithDetail("entries", names)
}
