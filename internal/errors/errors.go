package errors

import (
	"errors"
	"fmt"
)

// Error codes for the conversion error taxonomy. The set is closed: every
// error leaving a reader or the pipeline carries exactly one of these.
const (
	CodeInvalidFormat      = "INVALID_FORMAT"
	CodeCorruptedFile      = "CORRUPTED_FILE"
	CodeUnsupportedVersion = "UNSUPPORTED_VERSION"
	CodeParseError         = "PARSE_ERROR"
	CodeExtractionError    = "EXTRACTION_ERROR"
	CodeOutOfMemory        = "OUT_OF_MEMORY"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeUnknown            = "UNKNOWN_ERROR"
)

// recovery maps each code to user-facing guidance shown alongside the
// error message itself.
var recovery = map[string]string{
	CodeInvalidFormat:      "Check that the file is an .apkg, .colpkg, Anki database, or tab-separated export.",
	CodeCorruptedFile:      "The file appears damaged. Re-export the deck from the source application and try again.",
	CodeUnsupportedVersion: "This deck was created with an unsupported application version. Re-export it with a current version.",
	CodeParseError:         "The file content could not be parsed. Re-export the deck from the source application.",
	CodeExtractionError:    "An archive entry could not be read. Re-export the deck from the source application.",
	CodeOutOfMemory:        "The file is too large to process in memory. Try the batch tool or split the deck.",
	CodeFileTooLarge:       "The file exceeds the size limit. Use the batch tool for large files or split the deck.",
	CodeUnknown:            "An unexpected error occurred. Try again, or re-export the deck if it persists.",
}

// ConversionError is the single error type crossing package boundaries:
// a machine-readable code, a human message, optional structured details,
// and a recoverable flag for callers that retry.
type ConversionError struct {
	Code        string
	Message     string
	Details     map[string]any
	Recoverable bool
	Err         error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Recovery returns the user-facing recovery guidance for this error.
func (e *ConversionError) Recovery() string {
	if g, ok := recovery[e.Code]; ok {
		return g
	}
	return recovery[CodeUnknown]
}

// WithDetail attaches one structured detail and returns the error for
// chaining.
func (e *ConversionError) WithDetail(key string, value any) *ConversionError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func newError(code, message string, recoverable bool, err error) *ConversionError {
	return &ConversionError{Code: code, Message: message, Recoverable: recoverable, Err: err}
}

// NewInvalidFormat reports an unrecognized or unsupported container.
func NewInvalidFormat(message string) *ConversionError {
	return newError(CodeInvalidFormat, message, true, nil)
}

// NewCorruptedFile reports an archive or database failing structural
// validation, including zip-bomb and missing-database cases.
func NewCorruptedFile(message string, err error) *ConversionError {
	return newError(CodeCorruptedFile, message, false, err)
}

// NewUnsupportedVersion reports a schema version outside the known range.
func NewUnsupportedVersion(version int) *ConversionError {
	e := newError(CodeUnsupportedVersion, fmt.Sprintf("unsupported schema version %d", version), false, nil)
	return e.WithDetail("version", version)
}

// NewParseError reports a format-specific parser failure.
func NewParseError(message string, err error) *ConversionError {
	return newError(CodeParseError, message, true, err)
}

// NewExtractionError reports an archive entry that is present but
// unreadable.
func NewExtractionError(message string, err error) *ConversionError {
	return newError(CodeExtractionError, message, false, err)
}

// NewFileTooLarge reports an input rejected before parsing because it
// exceeds the configured size limit.
func NewFileTooLarge(size, limit int64) *ConversionError {
	e := newError(CodeFileTooLarge,
		fmt.Sprintf("file size %d bytes exceeds the %d byte limit", size, limit), true, nil)
	return e.WithDetail("size", size).WithDetail("limit", limit)
}

// Wrap returns err unchanged when it already belongs to the taxonomy and
// wraps anything else as UNKNOWN_ERROR. A specific code is never downgraded.
func Wrap(err error) *ConversionError {
	if err == nil {
		return nil
	}
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce
	}
	return newError(CodeUnknown, "unexpected conversion failure", false, err)
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	var ce *ConversionError
	return errors.As(err, &ce) && ce.Code == code
}
