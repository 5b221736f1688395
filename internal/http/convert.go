package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkowalik/ankiconv/internal/detect"
	apperrors "github.com/mkowalik/ankiconv/internal/errors"
	"github.com/mkowalik/ankiconv/internal/logger"
	"github.com/mkowalik/ankiconv/internal/pipeline"
	"github.com/mkowalik/ankiconv/internal/worker"
)

// ErrorResponse is the JSON shape of every conversion failure, carrying
// the taxonomy code and recovery guidance alongside the message.
type ErrorResponse struct {
	Error    string         `json:"error"`
	Code     string         `json:"code"`
	Recovery string         `json:"recovery,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// ConvertController handles interactive deck uploads. Conversions are
// submitted through the background manager so cancellation and cleanup
// apply to HTTP work too.
type ConvertController struct {
	Manager   *worker.Manager
	SizeLimit int64
	Log       *logger.Logger
}

func NewConvertController(m *worker.Manager, sizeLimit int64, log *logger.Logger) *ConvertController {
	return &ConvertController{Manager: m, SizeLimit: sizeLimit, Log: log}
}

// Convert handles POST /api/convert. The upload goes in the "file"
// multipart field; optional form fields: format, includeStats,
// includeSuspended, deckName.
func (controller *ConvertController) Convert(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}

	// Reject oversized uploads before reading them into memory.
	if controller.SizeLimit > 0 && fileHeader.Size > controller.SizeLimit {
		writeError(c, apperrors.NewFileTooLarge(fileHeader.Size, controller.SizeLimit))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "could not open upload: " + err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "could not read upload: " + err.Error()})
		return
	}

	opts := pipeline.Options{
		Format:           detect.Format(c.PostForm("format")),
		SizeLimit:        controller.SizeLimit,
		IncludeStats:     c.PostForm("includeStats") == "true",
		IncludeSuspended: c.PostForm("includeSuspended") == "true",
		IncludeTags:      c.PostForm("includeTags") != "false",
	}
	if deckName := c.PostForm("deckName"); deckName != "" {
		opts.TSV.DeckName = deckName
	}

	id, done := controller.Manager.Submit(c.Request.Context(), worker.Request{
		Data:     data,
		Filename: fileHeader.Filename,
		Options:  opts,
	}, nil)

	outcome := <-done
	if outcome.Err != nil {
		controller.Log.Warn("conversion request failed",
			"conversion_id", id.String(),
			"filename", fileHeader.Filename,
			"error", outcome.Err)
		writeError(c, outcome.Err)
		return
	}

	c.JSON(http.StatusOK, outcome.Result)
}

// writeError maps taxonomy codes to HTTP statuses and always includes the
// recovery guidance.
func writeError(c *gin.Context, err error) {
	var ce *apperrors.ConversionError
	if !errors.As(err, &ce) {
		ce = apperrors.Wrap(err)
	}

	status := http.StatusInternalServerError
	switch ce.Code {
	case apperrors.CodeInvalidFormat, apperrors.CodeParseError:
		status = http.StatusBadRequest
	case apperrors.CodeCorruptedFile, apperrors.CodeUnsupportedVersion, apperrors.CodeExtractionError:
		status = http.StatusUnprocessableEntity
	case apperrors.CodeFileTooLarge:
		status = http.StatusRequestEntityTooLarge
	}

	c.IndentedJSON(status, ErrorResponse{
		Error:    ce.Message,
		Code:     ce.Code,
		Recovery: ce.Recovery(),
		Details:  ce.Details,
	})
}
