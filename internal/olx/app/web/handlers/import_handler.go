package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/encoding/charmap"

	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/importer/mapper"
	"olxmarket_api/internal/importer/queue"
	"olxmarket_api/internal/importer/reader"
	"olxmarket_api/internal/importer/service"
	"olxmarket_api/pkg/logger"
)

// ImportHandler exposes the import pipeline to operators: start a batch,
// watch its counters, retry the errored remainder.
type ImportHandler struct {
	imports  *service.ImportService
	producer *queue.Producer
	validate *validator.Validate
	log      logger.Logger
}

func NewImportHandler(imports *service.ImportService, producer *queue.Producer, validate *validator.Validate, log logger.Logger) *ImportHandler {
	return &ImportHandler{
		imports:  imports,
		producer: producer,
		validate: validate,
		log:      log,
	}
}

type StartImportRequest struct {
	ShopID int64  `json:"shop_id" validate:"required"`
	Source string `json:"source" validate:"required,oneof=csv scrape"`
	// Payload is the document body: the CSV text or the scraped JSON array.
	Payload   string            `json:"payload" validate:"required"`
	Delimiter string            `json:"delimiter"`
	Charset   string            `json:"charset"`
	Mapping   map[string]string `json:"mapping"`
}

type StartImportResponse struct {
	Response
	ImportLogID int64             `json:"import_log_id"`
	TotalRows   int               `json:"total_rows"`
	Mapping     map[string]string `json:"mapping,omitempty"`
	Confidence  float64           `json:"confidence,omitempty"`
	Queued      bool              `json:"queued"`
}

// StartImport reads the document, stages every row and hands the batch to the
// task queue. Without a queue the batch runs inline before responding. A
// document-level parse failure rejects the request; row-level problems
// surface later as errored records.
func (h *ImportHandler) StartImport(w http.ResponseWriter, r *http.Request) {
	var req StartImportRequest
	r.Body = http.MaxBytesReader(w, r.Body, 32<<20)
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "failed to decode request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		validationError(w, r, err)
		return
	}

	var records []reader.RawRecord
	var proposal mapper.Proposal
	var err error

	switch models.ImportSource(req.Source) {
	case models.SourceCSV:
		csvReader := reader.NewCSVReader()
		if req.Delimiter != "" {
			delimiter, derr := delimiterRune(req.Delimiter)
			if derr != nil {
				badRequest(w, r, derr.Error())
				return
			}
			csvReader.SetComma(delimiter)
		}
		if cm := charsetByName(req.Charset); cm != nil {
			csvReader.SetCharset(cm)
		}
		var header []string
		header, records, err = csvReader.Read(strings.NewReader(req.Payload))
		if err == nil && len(req.Mapping) == 0 {
			proposal = mapper.ProposeMapping(header)
			req.Mapping = proposal.Mapping
		}
	case models.SourceScrape:
		records, err = reader.NewScrapeReader().Read(strings.NewReader(req.Payload))
	}
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	logID, err := h.imports.StartImport(r.Context(), req.ShopID, models.ImportSource(req.Source), records)
	if err != nil {
		h.log.Log("start import failed: %v", err)
		internalError(w, r, "failed to start import")
		return
	}

	queued := false
	if h.producer != nil {
		task := queue.ImportTask{ImportLogID: logID, Mapping: req.Mapping}
		if err := h.producer.PublishJSON(r.Context(), task); err != nil {
			h.log.Log("queueing import %d failed, running inline: %v", logID, err)
		} else {
			queued = true
		}
	}
	if !queued {
		if _, err := h.imports.Run(r.Context(), logID, req.Mapping); err != nil {
			h.log.Log("inline import %d failed: %v", logID, err)
			internalError(w, r, "import failed")
			return
		}
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, StartImportResponse{
		Response:    OK(),
		ImportLogID: logID,
		TotalRows:   len(records),
		Mapping:     req.Mapping,
		Confidence:  proposal.Confidence,
		Queued:      queued,
	})
}

type ImportStatusResponse struct {
	Response
	Import *models.ImportLog `json:"import"`
}

func (h *ImportHandler) Status(w http.ResponseWriter, r *http.Request) {
	logID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, r, "invalid import id")
		return
	}

	importLog, err := h.imports.Status(r.Context(), logID)
	if err != nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, Error("import not found"))
		return
	}
	render.JSON(w, r, ImportStatusResponse{Response: OK(), Import: importLog})
}

type RetryImportRequest struct {
	Mapping map[string]string `json:"mapping"`
}

// Retry re-queues the errored records of a finished batch and processes them
// again with the given (or empty) mapping.
func (h *ImportHandler) Retry(w http.ResponseWriter, r *http.Request) {
	logID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, r, "invalid import id")
		return
	}
	var req RetryImportRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, r, "failed to decode request")
		return
	}

	importLog, err := h.imports.RetryErrored(r.Context(), logID, req.Mapping)
	if err != nil {
		h.log.Log("retry of import %d failed: %v", logID, err)
		internalError(w, r, "retry failed")
		return
	}
	render.JSON(w, r, ImportStatusResponse{Response: OK(), Import: importLog})
}

type StaleImportsResponse struct {
	Response
	Imports []models.ImportLog `json:"imports"`
}

// Stale lists imports stuck outside a terminal status longer than olderThan.
func (h *ImportHandler) Stale(olderThan time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stale, err := h.imports.StaleImports(r.Context(), olderThan)
		if err != nil {
			h.log.Log("stale import query failed: %v", err)
			internalError(w, r, "failed to list stale imports")
			return
		}
		render.JSON(w, r, StaleImportsResponse{Response: OK(), Imports: stale})
	}
}

// delimiterRune decodes the CSV delimiter, which must be exactly one rune;
// multi-byte runes are fine, multi-rune strings and broken encodings are not.
func delimiterRune(s string) (rune, error) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("delimiter must be a single character")
	}
	return r, nil
}

func charsetByName(name string) *charmap.Charmap {
	switch strings.ToLower(name) {
	case "windows-1250", "cp1250":
		return charmap.Windows1250
	case "windows-1251", "cp1251":
		return charmap.Windows1251
	case "iso-8859-2", "latin2":
		return charmap.ISO8859_2
	default:
		return nil
	}
}
