// Package chi exposes the validation, ingestion, and chat services over
// HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/dosing"
	"github.com/opencare-labs/doseaudit/internal/domain/evidence"
	"github.com/opencare-labs/doseaudit/internal/domain/source"
	"github.com/opencare-labs/doseaudit/internal/domain/verdict"
	"github.com/opencare-labs/doseaudit/internal/usecase/chat"
	healthuc "github.com/opencare-labs/doseaudit/internal/usecase/health"
	"github.com/opencare-labs/doseaudit/internal/usecase/ingest"
)

// maxUploadBytes bounds a single document upload.
const maxUploadBytes = 32 << 20

type validator interface {
	Validate(ctx context.Context, req dosing.Request) (verdict.Result, error)
	ValidateText(ctx context.Context, planText string) (verdict.Result, error)
	Run(ctx context.Context, runID string) (verdict.Result, error)
}

type ingester interface {
	Ingest(ctx context.Context, in ingest.Input) (source.Document, bool, error)
}

type documentStore interface {
	Sources(ctx context.Context) ([]source.Document, error)
	SourceByID(ctx context.Context, id string) (source.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

type chatter interface {
	Answer(ctx context.Context, question string) (chat.Reply, error)
}

type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API.
type Server struct {
	validator     validator
	ingester      ingester
	documents     documentStore
	chat          chatter
	health        healthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	v validator,
	ing ingester,
	docs documentStore,
	chat chatter,
	health healthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		validator: v,
		ingester:  ing,
		documents: docs,
		chat:      chat,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrIngestion, http.StatusBadRequest, "ingestion_failed"),
		sentinelHandler(domain.ErrExtraction, http.StatusUnprocessableEntity, "extraction_failed"),
		sentinelHandler(domain.ErrUnitMismatch, http.StatusUnprocessableEntity, "unit_mismatch"),
		sentinelHandler(dosing.ErrUnitMismatch, http.StatusUnprocessableEntity, "unit_mismatch"),
		sentinelHandler(domain.ErrPipelineTimeout, http.StatusGatewayTimeout, "pipeline_timeout"),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrModelProvider, http.StatusBadGateway, "model_provider_error"),
		sentinelHandler(domain.ErrMalformedOutput, http.StatusBadGateway, "model_output_invalid"),
	}
	return s
}

// Routes mounts all handlers.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/v1/validations", s.createValidation)
	r.Get("/api/v1/validations/{id}", s.getValidation)
	r.Post("/api/v1/documents", s.uploadDocument)
	r.Get("/api/v1/documents", s.listDocuments)
	r.Get("/api/v1/documents/{id}", s.getDocument)
	r.Delete("/api/v1/documents/{id}", s.deleteDocument)
	r.Post("/api/v1/chat", s.createChat)
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

type prescriptionDTO struct {
	DrugName         string  `json:"drug_name"`
	DoseAmount       float64 `json:"dose_amount"`
	DoseUnit         string  `json:"dose_unit"`
	Frequency        string  `json:"frequency"`
	Route            string  `json:"route,omitempty"`
	PatientAgeMonths float64 `json:"patient_age_months"`
	PatientWeightKg  float64 `json:"patient_weight_kg,omitempty"`
	PatientHeightCm  float64 `json:"patient_height_cm,omitempty"`
}

type validateRequest struct {
	PlanText     string           `json:"plan_text,omitempty"`
	Prescription *prescriptionDTO `json:"prescription,omitempty"`
}

// createValidation handles POST /api/v1/validations. The body carries
// either free plan text or an already structured prescription.
func (s *Server) createValidation(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	var (
		result verdict.Result
		err    error
	)
	switch {
	case req.Prescription != nil:
		dosingReq, convErr := req.Prescription.toDomain()
		if convErr != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", convErr.Error())
			return
		}
		result, err = s.validator.Validate(r.Context(), dosingReq)
	case strings.TrimSpace(req.PlanText) != "":
		result, err = s.validator.ValidateText(r.Context(), req.PlanText)
	default:
		writeError(w, http.StatusBadRequest, "validation_failed", "plan_text or prescription is required")
		return
	}
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// getValidation handles GET /api/v1/validations/{id}.
func (s *Server) getValidation(w http.ResponseWriter, r *http.Request) {
	result, err := s.validator.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type documentDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Checksum   string `json:"checksum"`
	Pages      int    `json:"pages"`
	ChunkCount int    `json:"chunk_count"`
}

func documentToDTO(d *source.Document) documentDTO {
	return documentDTO{
		ID:         d.ID(),
		Title:      d.Title(),
		Type:       string(d.DocType()),
		Checksum:   d.Checksum(),
		Pages:      d.Pages(),
		ChunkCount: d.ChunkCount(),
	}
}

// uploadDocument handles POST /api/v1/documents (multipart: file, title,
// type, optional id).
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "file part is required")
		return
	}
	defer file.Close()

	docType, err := source.ParseType(r.FormValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	in, err := buildIngestInput(file, header, r.FormValue("id"), r.FormValue("title"), docType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	doc, changed, err := s.ingester.Ingest(r.Context(), in)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if changed {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/v1/documents/"+doc.ID())
	}
	writeJSON(w, status, documentToDTO(&doc))
}

func buildIngestInput(
	file multipart.File, header *multipart.FileHeader, id, title string, docType source.Type,
) (ingest.Input, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return ingest.Input{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return ingest.Input{}, fmt.Errorf("file exceeds %d bytes", maxUploadBytes)
	}

	if id == "" {
		id = docIDFromFilename(header.Filename)
	}
	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	if id == "" || title == "" {
		return ingest.Input{}, errors.New("document id and title are required")
	}

	return ingest.Input{
		ID:       id,
		Title:    title,
		DocType:  docType,
		Filename: header.Filename,
		Data:     data,
	}, nil
}

// listDocuments handles GET /api/v1/documents.
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.Sources(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]documentDTO, 0, len(docs))
	for i := range docs {
		items = append(items, documentToDTO(&docs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// getDocument handles GET /api/v1/documents/{id}.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.SourceByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToDTO(&doc))
}

// deleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Answer  string          `json:"answer"`
	Sources []evidence.Item `json:"sources,omitempty"`
}

// createChat handles POST /api/v1/chat.
func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "question is required")
		return
	}

	reply, err := s.chat.Answer(r.Context(), req.Question)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: reply.Answer, Sources: reply.Sources})
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (p *prescriptionDTO) toDomain() (dosing.Request, error) {
	unit, err := dosing.ParseUnit(p.DoseUnit)
	if err != nil {
		return dosing.Request{}, err
	}
	freq, err := dosing.ParseFrequency(p.Frequency)
	if err != nil {
		return dosing.Request{}, err
	}
	return dosing.Request{
		DrugName:         p.DrugName,
		DoseAmount:       p.DoseAmount,
		DoseUnit:         unit,
		Frequency:        freq,
		Route:            p.Route,
		PatientAgeMonths: p.PatientAgeMonths,
		PatientWeightKg:  p.PatientWeightKg,
		PatientHeightCm:  p.PatientHeightCm,
	}, nil
}

func docIDFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(strings.ReplaceAll(base, " ", "-"))
}

// isValidationError reports whether the pipeline refused the request
// before running, which is the caller's fault rather than a failure.
func isValidationError(err error) bool {
	return strings.Contains(err.Error(), "invalid prescription")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client
// without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrIngestion,
		domain.ErrExtraction,
		domain.ErrUnitMismatch,
		dosing.ErrUnitMismatch,
		domain.ErrPipelineTimeout,
		domain.ErrEmbeddingProvider,
		domain.ErrModelProvider,
		domain.ErrMalformedOutput,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
