package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/bill-intelligence/internal/aggregate"
	"github.com/dvloznov/bill-intelligence/internal/api/middleware"
	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/forecast"
	"github.com/dvloznov/bill-intelligence/internal/gcsuploader"
	"github.com/dvloznov/bill-intelligence/internal/jobs"
	"github.com/dvloznov/bill-intelligence/internal/store"
	"github.com/dvloznov/bill-intelligence/internal/trends"
)

// Upload and query limits.
const (
	MaxUploadBytes   = 20 << 20
	MaxForecastMonth = 12
	MaxListLimit     = 500
)

// BillService is the subset of *engine.Engine the HTTP layer calls.
type BillService interface {
	Extract(rawText, filename, userID string) *domain.BillRecord
	ProcessDocument(ctx context.Context, document []byte, filename, userID string) *domain.BillRecord
	AggregateAndForecast(ctx context.Context, userID string, billType domain.BillType, monthsAhead int) (*forecast.Result, error)
	ConsumptionTrends(ctx context.Context, userID string, billType domain.BillType) (*trends.Result, error)
	Stats(ctx context.Context, userID string) aggregate.Summary
	ListBills(ctx context.Context, userID string, billType domain.BillType, limit int) []*domain.BillRecord
}

// BillsHandler handles bill endpoints.
type BillsHandler struct {
	bills     BillService
	storage   gcsuploader.StorageService
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewBillsHandler creates a bills handler. When storage or publisher is nil,
// uploads are processed synchronously.
func NewBillsHandler(bills BillService, storage gcsuploader.StorageService, publisher jobs.Publisher, log zerolog.Logger) *BillsHandler {
	return &BillsHandler{
		bills:     bills,
		storage:   storage,
		publisher: publisher,
		log:       log,
	}
}

// ListBills handles GET /api/bills
func (h *BillsHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	billType, ok := billTypeParam(w, r, "")
	if !ok {
		return
	}
	limit := store.DefaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxListLimit)
	}

	bills := h.bills.ListBills(r.Context(), middleware.UserIDFromContext(r.Context()), billType, limit)
	if bills == nil {
		bills = []*domain.BillRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bills": bills,
		"count": len(bills),
	})
}

// ExtractBill handles POST /api/bills/extract. The record is not stored.
func (h *BillsHandler) ExtractBill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string `json:"text"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Filename == "" {
		req.Filename = "document.txt"
	}

	bill := h.bills.Extract(req.Text, req.Filename, middleware.UserIDFromContext(r.Context()))
	middleware.WriteJSON(w, http.StatusOK, bill)
}

// UploadBill handles POST /api/bills/upload with a multipart "file" field.
func (h *BillsHandler) UploadBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No file selected")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "." || filename == "" {
		middleware.WriteError(w, http.StatusBadRequest, "No file selected")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	if h.storage == nil || h.publisher == nil {
		bill := h.bills.ProcessDocument(ctx, data, filename, userID)
		middleware.WriteJSON(w, http.StatusCreated, bill)
		return
	}

	gcsURI, err := h.storage.UploadUserDocument(ctx, userID, filename, data)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to upload bill")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	job := &jobs.ParseBillJob{UserID: userID, GCSURI: gcsURI, Filename: filename}
	if err := h.publisher.PublishParseBill(ctx, job); err != nil {
		h.log.Error().Err(err).Str("gcs_uri", gcsURI).Msg("Failed to enqueue parse job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue parsing job")
		return
	}
	jobID, status := job.JobID, job.Status

	h.log.Info().
		Str("job_id", jobID).
		Str("user_id", userID).
		Str("gcs_uri", gcsURI).
		Int("bytes", len(data)).
		Msg("Bill uploaded, parse job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  jobID,
		"gcs_uri": gcsURI,
		"status":  string(status),
	})
}

// Forecast handles GET /api/bills/forecast
func (h *BillsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	billType, ok := billTypeParam(w, r, "")
	if !ok {
		return
	}
	months := forecast.DefaultMonthsAhead
	if s := r.URL.Query().Get("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "months must be an integer")
			return
		}
		months = max(1, min(n, MaxForecastMonth))
	}

	res, err := h.bills.AggregateAndForecast(r.Context(), middleware.UserIDFromContext(r.Context()), billType, months)
	var noData *forecast.NoDataError
	if errors.As(err, &noData) {
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":       noData.Error(),
			"message":     "No data available for " + string(noData.BillType),
			"predictions": []forecast.MonthPrediction{},
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Forecast failed")
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":       "Failed to compute forecast",
			"predictions": []forecast.MonthPrediction{},
		})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// Trends handles GET /api/bills/trends. Insufficient data is not an error
// for the client: it gets a 200 with an explanatory message.
func (h *BillsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	billType, ok := billTypeParam(w, r, domain.BillTypeElectricity)
	if !ok {
		return
	}

	res, err := h.bills.ConsumptionTrends(r.Context(), middleware.UserIDFromContext(r.Context()), billType)
	if errors.Is(err, trends.ErrInsufficientData) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"error":   "Insufficient data to compute trends",
			"message": "Upload more bills to see consumption trends",
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Trend analysis failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute trends")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// Stats handles GET /api/bills/stats
func (h *BillsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.bills.Stats(r.Context(), middleware.UserIDFromContext(r.Context())))
}

// billTypeParam reads the optional "type" query parameter, writing a 400 for
// unknown types.
func billTypeParam(w http.ResponseWriter, r *http.Request, fallback domain.BillType) (domain.BillType, bool) {
	s := r.URL.Query().Get("type")
	if s == "" {
		return fallback, true
	}
	bt, ok := domain.ParseBillType(s)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown bill type: "+s)
		return "", false
	}
	return bt, true
}
