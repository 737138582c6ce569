package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/bill-intelligence/internal/api/middleware"
)

// NewRouter registers the bill, job and health endpoints.
func NewRouter(bills *BillsHandler, jobsHandler *JobsHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/bills", method(http.MethodGet, bills.ListBills))
	mux.HandleFunc("/api/bills/extract", method(http.MethodPost, bills.ExtractBill))
	mux.HandleFunc("/api/bills/upload", method(http.MethodPost, bills.UploadBill))
	mux.HandleFunc("/api/bills/forecast", method(http.MethodGet, bills.Forecast))
	mux.HandleFunc("/api/bills/trends", method(http.MethodGet, bills.Trends))
	mux.HandleFunc("/api/bills/stats", method(http.MethodGet, bills.Stats))

	if jobsHandler != nil {
		mux.HandleFunc("/api/jobs", method(http.MethodGet, jobsHandler.ListJobs))
		mux.HandleFunc("/api/jobs/", method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		}))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}

func method(allowed string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != allowed {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
