package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/docforge/docforge/internal/jobs"
	"github.com/docforge/docforge/internal/services"
)

var (
	intakeInstance *services.IntakeService
	once           sync.Once
	initErr        error
)

func init() {
	// Entry point names configured in GCP.
	functions.HTTP("CreateJob", handleCreateJob)
	functions.HTTP("CheckStatus", handleCheckStatus)
}

// main is required by the Go Functions Framework.
func main() {}

func instance() (*services.IntakeService, error) {
	once.Do(func() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
		intakeInstance, initErr = services.NewIntakeFromEnv(context.Background())
	})
	return intakeInstance, initErr
}

// writeCORS allows browser clients to call the API directly.
func writeCORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// handleCreateJob accepts a reformatting request and queues it.
func handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if writeCORS(w, r) {
		return
	}
	svc, err := instance()
	if err != nil {
		log.Printf("CRITICAL: Intake initialization failed: %v", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req services.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: Could not decode request body: %v", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := svc.CreateJob(r.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// The specific error is already logged inside CreateJob.
		http.Error(w, "Internal Server Error: could not create job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Printf("ERROR: Failed to write response: %v", err)
	}
}

// handleCheckStatus returns the current view of a job record. The job ID
// comes from either the ?job_id query parameter or the trailing path
// segment.
func handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	if writeCORS(w, r) {
		return
	}
	svc, err := instance()
	if err != nil {
		log.Printf("CRITICAL: Intake initialization failed: %v", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	docID := r.URL.Query().Get("job_id")
	if docID == "" {
		docID = strings.TrimPrefix(strings.Trim(r.URL.Path, "/"), "status/")
	}

	res, err := svc.Status(r.Context(), docID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, jobs.ErrNotFound):
			http.Error(w, "Not Found: unknown job", http.StatusNotFound)
		default:
			log.Printf("ERROR: Status lookup failed: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Printf("ERROR: Failed to write response: %v", err)
	}
}
