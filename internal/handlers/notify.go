package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cmkbridge/cmkbridge/internal/database"
	"github.com/cmkbridge/cmkbridge/internal/ingest"
	"github.com/cmkbridge/cmkbridge/internal/servicedesk"
)

// NotificationResponse is the envelope returned by the notify endpoints
type NotificationResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Request *servicedesk.Request `json:"request"`
}

// NotifyHandler receives Checkmk notification webhooks
type NotifyHandler struct {
	pipeline *ingest.Pipeline
}

// NewNotifyHandler creates a new notification handler
func NewNotifyHandler(pipeline *ingest.Pipeline) *NotifyHandler {
	return &NotifyHandler{pipeline: pipeline}
}

// SetupRoutes configures all HTTP routes
func (h *NotifyHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/notify/service", h.handleServiceNotification)
	mux.HandleFunc("/notify/host", h.handleHostNotification)
	mux.HandleFunc("/ping", h.handlePing)
}

func (h *NotifyHandler) handleServiceNotification(w http.ResponseWriter, r *http.Request) {
	h.handleNotification(w, r, database.ProblemKindService)
}

func (h *NotifyHandler) handleHostNotification(w http.ResponseWriter, r *http.Request) {
	h.handleNotification(w, r, database.ProblemKindHost)
}

func (h *NotifyHandler) handleNotification(w http.ResponseWriter, r *http.Request, kind database.ProblemKind) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n, err := ingest.Decode(kind, r.Body)
	if err != nil {
		log.Printf("Rejected %s notification: %v", kind, err)
		writeResponse(w, http.StatusUnprocessableEntity, NotificationResponse{
			Message: "Invalid notification payload.",
		})
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), n)
	if err != nil {
		status, message := classifyIngestError(err)
		log.Printf("Failed to ingest %s notification for host %q: %v", kind, n.HostName, err)
		writeResponse(w, status, NotificationResponse{Message: message})
		return
	}

	resp := NotificationResponse{Success: true, Request: result.Request}
	switch result.Outcome {
	case ingest.OutcomeRecoveryIgnored:
		resp.Message = "Recovery notification ignored."
	case ingest.OutcomeAlreadyExists:
		resp.Message = "Request already exists."
	default:
		resp.Message = "Request successfully created."
	}
	writeResponse(w, http.StatusOK, resp)
}

// classifyIngestError maps pipeline failures onto HTTP status codes: storage
// problems are the caller's cue to retry later (400), ticketing-system
// rejections surface as 422, remote failures as 502/503.
func classifyIngestError(err error) (int, string) {
	var rejected *servicedesk.RequestRejectedError
	var badResp *servicedesk.BadResponseError

	switch {
	case errors.Is(err, ingest.ErrStorage):
		return http.StatusBadRequest, "Database error while tracking the problem."
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity, "The ticketing system rejected the request."
	case errors.Is(err, servicedesk.ErrAlreadyClosed):
		return http.StatusConflict, "The linked request is already closed."
	case errors.As(err, &badResp):
		return http.StatusBadGateway, "Unexpected response from the ticketing system."
	case errors.Is(err, servicedesk.ErrUnreachable):
		return http.StatusServiceUnavailable, "The ticketing system is unreachable."
	default:
		return http.StatusInternalServerError, "Internal error."
	}
}

func (h *NotifyHandler) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("Error encoding ping response: %v", err)
	}
}

func writeResponse(w http.ResponseWriter, status int, resp NotificationResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding notification response: %v", err)
	}
}
