package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/warden-dev/warden/internal/approval"
	"github.com/warden-dev/warden/internal/executor"
	"github.com/warden-dev/warden/internal/hub"
	"github.com/warden-dev/warden/internal/procmgr"
	"github.com/warden-dev/warden/internal/store"
	"github.com/warden-dev/warden/internal/version"
)

// RunRequest is the body of POST /commands.
type RunRequest struct {
	Command    string            `json:"command"`
	Cwd        string            `json:"cwd,omitempty"`
	TimeoutSec int               `json:"timeout,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Background bool              `json:"background,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version          string `json:"version"`
	StartedAt        string `json:"started_at"`
	Services         int    `json:"services"`
	PendingApprovals int    `json:"pending_approvals"`
	Observers        int    `json:"observers"`
}

type approvalsResponse struct {
	Approvals []approval.Pending `json:"approvals"`
}

type servicesResponse struct {
	Services []procmgr.ProcessInfo `json:"services"`
}

type historyResponse struct {
	Commands []store.CommandRecord `json:"commands"`
}

type savedResponse struct {
	Commands []store.SavedCommand `json:"commands"`
}

type statusMessage struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	// The execute call may suspend for minutes waiting on approval;
	// each request runs on its own connection goroutine.
	result := s.exec.Execute(r.Context(), executor.Request{
		Command:    req.Command,
		Cwd:        req.Cwd,
		Timeout:    time.Duration(req.TimeoutSec) * time.Second,
		Env:        req.Env,
		Background: req.Background,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Version:          version.Version,
		StartedAt:        started.UTC().Format(time.RFC3339),
		Services:         s.exec.Processes().Len(),
		PendingApprovals: len(s.hub.PendingApprovals()),
		Observers:        s.hub.ObserverCount(),
	})
}

func (s *Server) handleListApprovals(w http.ResponseWriter, _ *http.Request) {
	pending := []approval.Pending{}
	if broker := s.exec.Broker(); broker != nil {
		pending = broker.Pending()
	}
	writeJSON(w, http.StatusOK, approvalsResponse{Approvals: pending})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.resolveApproval(w, r, true)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.resolveApproval(w, r, false)
}

func (s *Server) resolveApproval(w http.ResponseWriter, r *http.Request, approved bool) {
	id := r.PathValue("id")
	broker := s.exec.Broker()
	if broker == nil || !broker.Resolve(id, approved) {
		writeError(w, http.StatusNotFound, "approval not found")
		return
	}
	status := "approved"
	if !approved {
		status = "rejected"
	}
	writeJSON(w, http.StatusOK, statusMessage{Status: status})
}

func (s *Server) handleListServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, servicesResponse{Services: s.exec.Processes().List()})
}

func (s *Server) handleStopService(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.exec.Processes().Stop(id) {
		writeError(w, http.StatusNotFound, "service not found")
		return
	}
	s.hub.RemoveService(id)
	writeJSON(w, http.StatusOK, statusMessage{Status: "stopped"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)

	if s.store != nil {
		records, err := s.store.RecentCommands(limit)
		if err == nil {
			writeJSON(w, http.StatusOK, historyResponse{Commands: records})
			return
		}
	}

	// Fall back to the in-memory history when persistence is off.
	results := s.exec.History(limit)
	records := make([]store.CommandRecord, 0, len(results))
	for _, res := range results {
		rec := store.CommandRecord{
			Command:  res.Command,
			Cwd:      res.Cwd,
			Status:   string(res.Status),
			ExitCode: res.ExitCode,
		}
		if res.CompletedAt != nil {
			rec.Timestamp = *res.CompletedAt
		}
		records = append(records, rec)
	}
	writeJSON(w, http.StatusOK, historyResponse{Commands: records})
}

func (s *Server) handleListSaved(w http.ResponseWriter, _ *http.Request) {
	saved, err := s.store.ListSaved()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if saved == nil {
		saved = []store.SavedCommand{}
	}
	writeJSON(w, http.StatusOK, savedResponse{Commands: saved})
}

func (s *Server) handleSaveCommand(w http.ResponseWriter, r *http.Request) {
	var req store.SavedCommand
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Command == "" {
		writeError(w, http.StatusBadRequest, "name and command are required")
		return
	}

	saved, err := s.store.SaveCommand(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.mirrorSaved()
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	existed, err := s.store.DeleteSaved(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "saved command not found")
		return
	}
	s.mirrorSaved()
	writeJSON(w, http.StatusOK, statusMessage{Status: "deleted"})
}

// mirrorSaved pushes the current saved-command list into the hub so
// observers see the change.
func (s *Server) mirrorSaved() {
	saved, err := s.store.ListSaved()
	if err != nil {
		return
	}
	mirror := make([]hub.SavedCommand, 0, len(saved))
	for _, sc := range saved {
		mirror = append(mirror, hub.SavedCommand{
			ID:          sc.ID,
			Name:        sc.Name,
			Command:     sc.Command,
			Cwd:         sc.Cwd,
			Description: sc.Description,
			CreatedAt:   sc.CreatedAt,
		})
	}
	s.hub.SetSavedCommands(mirror)
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
