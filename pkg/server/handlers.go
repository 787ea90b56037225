package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/wouteroostervld/atlas/pkg/ingest"
)

const maxBodyBytes = 1 << 20

type ingestRequest struct {
	URL   string `json:"url"`
	Path  string `json:"path"`
	Force bool   `json:"force"`
}

type queryRequest struct {
	RepoID   string `json:"repo_id"`
	Question string `json:"question"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.HealthCheck(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngest streams pipeline events as server-sent events
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref := strings.TrimSpace(req.URL)
	if ref == "" {
		ref = strings.TrimSpace(req.Path)
	}
	if ref == "" {
		writeError(w, http.StatusBadRequest, "url or path is required")
		return
	}
	if !s.cfg.AllowLocalPaths && isLocalSource(ref) {
		slog.Warn("Rejected local path ingest", "source", ref, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusForbidden, "ingesting local paths over HTTP is disabled (server.allow_local_paths)")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for ev := range s.ingester.Run(r.Context(), ingest.Request{Source: ref, Force: req.Force}) {
		if err := writeEvent(w, ev); err != nil {
			slog.Debug("Client went away during ingest", "error", err, "request_id", RequestID(r.Context()))
			continue
		}
		if err := rc.Flush(); err != nil {
			slog.Debug("Flush failed", "error", err)
		}
		if ev.Terminal() {
			slog.Info("Ingest finished", "source", ref, "outcome", ev.Name, "request_id", RequestID(r.Context()))
		}
	}
}

// isLocalSource reports whether ref would be read from this host's filesystem
func isLocalSource(ref string) bool {
	if strings.HasPrefix(ref, "file:") {
		return true
	}
	src, err := ingest.ResolveSource(ref, "")
	return err == nil && src.Local
}

func writeEvent(w http.ResponseWriter, ev ingest.Event) error {
	data, err := json.Marshal(ev.Payload())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
	return err
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RepoID == "" {
		writeError(w, http.StatusBadRequest, "repo_id is required")
		return
	}
	ans, err := s.engine.Ask(r.Context(), req.RepoID, req.Question)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Graph(r.Context(), r.PathValue("repo_id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Onboarding(r.Context(), r.PathValue("repo_id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	file := q.Get("file")
	if file == "" {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	start, err := intParam(q.Get("start"), 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	end, err := intParam(q.Get("end"), -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}

	view, err := s.engine.Source(r.Context(), r.PathValue("repo_id"), file, start, end)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
