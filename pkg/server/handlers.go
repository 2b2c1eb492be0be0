package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/probelens/probelens/pkg/cache"
	"github.com/probelens/probelens/pkg/engine"
	pkgerrors "github.com/probelens/probelens/pkg/errors"
	"github.com/probelens/probelens/pkg/observability"
	"github.com/probelens/probelens/pkg/render"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// The body is optional: {"symbol": "ACME"} tags the session with the
	// investigation subject.
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidInput, err, "decode session request"))
		return
	}
	subject := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if subject != "" {
		if err := pkgerrors.ValidateSymbol(subject); err != nil {
			writeError(w, err)
			return
		}
	}

	sess := s.registry.Create(subject)
	resp := map[string]any{
		"id":      sess.ID,
		"created": sess.Created.UTC().Format(time.RFC3339),
	}
	if sess.Subject != "" {
		resp["symbol"] = sess.Subject
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := render.EncodeJSON(sess.Engine.Snapshot())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// eventResult reports the outcome of one event in a batch.
type eventResult struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var events []engine.Event
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeError(w, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidEvent, err, "decode event batch"))
		return
	}

	applied := 0
	var rejected []eventResult
	for i, ev := range events {
		if err := sess.Engine.Ingest(ev); err != nil {
			rejected = append(rejected, eventResult{Index: i, Error: pkgerrors.UserMessage(err)})
			// A terminated session rejects everything that follows too.
			if pkgerrors.Is(err, pkgerrors.ErrCodeSessionTerminated) {
				break
			}
			continue
		}
		applied++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"applied":  applied,
		"rejected": rejected,
		"status":   sess.Engine.Status(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess.Engine.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"status": sess.Engine.Status()})
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess.Engine.Terminate()
	writeJSON(w, http.StatusOK, map[string]any{"status": sess.Engine.Status()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var renderContentTypes = map[string]string{
	"svg":  "image/svg+xml",
	"png":  "image/png",
	"dot":  "text/vnd.graphviz",
	"json": "application/json",
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "svg"
	}
	contentType, ok := renderContentTypes[format]
	if !ok {
		writeError(w, pkgerrors.New(pkgerrors.ErrCodeInvalidFormat, "unsupported format %q", format))
		return
	}

	snap := sess.Engine.Snapshot()
	data, err := s.renderCached(r.Context(), snap, format)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// renderCached renders the snapshot in the given format, going through the
// local LRU and the backend cache. The key hashes the snapshot content, so
// any graph or viewport change misses and re-renders.
func (s *Server) renderCached(ctx context.Context, snap engine.Snapshot, format string) ([]byte, error) {
	encoded, err := render.EncodeJSON(snap)
	if err != nil {
		return nil, err
	}
	if format == "json" {
		return encoded, nil
	}

	// TakenAt changes per call; hash the content without it by zeroing.
	hashable := snap
	hashable.TakenAt = time.Time{}
	stable, err := render.EncodeJSON(hashable)
	if err != nil {
		return nil, err
	}
	key := s.keyer.ArtifactKey(cache.Hash(stable), cache.ArtifactKeyOpts{Format: format})

	if data, ok := s.artifacts.Get(key); ok {
		observability.Cache().OnCacheHit(ctx, "artifact")
		return data, nil
	}
	if data, ok, err := s.backend.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, "artifact")
		s.artifacts.Add(key, data)
		return data, nil
	}
	observability.Cache().OnCacheMiss(ctx, "artifact")

	var data []byte
	start := time.Now()
	observability.Render().OnRenderStart(ctx, format, len(snap.Nodes))
	switch format {
	case "svg":
		data = render.SVG(snap)
	case "dot":
		data = []byte(render.ToDOT(snap))
	case "png":
		data, err = render.GraphvizPNG(ctx, render.ToDOT(snap))
	}
	observability.Render().OnRenderComplete(ctx, format, len(data), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.artifacts.Add(key, data)
	if err := s.backend.Set(ctx, key, data, time.Hour); err != nil {
		s.log.Warn("artifact cache write failed", "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "artifact", len(data))
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := pkgerrors.GetCode(err)
	status := http.StatusInternalServerError
	switch {
	case strings.HasPrefix(string(code), "NOT_FOUND") || strings.HasSuffix(string(code), "NOT_FOUND"):
		status = http.StatusNotFound
	case code == pkgerrors.ErrCodeDuplicateConflict || code == pkgerrors.ErrCodeSessionTerminated:
		status = http.StatusConflict
	case strings.HasPrefix(string(code), "INVALID") || code == pkgerrors.ErrCodeMalformedPayload:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]any{
		"error": pkgerrors.UserMessage(err),
		"code":  code,
	})
}
