package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/jotter/pkg/core"
)

// parseFilters reads search, tag (repeatable), favorites, archived and sort.
func parseFilters(r *http.Request) (core.NoteFilters, error) {
	q := r.URL.Query()
	f := core.DefaultFilters()
	f.SearchQuery = q.Get("search")
	if tags := q["tag"]; len(tags) > 0 {
		f.SelectedTags = core.NormalizeTags(tags)
	}

	var err error
	if f.ShowFavorites, err = parseBool(q.Get("favorites")); err != nil {
		return f, fmt.Errorf("favorites: %w", err)
	}
	if f.ShowArchived, err = parseBool(q.Get("archived")); err != nil {
		return f, fmt.Errorf("archived: %w", err)
	}
	if f.SortBy, err = core.ParseSortOption(q.Get("sort")); err != nil {
		return f, err
	}
	return f, nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc, err := s.session(r.Context(), identity(r).ID, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer s.closeSession(svc)

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	v, err := svc.Await(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var in core.NoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	svc, err := s.session(r.Context(), identity(r).ID, core.DefaultFilters())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer s.closeSession(svc)

	id, err := svc.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	var patch core.NotePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no field to update")
		return
	}

	svc, err := s.session(r.Context(), identity(r).ID, core.DefaultFilters())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer s.closeSession(svc)

	if err := svc.Update(r.Context(), chi.URLParam(r, "id"), patch); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	svc, err := s.session(r.Context(), identity(r).ID, core.DefaultFilters())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer s.closeSession(svc)

	if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, (*core.Service).ToggleFavorite)
}

func (s *Server) toggleArchive(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, (*core.Service).ToggleArchive)
}

// toggle waits for the user's catalog, since toggles read the current flag from it.
func (s *Server) toggle(w http.ResponseWriter, r *http.Request, fn func(*core.Service, context.Context, string) error) {
	svc, err := s.session(r.Context(), identity(r).ID, core.DefaultFilters())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer s.closeSession(svc)

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if _, err := svc.Await(ctx); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := fn(svc, r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stream pushes every ready view as a server-sent event until the client goes away.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	f, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc, err := s.session(r.Context(), identity(r).ID, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer s.closeSession(svc)

	s.streams.Add(1)
	defer s.streams.Add(-1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for v := range svc.Watch(r.Context()) {
		event, payload := "view", any(v)
		switch {
		case v.Err != nil:
			event, payload = "error", map[string]string{"error": v.Err.Error()}
		case !v.Ready:
			continue
		}
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("failed to encode event", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return
		}
		flusher.Flush()
	}
}
