package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sw33tLie/creatorlive/internal/utils"
	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/storage"
)

type changeLister interface {
	ListRecentChanges(ctx context.Context, limit int) ([]storage.Change, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Debugf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLiveStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Live.GetLiveStreams(r.Context()))
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	profiles, err := s.Profiles.ListProfiles(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req creator.Profile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		profile creator.Profile
		change  storage.Change
	)
	err := s.withWriteLock(func() (err error) {
		profile, change, err = s.Profiles.UpsertProfile(r.Context(), req)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if change.ChangeType == "added" {
		status = http.StatusCreated
	}
	writeJSON(w, status, profile)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	var change storage.Change
	err := s.withWriteLock(func() (err error) {
		change, err = s.Profiles.DeleteProfile(r.Context(), r.PathValue("id"))
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	cl, ok := s.Profiles.(changeLister)
	if !ok {
		writeJSON(w, http.StatusOK, []storage.Change{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	changes, err := cl.ListRecentChanges(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}
