package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prospecthq/prospector/internal/api/response"
	"github.com/prospecthq/prospector/internal/archive"
)

// NewListProfilesHandler returns an http.HandlerFunc for GET /api/v1/profiles.
// It pages through archived profiles, optionally filtered by subject name.
func NewListProfilesHandler(store archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := archive.ProfileFilter{
			SubjectName: strings.TrimSpace(r.URL.Query().Get("subject")),
			Page:        queryInt(r, "page", 1),
			Limit:       queryInt(r, "limit", 20),
		}

		profiles, total, err := store.ListProfiles(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not list profiles", nil)
			return
		}

		response.Collection(w, profiles, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}

// NewGetProfileHandler returns an http.HandlerFunc for GET /api/v1/profiles/archive/{profileID}.
func NewGetProfileHandler(store archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "profileID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found", nil)
			return
		}

		profile, err := store.GetProfile(r.Context(), id)
		if err != nil {
			if errors.Is(err, archive.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not fetch profile", nil)
			return
		}

		response.JSON(w, profile)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
