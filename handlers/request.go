package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/clubpulse/activity-monitor/middleware"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxBodyBytes    = 64 << 10
)

// decodeJSON decodes a small JSON body. An empty body is reported as invalid input.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.ErrInvalidInput.WithDetail("reason", "request body is required")
		}
		return services.ErrInvalidInput.WithDetail("reason", "invalid JSON body")
	}
	return nil
}

// parseID reads the {id} URL parameter
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.ErrInvalidInput.WithDetail("id", chi.URLParam(r, "id"))
	}
	return id, nil
}

// parsePagination reads ?limit= and ?offset=, clamping limit to maxPageSize
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultPageSize, 0
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, services.ErrInvalidInput.WithDetail("limit", v)
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, services.ErrInvalidInput.WithDetail("offset", v)
		}
	}
	return limit, offset, nil
}

// actorFromRequest returns the session actor or ErrUnauthorized
func actorFromRequest(r *http.Request) (models.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return models.Actor{}, services.ErrUnauthorized
	}
	return actor, nil
}
