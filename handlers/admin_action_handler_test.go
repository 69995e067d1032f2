package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestAdminActionHandler_List(t *testing.T) {
	t.Run("paginates", func(t *testing.T) {
		repo := new(mocks.AdminActionRepository)
		action := models.NewAdminAction(adminClaims.Actor(), models.AdminActionQueueApproved, "queue_entry")
		repo.On("List", mock.Anything, 20, 40).Return([]*models.AdminAction{action}, nil)

		h := NewAdminActionHandler(repo, zap.NewNop())
		w := serve(http.HandlerFunc(h.HandleList), http.MethodGet, "/admin-actions?limit=20&offset=40", "")

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Len(t, data["actions"], 1)
		assert.Equal(t, float64(40), data["offset"])
		repo.AssertExpectations(t)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		repo := new(mocks.AdminActionRepository)
		repo.On("List", mock.Anything, defaultPageSize, 0).Return(nil, nil)

		h := NewAdminActionHandler(repo, zap.NewNop())
		w := serve(http.HandlerFunc(h.HandleList), http.MethodGet, "/admin-actions", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []interface{}{}, decodeData(t, w)["actions"])
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := new(mocks.AdminActionRepository)
		repo.On("List", mock.Anything, defaultPageSize, 0).Return(nil, errors.New("db down"))

		h := NewAdminActionHandler(repo, zap.NewNop())
		w := serve(http.HandlerFunc(h.HandleList), http.MethodGet, "/admin-actions", "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "db down")
	})
}
