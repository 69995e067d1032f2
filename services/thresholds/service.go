// Package thresholds manages per-role activity threshold overrides.
package thresholds

import (
	"context"
	"errors"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/clubpulse/activity-monitor/services/realtime"
	"go.uber.org/zap"
)

const channelThresholds = "thresholds"

// Service manages RoleThreshold overrides and records every change as an AdminAction
type Service struct {
	thresholds   repositories.RoleThresholdRepository
	adminActions repositories.AdminActionRepository
	txMgr        repositories.TransactionManager
	publisher    realtime.Publisher
	logger       *zap.Logger
	adminRoles   []string
}

// NewService creates a new thresholds Service
func NewService(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	publisher realtime.Publisher,
	logger *zap.Logger,
	adminRoles []string,
) *Service {
	return &Service{
		thresholds:   repos.Thresholds,
		adminActions: repos.AdminActions,
		txMgr:        txMgr,
		publisher:    publisher,
		logger:       logger,
		adminRoles:   adminRoles,
	}
}

// List returns every override
func (s *Service) List(ctx context.Context) ([]*models.RoleThreshold, error) {
	list, err := s.thresholds.List(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to list thresholds", err)
	}
	if list == nil {
		list = []*models.RoleThreshold{}
	}
	return list, nil
}

// Upsert creates or replaces the override for role
func (s *Service) Upsert(ctx context.Context, actor models.Actor, role string, threshold int) (*models.RoleThreshold, error) {
	if !actor.HasAnyRole(s.adminRoles) {
		return nil, services.ErrUnauthorized
	}

	role = models.NormalizeRole(role)
	if role == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "role")
	}
	if threshold < 0 {
		return nil, services.ErrInvalidThreshold.WithDetail("threshold", threshold)
	}

	record := &models.RoleThreshold{Role: role, Threshold: threshold, UpdatedBy: actorName(actor)}

	err := services.WithTransaction(ctx, s.txMgr, func(txCtx context.Context) error {
		var previous *int
		existing, err := s.thresholds.Get(txCtx, role)
		switch {
		case err == nil:
			previous = &existing.Threshold
		case !errors.Is(err, repositories.ErrNotFound):
			return err
		}

		if err := s.thresholds.Upsert(txCtx, record); err != nil {
			return err
		}

		action := models.NewAdminAction(actor, models.AdminActionThresholdUpdated, "role_threshold").
			WithTarget(role).
			WithDetails(map[string]interface{}{
				"role":      role,
				"previous":  previous,
				"threshold": threshold,
			})
		return s.adminActions.Insert(txCtx, action)
	})
	if err != nil {
		s.logger.Error("failed to upsert threshold", zap.String("role", role), zap.Error(err))
		return nil, services.WrapInternal("failed to save threshold", err)
	}

	s.publish("updated", record)
	s.logger.Info("threshold updated",
		zap.String("role", role),
		zap.Int("threshold", threshold),
		zap.String("actor_id", actor.ID))

	return record, nil
}

// Delete removes the override for role so the default applies again
func (s *Service) Delete(ctx context.Context, actor models.Actor, role string) error {
	if !actor.HasAnyRole(s.adminRoles) {
		return services.ErrUnauthorized
	}

	role = models.NormalizeRole(role)
	if role == "" {
		return services.ErrInvalidInput.WithDetail("field", "role")
	}

	err := services.WithTransaction(ctx, s.txMgr, func(txCtx context.Context) error {
		existing, err := s.thresholds.Get(txCtx, role)
		if err != nil {
			return err
		}
		if err := s.thresholds.Delete(txCtx, role); err != nil {
			return err
		}

		action := models.NewAdminAction(actor, models.AdminActionThresholdDeleted, "role_threshold").
			WithTarget(role).
			WithDetails(map[string]interface{}{"role": role, "previous": existing.Threshold})
		return s.adminActions.Insert(txCtx, action)
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return services.ErrThresholdNotFound.WithDetail("role", role)
	}
	if err != nil {
		s.logger.Error("failed to delete threshold", zap.String("role", role), zap.Error(err))
		return services.WrapInternal("failed to delete threshold", err)
	}

	s.publish("deleted", map[string]string{"role": role})
	s.logger.Info("threshold deleted", zap.String("role", role), zap.String("actor_id", actor.ID))
	return nil
}

func (s *Service) publish(event string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(realtime.Event{Channel: channelThresholds, Event: event, Payload: payload})
}

func actorName(actor models.Actor) string {
	if actor.Email != "" {
		return actor.Email
	}
	return actor.ID
}
