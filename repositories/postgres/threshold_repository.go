package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"go.uber.org/zap"
)

// RoleThresholdRepository implements the repositories.RoleThresholdRepository interface
type RoleThresholdRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRoleThresholdRepository creates a new role threshold repository
func NewRoleThresholdRepository(db *DB, logger *zap.Logger) repositories.RoleThresholdRepository {
	return &RoleThresholdRepository{
		db:     db,
		logger: logger,
	}
}

// List retrieves every override ordered by role
func (r *RoleThresholdRepository) List(ctx context.Context) ([]*models.RoleThreshold, error) {
	query := `SELECT role, threshold, updated_by, updated_at FROM role_thresholds ORDER BY role`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query role thresholds: %w", err)
	}
	defer rows.Close()

	var thresholds []*models.RoleThreshold
	for rows.Next() {
		t := &models.RoleThreshold{}
		if err := rows.Scan(&t.Role, &t.Threshold, &t.UpdatedBy, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role threshold: %w", err)
		}
		thresholds = append(thresholds, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role thresholds: %w", err)
	}
	return thresholds, nil
}

// Get retrieves one override
func (r *RoleThresholdRepository) Get(ctx context.Context, role string) (*models.RoleThreshold, error) {
	query := `SELECT role, threshold, updated_by, updated_at FROM role_thresholds WHERE role = $1`

	t := &models.RoleThreshold{}
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, models.NormalizeRole(role)).
		Scan(&t.Role, &t.Threshold, &t.UpdatedBy, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get role threshold: %w", err)
	}
	return t, nil
}

// Upsert creates or replaces an override
func (r *RoleThresholdRepository) Upsert(ctx context.Context, threshold *models.RoleThreshold) error {
	query := `
		INSERT INTO role_thresholds (role, threshold, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (role) DO UPDATE
		SET threshold = EXCLUDED.threshold, updated_by = EXCLUDED.updated_by, updated_at = NOW()
		RETURNING updated_at
	`

	threshold.Role = models.NormalizeRole(threshold.Role)
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query,
		threshold.Role,
		threshold.Threshold,
		threshold.UpdatedBy,
	).Scan(&threshold.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert role threshold: %w", err)
	}

	r.logger.Debug("role threshold upserted",
		zap.String("role", threshold.Role),
		zap.Int("threshold", threshold.Threshold))
	return nil
}

// Delete removes an override
func (r *RoleThresholdRepository) Delete(ctx context.Context, role string) error {
	query := `DELETE FROM role_thresholds WHERE role = $1`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, models.NormalizeRole(role))
	if err != nil {
		return fmt.Errorf("failed to delete role threshold: %w", err)
	}
	return requireAffected(result, repositories.ErrNotFound)
}
