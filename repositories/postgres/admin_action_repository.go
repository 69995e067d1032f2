package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"go.uber.org/zap"
)

// AdminActionRepository implements the repositories.AdminActionRepository interface
type AdminActionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAdminActionRepository creates a new admin action repository
func NewAdminActionRepository(db *DB, logger *zap.Logger) repositories.AdminActionRepository {
	return &AdminActionRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends an action
func (r *AdminActionRepository) Insert(ctx context.Context, action *models.AdminAction) error {
	query := `
		INSERT INTO admin_actions (id, actor_id, actor_email, action, target_type, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	details := action.Details
	if len(details) == 0 {
		details = []byte(`{}`)
	}

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		action.ID,
		action.ActorID,
		action.ActorEmail,
		action.Action,
		action.TargetType,
		action.TargetID,
		[]byte(details),
		action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert admin action: %w", err)
	}

	r.logger.Debug("admin action inserted",
		zap.String("id", action.ID.String()),
		zap.String("action", string(action.Action)))
	return nil
}

// List retrieves actions newest first with pagination
func (r *AdminActionRepository) List(ctx context.Context, limit, offset int) ([]*models.AdminAction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, actor_id, actor_email, action, target_type, target_id, details, created_at
		FROM admin_actions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.AdminAction
	for rows.Next() {
		a := &models.AdminAction{}
		var targetID sql.NullString
		var details []byte
		if err := rows.Scan(&a.ID, &a.ActorID, &a.ActorEmail, &a.Action, &a.TargetType, &targetID, &details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin action: %w", err)
		}
		if targetID.Valid {
			a.TargetID = &targetID.String
		}
		a.Details = details
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admin actions: %w", err)
	}
	return actions, nil
}
