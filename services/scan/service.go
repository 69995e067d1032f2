package scan

import (
	"context"
	"strings"
	"sync"

	"github.com/clubpulse/activity-monitor/clients/sheets"
	"github.com/clubpulse/activity-monitor/internal/observability"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/clubpulse/activity-monitor/services/queue"
	"go.uber.org/zap"
)

// SheetReader fetches a spreadsheet range
type SheetReader interface {
	ReadRange(ctx context.Context, spreadsheetID, rangeA1 string) ([][]interface{}, error)
}

// Enqueuer hands flagged members to the warning queue
type Enqueuer interface {
	Enqueue(ctx context.Context, flagged []models.FlaggedMember, settings queue.Settings) (*queue.WriteReport, error)
}

// Settings configures one scan
type Settings struct {
	SpreadsheetID    string
	Range            string
	DefaultThreshold int
	Queue            queue.Settings
}

// Report summarizes a scan run
type Report struct {
	TotalRows      int                    `json:"total_rows"`
	Valid          int                    `json:"valid"`
	Flagged        int                    `json:"flagged"`
	Queued         int                    `json:"queued"`
	Skipped        int                    `json:"skipped"`
	RowErrors      []models.RowError      `json:"row_errors"`
	Warnings       []models.RowWarning    `json:"warnings"`
	FlaggedMembers []models.FlaggedMember `json:"flagged_members"`
}

// Service runs the scan pipeline: fetch, validate, resolve thresholds, partition, enqueue
type Service struct {
	sheets       SheetReader
	writer       Enqueuer
	thresholds   repositories.RoleThresholdRepository
	adminActions repositories.AdminActionRepository
	metrics      *observability.Metrics
	logger       *zap.Logger
	mu           sync.Mutex
}

// NewService creates a new scan Service
func NewService(
	sheetReader SheetReader,
	writer Enqueuer,
	repos *repositories.Repositories,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		sheets:       sheetReader,
		writer:       writer,
		thresholds:   repos.Thresholds,
		adminActions: repos.AdminActions,
		metrics:      metrics,
		logger:       logger,
	}
}

// Run performs one scan. Configuration and spreadsheet failures abort before anything is queued.
// Operator-triggered runs are recorded as an AdminAction.
func (s *Service) Run(ctx context.Context, actor models.Actor, settings Settings) (*Report, error) {
	if strings.TrimSpace(settings.SpreadsheetID) == "" {
		return nil, services.ErrSheetNotConfigured.WithDetail("missing", "spreadsheet_id")
	}
	if strings.TrimSpace(settings.Range) == "" {
		return nil, services.ErrSheetNotConfigured.WithDetail("missing", "range")
	}
	if settings.DefaultThreshold < 0 {
		return nil, services.ErrInvalidThreshold.WithDetail("default", settings.DefaultThreshold)
	}
	if s.sheets == nil {
		return nil, services.ErrSheetNotConfigured
	}

	if !s.mu.TryLock() {
		return nil, services.ErrScanInProgress
	}
	defer s.mu.Unlock()

	report, err := s.run(ctx, settings)
	if err != nil {
		s.metrics.ScanCompleted("error", 0, 0, 0, 0, 0)
		return nil, err
	}

	s.metrics.ScanCompleted("success", report.Valid, len(report.RowErrors), report.Flagged, report.Queued, report.Skipped)
	s.recordTrigger(ctx, actor, report)

	s.logger.Info("scan completed",
		zap.String("actor_id", actor.ID),
		zap.Int("total_rows", report.TotalRows),
		zap.Int("valid", report.Valid),
		zap.Int("flagged", report.Flagged),
		zap.Int("queued", report.Queued),
		zap.Int("skipped", report.Skipped),
		zap.Int("row_errors", len(report.RowErrors)))

	return report, nil
}

func (s *Service) run(ctx context.Context, settings Settings) (*Report, error) {
	rows, err := s.sheets.ReadRange(ctx, settings.SpreadsheetID, settings.Range)
	if err != nil {
		s.logger.Error("failed to read spreadsheet", zap.String("range", settings.Range), zap.Error(err))
		return nil, services.WrapExternal("failed to read spreadsheet", err)
	}

	validation := ValidateRows(rows, sheets.StartRow(settings.Range))

	stored, err := s.thresholds.List(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to load role thresholds", err)
	}
	overrides := models.NewThresholdMap(stored)

	below, _ := Partition(validation.Members, overrides, settings.DefaultThreshold)

	report := &Report{
		TotalRows:      len(rows),
		Valid:          len(validation.Members),
		Flagged:        len(below),
		RowErrors:      validation.Errors,
		Warnings:       validation.Warnings,
		FlaggedMembers: below,
	}
	if len(below) == 0 {
		return report, nil
	}

	written, err := s.writer.Enqueue(ctx, below, settings.Queue)
	if written != nil {
		report.Queued = written.Queued
		report.Skipped = written.Skipped
		report.RowErrors = append(report.RowErrors, written.Errors...)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) recordTrigger(ctx context.Context, actor models.Actor, report *Report) {
	if actor.IsSystem() || s.adminActions == nil {
		return
	}

	action := models.NewAdminAction(actor, models.AdminActionScanTriggered, "job").
		WithTarget("scan").
		WithDetails(map[string]int{
			"total_rows": report.TotalRows,
			"flagged":    report.Flagged,
			"queued":     report.Queued,
			"skipped":    report.Skipped,
		})
	if err := s.adminActions.Insert(ctx, action); err != nil {
		s.logger.Warn("failed to record scan trigger", zap.String("actor_id", actor.ID), zap.Error(err))
	}
}
