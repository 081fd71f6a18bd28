package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docrelay/docrelay/internal/core/domain"
	"github.com/docrelay/docrelay/internal/infra/storage"
)

// CycleRepo implements storage.CycleRepository using PostgreSQL.
type CycleRepo struct {
	db *DB
}

// NewCycleRepo creates a new PostgreSQL cycle repository.
func NewCycleRepo(db *DB) *CycleRepo {
	return &CycleRepo{db: db}
}

type cycleRow struct {
	ID                 string    `db:"id"`
	DateFolder         string    `db:"date_folder"`
	StartTime          time.Time `db:"start_time"`
	EndTime            time.Time `db:"end_time"`
	Status             string    `db:"status"`
	FoldersScanned     []byte    `db:"folders_scanned"`
	Downloads          []byte    `db:"downloads"`
	DocumentsProcessed int       `db:"documents_processed"`
	RecordsExtracted   int       `db:"records_extracted"`
	ArtifactName       string    `db:"artifact_name"`
	ArtifactPath       string    `db:"artifact_path"`
	ArtifactSize       int64     `db:"artifact_size"`
	PublishStatus      string    `db:"publish_status"`
	LogFilename        string    `db:"log_filename"`
	NotificationSent   bool      `db:"notification_sent"`
	Errors             []byte    `db:"errors"`
}

func toRow(s *domain.CycleStats) (*cycleRow, error) {
	folders, err := json.Marshal(s.FoldersScanned)
	if err != nil {
		return nil, fmt.Errorf("marshal folders: %w", err)
	}
	downloads, err := json.Marshal(s.Downloads)
	if err != nil {
		return nil, fmt.Errorf("marshal downloads: %w", err)
	}
	errs, err := json.Marshal(s.Errors)
	if err != nil {
		return nil, fmt.Errorf("marshal errors: %w", err)
	}
	return &cycleRow{
		ID:                 s.ID,
		DateFolder:         s.DateFolder,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		Status:             string(s.Status()),
		FoldersScanned:     folders,
		Downloads:          downloads,
		DocumentsProcessed: s.DocumentsProcessed,
		RecordsExtracted:   s.RecordsExtracted,
		ArtifactName:       s.ArtifactName,
		ArtifactPath:       s.ArtifactPath,
		ArtifactSize:       s.ArtifactSize,
		PublishStatus:      s.PublishStatus,
		LogFilename:        s.LogFilename,
		NotificationSent:   s.NotificationSent,
		Errors:             errs,
	}, nil
}

func (r *cycleRow) toDomain() (*domain.CycleStats, error) {
	s := &domain.CycleStats{
		ID:                 r.ID,
		DateFolder:         r.DateFolder,
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		DocumentsProcessed: r.DocumentsProcessed,
		RecordsExtracted:   r.RecordsExtracted,
		ArtifactName:       r.ArtifactName,
		ArtifactPath:       r.ArtifactPath,
		ArtifactSize:       r.ArtifactSize,
		PublishStatus:      r.PublishStatus,
		LogFilename:        r.LogFilename,
		NotificationSent:   r.NotificationSent,
	}
	if len(r.FoldersScanned) > 0 {
		if err := json.Unmarshal(r.FoldersScanned, &s.FoldersScanned); err != nil {
			return nil, fmt.Errorf("unmarshal folders: %w", err)
		}
	}
	if len(r.Downloads) > 0 {
		if err := json.Unmarshal(r.Downloads, &s.Downloads); err != nil {
			return nil, fmt.Errorf("unmarshal downloads: %w", err)
		}
	}
	if len(r.Errors) > 0 {
		if err := json.Unmarshal(r.Errors, &s.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
	}
	return s, nil
}

const insertCycle = `
INSERT INTO cycles (
	id, date_folder, start_time, end_time, status,
	folders_scanned, downloads, documents_processed, records_extracted,
	artifact_name, artifact_path, artifact_size,
	publish_status, log_filename, notification_sent, errors
) VALUES (
	:id, :date_folder, :start_time, :end_time, :status,
	:folders_scanned, :downloads, :documents_processed, :records_extracted,
	:artifact_name, :artifact_path, :artifact_size,
	:publish_status, :log_filename, :notification_sent, :errors
)
ON CONFLICT (id) DO UPDATE SET
	end_time = EXCLUDED.end_time,
	status = EXCLUDED.status,
	downloads = EXCLUDED.downloads,
	documents_processed = EXCLUDED.documents_processed,
	records_extracted = EXCLUDED.records_extracted,
	artifact_name = EXCLUDED.artifact_name,
	artifact_path = EXCLUDED.artifact_path,
	artifact_size = EXCLUDED.artifact_size,
	publish_status = EXCLUDED.publish_status,
	log_filename = EXCLUDED.log_filename,
	notification_sent = EXCLUDED.notification_sent,
	errors = EXCLUDED.errors`

// Save upserts one cycle row.
func (r *CycleRepo) Save(ctx context.Context, stats *domain.CycleStats) error {
	row, err := toRow(stats)
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, insertCycle, row); err != nil {
		return fmt.Errorf("failed to save cycle: %w", err)
	}
	return nil
}

const selectCycle = `
SELECT id, date_folder, start_time, end_time, status,
	folders_scanned, downloads, documents_processed, records_extracted,
	artifact_name, artifact_path, artifact_size,
	publish_status, log_filename, notification_sent, errors
FROM cycles`

// GetLatest returns the most recently started cycle.
func (r *CycleRepo) GetLatest(ctx context.Context) (*domain.CycleStats, error) {
	var row cycleRow
	err := r.db.GetContext(ctx, &row, selectCycle+" ORDER BY start_time DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrCycleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest cycle: %w", err)
	}
	return row.toDomain()
}

// GetRecent returns up to limit cycles, newest first.
func (r *CycleRepo) GetRecent(ctx context.Context, limit int) ([]*domain.CycleStats, error) {
	var rows []cycleRow
	err := r.db.SelectContext(ctx, &rows, selectCycle+" ORDER BY start_time DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	out := make([]*domain.CycleStats, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// DeleteBefore removes cycles started before cutoff.
func (r *CycleRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cycles WHERE start_time < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cycles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
