package jobs

import (
	"context"
	"fmt"
)

// InterruptedMessage is recorded on jobs a previous process left in flight.
const InterruptedMessage = "Interrupted by restart"

// UpdateHeartbeat refreshes last_heartbeat for a processing job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := s.timestamp()
	if _, err := execWithRetry(ctx, s.db,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// FailInterrupted marks every processing job as failed. Called once at
// startup, before any worker runs, so no live execution can own those rows.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	now := s.timestamp()
	res, err := execWithRetry(ctx, s.db,
		`UPDATE jobs SET status = ?, progress_message = ?, error_detail = ?,
             finished_at = ?, updated_at = ?, last_heartbeat = NULL
         WHERE status = ?`,
		StatusFailed, InterruptedMessage, InterruptedMessage, now, now, StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// PendingIDs returns pending job ids, oldest first.
func (s *Store) PendingIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id FROM jobs WHERE status = ? ORDER BY created_at, id`, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("pending jobs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Retry moves a failed job back to pending, discarding its output and
// keywords. It reports false when the job was not failed.
func (s *Store) Retry(ctx context.Context, id int64) (bool, error) {
	ctx = ensureContext(ctx)
	var retried bool
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin retry tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, progress_message = ?, error_detail = NULL, output_json = NULL,
                 started_at = NULL, finished_at = NULL, last_heartbeat = NULL, updated_at = ?
             WHERE id = ? AND status = ?`,
			StatusPending, "Retry requested", s.timestamp(), id, StatusFailed,
		)
		if err != nil {
			return fmt.Errorf("retry job %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			retried = false
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM job_keywords WHERE job_id = ?", id); err != nil {
			return fmt.Errorf("clear keywords for job %d: %w", id, err)
		}
		retried = true
		return tx.Commit()
	})
	if err != nil {
		return false, err
	}
	if !retried {
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
	}
	return retried, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for status output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var health HealthSummary
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusSkipped:
			health.Skipped += count
		}
	}
	return health, nil
}
