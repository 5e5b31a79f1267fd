package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Session is one orchestrator execution's private storage handle. It is not
// safe for concurrent use; open one per execution and Close it on every exit.
type Session struct {
	conn  *sql.Conn
	store *Store
}

// Session acquires a dedicated connection from the pool.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ensureContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("acquire job session: %w", err)
	}
	return &Session{conn: conn, store: s}, nil
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Get reads the job through this session's connection.
func (s *Session) Get(ctx context.Context, id int64) (*Job, error) {
	return getJob(ensureContext(ctx), s.conn, id)
}

// Claim moves a pending job to processing and clears any stale error detail.
// It reports false without error when the job was not pending, which callers
// treat as a duplicate dispatch.
func (s *Session) Claim(ctx context.Context, id int64) (bool, error) {
	now := s.store.timestamp()
	res, err := execWithRetry(ctx, s.conn,
		`UPDATE jobs SET status = ?, error_detail = NULL, progress_message = NULL,
             started_at = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing, now, now, now, id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job %d: %w", id, err)
	}
	return affected == 1, nil
}

// SetProgress overwrites the progress message of a processing job.
func (s *Session) SetProgress(ctx context.Context, id int64, message string) error {
	return s.updateProcessing(ctx, id, "progress_message = ?", nullableString(message))
}

// SaveOutput persists the accumulated output of a processing job.
func (s *Session) SaveOutput(ctx context.Context, id int64, out Output) error {
	encoded, err := encodeOutput(out)
	if err != nil {
		return err
	}
	return s.updateProcessing(ctx, id, "output_json = ?", encoded)
}

func (s *Session) updateProcessing(ctx context.Context, id int64, set string, value any) error {
	res, err := execWithRetry(ctx, s.conn,
		"UPDATE jobs SET "+set+", updated_at = ? WHERE id = ? AND status = ?",
		value, s.store.timestamp(), id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update job %d: %w", id, ErrNotProcessing)
	}
	return nil
}

// Finish commits a terminal outcome. Keyword rows are replaced in the same
// transaction when the outcome carries a keyword set.
func (s *Session) Finish(ctx context.Context, id int64, outcome Outcome) error {
	ctx = ensureContext(ctx)
	if !outcome.Status.IsTerminal() {
		return fmt.Errorf("finish job %d: status %q is not terminal", id, outcome.Status)
	}
	return retryOnBusy(ctx, func() error {
		return s.finishTx(ctx, id, outcome)
	})
}

func (s *Session) finishTx(ctx context.Context, id int64, outcome Outcome) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.store.timestamp()
	query := `UPDATE jobs SET status = ?, progress_message = ?, error_detail = ?,
                  finished_at = ?, updated_at = ?, last_heartbeat = NULL`
	args := []any{outcome.Status, nullableString(outcome.ProgressMessage), nullableString(outcome.ErrorDetail), now, now}
	if outcome.Output != nil {
		encoded, err := encodeOutput(*outcome.Output)
		if err != nil {
			return err
		}
		query += ", output_json = ?"
		args = append(args, encoded)
	}
	query += " WHERE id = ? AND status = ?"
	args = append(args, id, StatusProcessing)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("finish job %d: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("finish job %d: %w", id, ErrNotProcessing)
	}

	if outcome.Keywords != nil {
		if err := replaceKeywords(ctx, tx, id, *outcome.Keywords, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish job %d: %w", id, err)
	}
	return nil
}

func replaceKeywords(ctx context.Context, tx *sql.Tx, jobID int64, set KeywordSet, now string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM job_keywords WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("delete keywords for job %d: %w", jobID, err)
	}
	for _, word := range set.Words {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO job_keywords (job_id, keyword, model_version, created_at) VALUES (?, ?, ?, ?)",
			jobID, word, set.ModelVersion, now,
		); err != nil {
			return fmt.Errorf("insert keyword for job %d: %w", jobID, err)
		}
	}
	return nil
}

// IsNotProcessing reports whether err came from a write against a job that
// left the processing state.
func IsNotProcessing(err error) bool {
	return errors.Is(err, ErrNotProcessing)
}
