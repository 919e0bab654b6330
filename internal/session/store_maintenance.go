package session

import (
	"context"
	"fmt"
	"time"
)

// Delete removes a session by token.
func (s *Store) Delete(ctx context.Context, token string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session rows: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all sessions.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

// ClearCompleted removes sessions whose memento was delivered.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM sessions WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed sessions: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes failed sessions.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM sessions WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed sessions: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed sessions back to the selection step so the visitor
// can adjust their choices and generate again. Captured assets are kept.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions
         SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
             progress_message = NULL, error_message = NULL, failure_kind = NULL, updated_at = ?
         WHERE status = ?`,
		StatusCaptured,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed sessions: %w", err)
	}
	return res.RowsAffected()
}

// RetryByToken moves one failed session back to the selection step.
func (s *Store) RetryByToken(ctx context.Context, token string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions
         SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
             progress_message = NULL, error_message = NULL, failure_kind = NULL, updated_at = ?
         WHERE token = ? AND status = ?`,
		StatusCaptured,
		time.Now().UTC().Format(time.RFC3339Nano),
		token,
		StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("retry session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("retry session rows: %w", err)
	}
	return affected > 0, nil
}

// ResetStuckGenerating requeues generating sessions left behind by an
// unclean shutdown. Called on daemon startup before the workflow begins.
func (s *Store) ResetStuckGenerating(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions
         SET status = ?, progress_stage = 'Reset from stuck generating',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`,
		StatusReady,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusGenerating,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck sessions: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStaleGenerating fails generating sessions whose heartbeat is older
// than the cutoff. Interrupted sessions are surfaced to the visitor rather
// than silently retried.
func (s *Store) ReclaimStaleGenerating(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions
         SET status = ?, error_message = ?, failure_kind = 'interrupted',
             progress_stage = 'Failed', progress_percent = 0, progress_message = ?,
             last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusFailed,
		InterruptedReason,
		InterruptedReason,
		now.Format(time.RFC3339Nano),
		StatusGenerating,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale sessions: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat refreshes the liveness marker for an in-flight generation.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	err := s.execWithoutResultRetry(
		ctx,
		`UPDATE sessions SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}
