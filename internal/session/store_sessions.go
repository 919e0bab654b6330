package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = "id, token, memento_type, status, captured_asset, montage_images, video_mode, style_id, custom_prompt, spoken_text, voice_type, music_category, output_format, generated_asset, generated_mime, error_message, failure_kind, capture_failure, progress_stage, progress_percent, progress_message, created_at, updated_at, last_heartbeat"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id               int64
		token            string
		mementoType      string
		statusStr        string
		capturedAsset    sql.NullString
		montageImages    sql.NullString
		videoMode        sql.NullString
		styleID          sql.NullString
		customPrompt     sql.NullString
		spokenText       sql.NullString
		voiceType        sql.NullString
		musicCategory    sql.NullString
		outputFormat     sql.NullString
		generatedAsset   sql.NullString
		generatedMIME    sql.NullString
		errorMessage     sql.NullString
		failureKind      sql.NullString
		captureFailure   sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&token,
		&mementoType,
		&statusStr,
		&capturedAsset,
		&montageImages,
		&videoMode,
		&styleID,
		&customPrompt,
		&spokenText,
		&voiceType,
		&musicCategory,
		&outputFormat,
		&generatedAsset,
		&generatedMIME,
		&errorMessage,
		&failureKind,
		&captureFailure,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:              id,
		Token:           token,
		MementoType:     MementoType(mementoType),
		Status:          Status(statusStr),
		CapturedAsset:   capturedAsset.String,
		MontageImages:   montageImages.String,
		VideoMode:       VideoMode(videoMode.String),
		StyleID:         styleID.String,
		CustomPrompt:    customPrompt.String,
		SpokenText:      spokenText.String,
		VoiceType:       voiceType.String,
		MusicCategory:   musicCategory.String,
		OutputFormat:    outputFormat.String,
		GeneratedAsset:  generatedAsset.String,
		GeneratedMIME:   generatedMIME.String,
		ErrorMessage:    errorMessage.String,
		FailureKind:     failureKind.String,
		CaptureFailure:  captureFailure.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		sess.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sess.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			sess.LastHeartbeat = &heartbeat
		}
	}
	return sess, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// NewSession inserts a new session for the requested memento type. The
// session starts at the capture step with a freshly minted token.
func (s *Store) NewSession(ctx context.Context, mementoType MementoType) (*Session, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	token := uuid.NewString()

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO sessions (token, memento_type, status, progress_stage, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		token,
		string(mementoType),
		StatusPending,
		"Awaiting capture",
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("fetch session id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a session by database ID.
func (s *Store) GetByID(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// GetByToken fetches a session by its public token.
func (s *Store) GetByToken(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, token)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return sess, nil
}

// Update persists all mutable session fields.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("nil session")
	}
	sess.UpdatedAt = time.Now().UTC()

	err := s.execWithoutResultRetry(
		ctx,
		`UPDATE sessions SET
            memento_type = ?,
            status = ?,
            captured_asset = ?,
            montage_images = ?,
            video_mode = ?,
            style_id = ?,
            custom_prompt = ?,
            spoken_text = ?,
            voice_type = ?,
            music_category = ?,
            output_format = ?,
            generated_asset = ?,
            generated_mime = ?,
            error_message = ?,
            failure_kind = ?,
            capture_failure = ?,
            progress_stage = ?,
            progress_percent = ?,
            progress_message = ?,
            updated_at = ?,
            last_heartbeat = ?
         WHERE id = ?`,
		string(sess.MementoType),
		sess.Status,
		nullableString(sess.CapturedAsset),
		nullableString(sess.MontageImages),
		nullableString(string(sess.VideoMode)),
		nullableString(sess.StyleID),
		nullableString(sess.CustomPrompt),
		nullableString(sess.SpokenText),
		nullableString(sess.VoiceType),
		nullableString(sess.MusicCategory),
		nullableString(sess.OutputFormat),
		nullableString(sess.GeneratedAsset),
		nullableString(sess.GeneratedMIME),
		nullableString(sess.ErrorMessage),
		nullableString(sess.FailureKind),
		nullableString(sess.CaptureFailure),
		nullableString(sess.ProgressStage),
		sess.ProgressPercent,
		nullableString(sess.ProgressMessage),
		sess.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(sess.LastHeartbeat),
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// NextForStatuses returns the oldest session matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Session, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// MarkReady moves a captured session into the generation queue. The guarded
// transition keeps a session from being queued twice or queued before its
// capture and selection steps finished.
func (s *Store) MarkReady(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions
         SET status = ?, progress_stage = 'Queued', progress_percent = 0,
             progress_message = NULL, error_message = NULL, failure_kind = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusReady,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCaptured,
	)
	if err != nil {
		return false, fmt.Errorf("mark ready: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark ready rows: %w", err)
	}
	return affected > 0, nil
}

// ClaimGenerating atomically claims a ready session for generation. Only one
// caller can win the claim, so each queued session is generated at most once
// per cycle.
func (s *Store) ClaimGenerating(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions
         SET status = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusGenerating,
		now,
		now,
		id,
		StatusReady,
	)
	if err != nil {
		return false, fmt.Errorf("claim session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim session rows: %w", err)
	}
	return affected > 0, nil
}

// List returns sessions filtered by status set (or all sessions when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Session, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + sessionColumns + ` FROM sessions`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Stats returns a count of sessions grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// HealthSummary aggregates session counts for diagnostic output.
type HealthSummary struct {
	Total      int
	Pending    int
	Captured   int
	Queued     int
	Generating int
	Completed  int
	Failed     int
}

// Health aggregates session state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusCaptured:
			health.Captured += count
		case StatusReady:
			health.Queued += count
		case StatusGenerating:
			health.Generating += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}
