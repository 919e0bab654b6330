package api

import (
	"context"

	"membooth/internal/session"
)

// SessionReader abstracts session persistence interactions needed for API queries.
type SessionReader interface {
	List(ctx context.Context, statuses ...session.Status) ([]*session.Session, error)
	Stats(ctx context.Context) (map[session.Status]int, error)
	GetByToken(ctx context.Context, token string) (*session.Session, error)
}

// SessionService exposes read-only session operations returning API DTOs.
type SessionService struct {
	store SessionReader
}

// NewSessionService constructs a SessionService around the provided reader.
func NewSessionService(store SessionReader) *SessionService {
	if store == nil {
		return nil
	}
	return &SessionService{store: store}
}

// List returns sessions filtered by status.
func (s *SessionService) List(ctx context.Context, statuses ...session.Status) ([]Session, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	sessions, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromSessions(sessions), nil
}

// Stats returns session summary counts keyed by status string.
func (s *SessionService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeSessionStats(stats), nil
}

// Describe fetches a single session by its public token.
func (s *SessionService) Describe(ctx context.Context, token string) (*Session, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	sess, err := s.store.GetByToken(ctx, token)
	if err != nil || sess == nil {
		return nil, err
	}
	dto := FromSession(sess)
	return &dto, nil
}
