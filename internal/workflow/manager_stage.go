package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"membooth/internal/logging"
	"membooth/internal/services"
	"membooth/internal/session"
)

func (m *Manager) processSession(ctx context.Context, logger *slog.Logger, sess *session.Session) error {
	claimed, err := m.store.ClaimGenerating(ctx, sess.ID)
	if err != nil {
		logger.Error("failed to claim session", logging.Error(err))
		m.setLastError(err)
		return err
	}
	if !claimed {
		// Another poll cycle won the claim; nothing to do.
		return nil
	}

	sess, err = m.store.GetByID(ctx, sess.ID)
	if err != nil {
		m.setLastError(err)
		return err
	}
	if sess == nil {
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(
		services.WithStage(services.WithSessionID(ctx, sess.ID), "generation"),
		requestID,
	)
	stageLogger := logging.WithContext(stageCtx, logger).With(
		logging.String(logging.FieldSessionToken, sess.Token),
		logging.String(logging.FieldMementoType, string(sess.MementoType)),
	)

	return m.executeStage(stageCtx, stageLogger, sess)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, sess *session.Session) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
	)

	if err := m.generator.Prepare(ctx, sess); err != nil {
		m.handleStageFailure(ctx, sess, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, sess); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, sess)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, sess, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if sess.Status == session.StatusGenerating {
		sess.Status = session.StatusCompleted
	}
	sess.LastHeartbeat = nil
	if err := m.store.Update(ctx, sess); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(sess.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastSession(sess)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, sess *session.Session) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, sess.ID)

	execErr := m.generator.Execute(ctx, sess)
	hbCancel()
	hbWG.Wait()
	return execErr
}
