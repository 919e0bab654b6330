package workflow

import (
	"context"
	"errors"
	"strings"

	"membooth/internal/logging"
	"membooth/internal/services"
	"membooth/internal/session"
)

func (m *Manager) handleStageFailure(ctx context.Context, sess *session.Session, stageErr error) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithContext(ctx, base).With(logging.String(logging.FieldComponent, "workflow-manager"))

	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = "generation failed without error detail"
	}
	sess.SetFailed(string(details.Kind), message)

	logger.Error("stage failed",
		logging.Alert("stage_failure"),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, sess); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastSession(sess)

	// Validation failures route the visitor back to a step; they are not
	// operator-facing incidents.
	if m.notifier != nil && details.Kind != services.KindValidation {
		if err := m.notifier.NotifyError(ctx, stageErr, string(sess.MementoType)+" generation"); err != nil {
			logger.Warn("error notification failed", logging.Error(err))
		}
	}
}
