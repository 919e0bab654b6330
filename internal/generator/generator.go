package generator

import (
	"context"
	"log/slog"
	"strings"

	"membooth/internal/config"
	"membooth/internal/logging"
	"membooth/internal/media"
	"membooth/internal/notifications"
	"membooth/internal/services"
	"membooth/internal/services/montage"
	"membooth/internal/services/stylegen"
	"membooth/internal/services/voiceclone"
	"membooth/internal/session"
	"membooth/internal/stage"
	"membooth/internal/styles"
)

// StyleClient produces a stylized image from a capture.
type StyleClient interface {
	Generate(ctx context.Context, req stylegen.Request) (stylegen.Result, error)
	HealthCheck(ctx context.Context) error
}

// VoiceClient speaks text, optionally in a cloned voice.
type VoiceClient interface {
	Synthesize(ctx context.Context, req voiceclone.Request) (voiceclone.Result, error)
	HealthCheck(ctx context.Context) error
}

// MontageClient renders montage frames into a video.
type MontageClient interface {
	Render(ctx context.Context, req montage.Request, onProgress func(montage.Progress)) (montage.Result, error)
	HealthCheck(ctx context.Context) error
}

// Generator runs the processing step: it turns a queued session's capture
// and selections into the finished memento by calling the configured
// generation endpoint for the session's memento type.
type Generator struct {
	store    *session.Store
	cfg      *config.Config
	logger   *slog.Logger
	style    StyleClient
	voice    VoiceClient
	montage  MontageClient
	notifier notifications.Service
}

// NewGenerator constructs the generation stage handler using default dependencies.
func NewGenerator(cfg *config.Config, store *session.Store, logger *slog.Logger) *Generator {
	return NewGeneratorWithDependencies(
		cfg,
		store,
		logger,
		stylegen.NewClient(stylegen.Config{
			Endpoint:       cfg.StyleGen.Endpoint,
			APIKey:         cfg.StyleGen.APIKey,
			TimeoutSeconds: cfg.StyleGen.TimeoutSeconds,
		}),
		voiceclone.NewClient(voiceclone.Config{
			Endpoint:       cfg.VoiceClone.Endpoint,
			APIKey:         cfg.VoiceClone.APIKey,
			TimeoutSeconds: cfg.VoiceClone.TimeoutSeconds,
		}),
		montage.NewClient(montage.Config{
			Endpoint:             cfg.Montage.Endpoint,
			APIKey:               cfg.Montage.APIKey,
			SubmitTimeoutSeconds: cfg.Montage.SubmitTimeoutSeconds,
			PollIntervalSeconds:  cfg.Montage.PollIntervalSeconds,
			JobTimeoutSeconds:    cfg.Montage.JobTimeoutSeconds,
		}),
		notifications.NewService(cfg),
	)
}

// NewGeneratorWithDependencies allows injecting collaborators (used in tests).
func NewGeneratorWithDependencies(
	cfg *config.Config,
	store *session.Store,
	logger *slog.Logger,
	style StyleClient,
	voice VoiceClient,
	montageClient MontageClient,
	notifier notifications.Service,
) *Generator {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "generator"))
	}
	return &Generator{
		store:    store,
		cfg:      cfg,
		logger:   stageLogger,
		style:    style,
		voice:    voice,
		montage:  montageClient,
		notifier: notifier,
	}
}

// Prepare validates the session's prerequisites before any endpoint is
// called. A session missing its capture or selection never produces an
// outbound request; the validation error routes the visitor back to the
// step that can fix it.
func (g *Generator) Prepare(ctx context.Context, sess *session.Session) error {
	logger := logging.WithContext(ctx, g.logger)

	if err := sess.ValidateForGeneration(g.cfg.Booth.MaxMontageImages); err != nil {
		return err
	}

	sess.SetProgress("Generating", "Contacting generation service", 0)
	sess.ErrorMessage = ""
	sess.FailureKind = ""
	logger.Info(
		"starting generation",
		logging.String(logging.FieldMementoType, string(sess.MementoType)),
		logging.String("style", sess.StyleID),
	)

	if g.notifier != nil {
		if err := g.notifier.NotifyGenerationStarted(ctx, string(sess.MementoType), sess.Token); err != nil {
			logger.Warn("start notification failed", logging.Error(err))
		}
	}
	return nil
}

// Execute runs the generation call for the session's memento type and stores
// the finished artifact.
func (g *Generator) Execute(ctx context.Context, sess *session.Session) error {
	logger := logging.WithContext(ctx, g.logger)

	var err error
	switch sess.MementoType {
	case session.TypePhoto:
		err = g.generatePhoto(ctx, sess)
	case session.TypeAudio:
		err = g.generateAudio(ctx, sess)
	case session.TypeVideo:
		err = g.generateVideo(ctx, sess)
	default:
		err = services.Wrap(services.ErrValidation, "generator", "execute",
			"unknown memento type "+string(sess.MementoType), nil)
	}
	if err != nil {
		return err
	}

	logger.Info(
		"generation complete",
		logging.String(logging.FieldMementoType, string(sess.MementoType)),
		logging.String("result_mime", sess.GeneratedMIME),
	)
	if g.notifier != nil {
		if notifyErr := g.notifier.NotifyMementoReady(ctx, string(sess.MementoType), sess.Token); notifyErr != nil {
			logger.Warn("completion notification failed", logging.Error(notifyErr))
		}
	}
	return nil
}

func (g *Generator) generatePhoto(ctx context.Context, sess *session.Session) error {
	mimeType, data, err := media.DecodeDataURL(sess.CapturedAsset)
	if err != nil {
		return services.Wrap(services.ErrValidation, "generator", "decode capture", "stored photo is unreadable", err)
	}

	prompt, ok := styles.PromptFor(sess.StyleID, sess.CustomPrompt)
	if !ok {
		return services.Wrap(services.ErrValidation, "generator", "resolve style", "custom style requires a prompt", nil)
	}

	aspect := "1:1"
	if info, probeErr := media.ProbeImage(data); probeErr == nil {
		aspect = media.OutputAspectRatio(info.Width, info.Height)
	}

	outputFormat := strings.TrimSpace(sess.OutputFormat)
	if outputFormat == "" {
		outputFormat = g.cfg.Booth.DefaultOutputFormat
	}

	g.progress(ctx, sess, "Generating", "Applying style", 30)
	result, err := g.style.Generate(ctx, stylegen.Request{
		Image:        data,
		ImageMIME:    mimeType,
		Prompt:       prompt,
		Fidelity:     g.cfg.Booth.DefaultFidelity,
		OutputFormat: outputFormat,
		AspectRatio:  aspect,
	})
	if err != nil {
		return err
	}

	sess.SetCompleted(media.EncodeDataURL(result.MIME, result.Data), result.MIME)
	return nil
}

func (g *Generator) generateAudio(ctx context.Context, sess *session.Session) error {
	mimeType, data, err := media.DecodeDataURL(sess.CapturedAsset)
	if err != nil {
		return services.Wrap(services.ErrValidation, "generator", "decode capture", "stored voice sample is unreadable", err)
	}

	voice := strings.TrimSpace(sess.VoiceType)
	if voice == "" {
		voice = voiceclone.VoiceClone
	}

	g.progress(ctx, sess, "Generating", "Cloning voice", 30)
	result, err := g.voice.Synthesize(ctx, voiceclone.Request{
		Text:      sess.SpokenText,
		VoiceType: voice,
		Audio:     data,
		AudioMIME: mimeType,
	})
	if err != nil {
		return err
	}

	sess.SetCompleted(media.EncodeDataURL(result.MIME, result.Data), result.MIME)
	return nil
}

func (g *Generator) generateVideo(ctx context.Context, sess *session.Session) error {
	images, err := sess.DecodeMontageImages()
	if err != nil {
		return services.Wrap(services.ErrValidation, "generator", "decode frames", "stored montage frames are unreadable", err)
	}

	g.progress(ctx, sess, "Generating", "Rendering montage", 10)
	result, err := g.montage.Render(ctx, montage.Request{
		Images:        images,
		MusicCategory: sess.MusicCategory,
	}, func(p montage.Progress) {
		message := strings.TrimSpace(p.Message)
		if message == "" {
			message = "Rendering montage"
		}
		percent := p.Percent
		if percent <= 0 {
			percent = 10
		}
		g.progress(ctx, sess, "Generating", message, percent)
	})
	if err != nil {
		return err
	}

	sess.SetCompleted(media.EncodeDataURL(result.MIME, result.Data), result.MIME)
	return nil
}

// progress persists a progress update mid-generation so status polls and the
// progress stream see movement while the endpoint call is in flight.
func (g *Generator) progress(ctx context.Context, sess *session.Session, stageLabel, message string, percent float64) {
	sess.SetProgress(stageLabel, message, percent)
	if g.store == nil {
		return
	}
	if err := g.store.Update(ctx, sess); err != nil {
		logging.WithContext(ctx, g.logger).Warn("persist progress failed", logging.Error(err))
	}
}

// HealthCheck reports whether at least one generation endpoint is usable.
func (g *Generator) HealthCheck(ctx context.Context) stage.Health {
	var problems []string
	if err := g.style.HealthCheck(ctx); err != nil {
		problems = append(problems, err.Error())
	}
	if err := g.voice.HealthCheck(ctx); err != nil {
		problems = append(problems, err.Error())
	}
	if err := g.montage.HealthCheck(ctx); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) == 3 {
		return stage.Degraded("generator", strings.Join(problems, "; "))
	}
	return stage.Healthy("generator")
}
