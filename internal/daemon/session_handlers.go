package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"membooth/internal/api"
	"membooth/internal/logging"
	"membooth/internal/media"
	"membooth/internal/music"
	"membooth/internal/notifications"
	"membooth/internal/services/voiceclone"
	"membooth/internal/session"
	"membooth/internal/styles"
)

// frameValidationConcurrency bounds how many montage frames are decoded at
// once so a full-size upload does not spike memory on the kiosk host.
const frameValidationConcurrency = 4

type createSessionRequest struct {
	MementoType string `json:"mementoType"`
}

type captureRequest struct {
	Asset     string   `json:"asset"`
	Frames    []string `json:"frames"`
	VideoMode string   `json:"videoMode"`
}

type captureFailureRequest struct {
	Reason string `json:"reason"`
}

type selectionRequest struct {
	StyleID       string `json:"styleId"`
	CustomPrompt  string `json:"customPrompt"`
	SpokenText    string `json:"spokenText"`
	VoiceType     string `json:"voiceType"`
	MusicCategory string `json:"musicCategory"`
	OutputFormat  string `json:"outputFormat"`
}

type generateRejection struct {
	Error        string `json:"error"`
	RedirectStep string `json:"redirectStep"`
}

type resultResponse struct {
	Session api.Session         `json:"session"`
	Asset   string              `json:"asset,omitempty"`
	Mime    string              `json:"mime,omitempty"`
	Share   api.ShareDescriptor `json:"share"`
}

func (s *httpServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mementoType, ok := session.ParseMementoType(req.MementoType)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown memento type %q", req.MementoType))
		return
	}
	sess, err := s.daemon.store.NewSession(r.Context(), mementoType)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log().Info("session created",
		logging.String(logging.FieldSessionToken, sess.Token),
		logging.String(logging.FieldMementoType, string(mementoType)))
	s.writeJSON(w, http.StatusCreated, api.SessionResponse{Session: api.FromSession(sess)})
}

func (s *httpServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var statuses []session.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := session.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}
	sessions, err := s.sessionSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: sessions})
}

func (s *httpServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.fetchSession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: api.FromSession(sess)})
}

func (s *httpServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	removed, err := s.daemon.DeleteSession(r.Context(), token)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *httpServer) handleCapture(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.fetchSession(w, r)
	if !ok {
		return
	}
	switch sess.Status {
	case session.StatusPending, session.StatusCaptured:
	default:
		s.writeError(w, http.StatusConflict, fmt.Sprintf("session is %s and cannot accept captures", sess.Status))
		return
	}

	maxBytes := s.daemon.cfg.Booth.MaxUploadBytes
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("capture exceeds the %d byte upload limit", maxBytes))
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.applyCapture(sess, req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sess.Status = session.StatusCaptured
	sess.CaptureFailure = ""
	sess.SetProgress("Captured", "Awaiting selection", 0)
	if err := s.daemon.store.Update(r.Context(), sess); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: api.FromSession(sess)})
}

// applyCapture validates the uploaded media and stores it on the session.
func (s *httpServer) applyCapture(sess *session.Session, req captureRequest) error {
	switch sess.MementoType {
	case session.TypePhoto:
		if strings.TrimSpace(req.Asset) == "" {
			return errors.New("photo capture requires an asset")
		}
		if err := validateCapturedImage(req.Asset); err != nil {
			return err
		}
		sess.CapturedAsset = req.Asset
		return nil

	case session.TypeAudio:
		if strings.TrimSpace(req.Asset) == "" {
			return errors.New("audio capture requires a recorded sample")
		}
		mimeType, _, err := media.DecodeDataURL(req.Asset)
		if err != nil {
			return fmt.Errorf("decode audio sample: %w", err)
		}
		if !media.IsCaptureAudioMIME(mimeType) {
			return fmt.Errorf("unsupported audio capture type %q", mimeType)
		}
		sess.CapturedAsset = req.Asset
		return nil

	case session.TypeVideo:
		if len(req.Frames) == 0 {
			return errors.New("video capture requires at least one frame")
		}
		if max := s.daemon.cfg.Booth.MaxMontageImages; max > 0 && len(req.Frames) > max {
			return fmt.Errorf("at most %d montage frames allowed", max)
		}
		g := new(errgroup.Group)
		g.SetLimit(frameValidationConcurrency)
		for i, frame := range req.Frames {
			i, frame := i, frame
			g.Go(func() error {
				if err := validateCapturedImage(frame); err != nil {
					return fmt.Errorf("frame %d: %w", i+1, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		encoded, err := session.EncodeMontageImages(req.Frames)
		if err != nil {
			return err
		}
		sess.MontageImages = encoded
		mode := session.VideoMode(strings.ToLower(strings.TrimSpace(req.VideoMode)))
		switch mode {
		case session.VideoModeStills, session.VideoModeClip:
			sess.VideoMode = mode
		case "":
			sess.VideoMode = session.VideoModeStills
		default:
			return fmt.Errorf("unknown video mode %q", req.VideoMode)
		}
		return nil

	default:
		return fmt.Errorf("unknown memento type %q", sess.MementoType)
	}
}

func validateCapturedImage(dataURL string) error {
	mimeType, data, err := media.DecodeDataURL(dataURL)
	if err != nil {
		return fmt.Errorf("decode capture: %w", err)
	}
	if !media.IsImageMIME(mimeType) {
		return fmt.Errorf("unsupported capture type %q", mimeType)
	}
	info, err := media.ProbeImage(data)
	if err != nil {
		return fmt.Errorf("read capture image: %w", err)
	}
	return media.ValidateCaptureImage(info)
}

func (s *httpServer) handleCaptureFailure(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.fetchSession(w, r)
	if !ok {
		return
	}
	var req captureFailureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "capture device unavailable"
	}
	sess.CaptureFailure = reason
	if err := s.daemon.store.Update(r.Context(), sess); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log().Warn("capture failure reported",
		logging.String(logging.FieldSessionToken, sess.Token),
		logging.String("reason", reason))
	notifier := notifications.NewService(s.daemon.cfg)
	if err := notifier.NotifyCaptureIssue(r.Context(), sess.Token, reason); err != nil {
		s.log().Warn("capture issue notification failed", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: api.FromSession(sess)})
}

func (s *httpServer) handleSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.fetchSession(w, r)
	if !ok {
		return
	}
	if sess.Status != session.StatusCaptured {
		s.writeError(w, http.StatusConflict,
			fmt.Sprintf("session is %s; selections require a capture first", sess.Status))
		return
	}
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := applySelection(sess, req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.daemon.store.Update(r.Context(), sess); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: api.FromSession(sess)})
}

func applySelection(sess *session.Session, req selectionRequest) error {
	if value := strings.TrimSpace(req.StyleID); value != "" {
		id := styles.Normalize(value)
		if !styles.IsValid(id) {
			return fmt.Errorf("unknown style %q", req.StyleID)
		}
		sess.StyleID = id
	}
	if value := strings.TrimSpace(req.CustomPrompt); value != "" {
		sess.CustomPrompt = value
	}
	if value := strings.TrimSpace(req.SpokenText); value != "" {
		sess.SpokenText = value
	}
	if value := strings.TrimSpace(req.VoiceType); value != "" {
		voice := strings.ToLower(value)
		if !voiceclone.KnownVoice(voice) {
			return fmt.Errorf("unknown voice type %q", req.VoiceType)
		}
		sess.VoiceType = voice
	}
	if value := strings.TrimSpace(req.MusicCategory); value != "" {
		category := strings.ToLower(value)
		if !music.IsValid(category) {
			return fmt.Errorf("unknown music category %q", req.MusicCategory)
		}
		sess.MusicCategory = category
	}
	if value := strings.TrimSpace(req.OutputFormat); value != "" {
		format := strings.ToLower(value)
		switch format {
		case "png", "jpeg", "webp":
			sess.OutputFormat = format
		default:
			return fmt.Errorf("unknown output format %q", req.OutputFormat)
		}
	}
	return nil
}

func (s *httpServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.fetchSession(w, r)
	if !ok {
		return
	}
	if err := sess.ValidateForGeneration(s.daemon.cfg.Booth.MaxMontageImages); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, generateRejection{
			Error:        err.Error(),
			RedirectStep: string(session.RedirectStep(err)),
		})
		return
	}
	queued, err := s.daemon.store.MarkReady(r.Context(), sess.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !queued {
		s.writeError(w, http.StatusConflict,
			fmt.Sprintf("session is %s and cannot be queued for generation", sess.Status))
		return
	}
	updated, err := s.daemon.store.GetByID(r.Context(), sess.ID)
	if err != nil || updated == nil {
		s.writeError(w, http.StatusInternalServerError, "reload session after queueing failed")
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.SessionResponse{Session: api.FromSession(updated)})
}

func (s *httpServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	retried, err := s.daemon.RetrySession(r.Context(), token)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !retried {
		s.writeError(w, http.StatusConflict, "only failed sessions can be retried")
		return
	}
	sess, err := s.daemon.store.GetByToken(r.Context(), token)
	if err != nil || sess == nil {
		s.writeError(w, http.StatusInternalServerError, "reload session after retry failed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: api.FromSession(sess)})
}

func (s *httpServer) handleResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.fetchSession(w, r)
	if !ok {
		return
	}
	if sess.Status != session.StatusCompleted {
		s.writeError(w, http.StatusConflict,
			fmt.Sprintf("session is %s; no result available", sess.Status))
		return
	}
	s.writeJSON(w, http.StatusOK, resultResponse{
		Session: api.FromSession(sess),
		Asset:   sess.GeneratedAsset,
		Mime:    sess.GeneratedMIME,
		Share:   s.shareDescriptor(sess.Token),
	})
}

func (s *httpServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.fetchSession(w, r)
	if !ok {
		return
	}
	if sess.Status != session.StatusCompleted || sess.GeneratedAsset == "" {
		s.writeError(w, http.StatusConflict,
			fmt.Sprintf("session is %s; no result available", sess.Status))
		return
	}
	mimeType, data, err := media.DecodeDataURL(sess.GeneratedAsset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("decode stored result: %v", err))
		return
	}
	if mimeType == "" {
		mimeType = sess.GeneratedMIME
	}
	filename := fmt.Sprintf("memento-%s%s", sess.Token, media.ExtensionForMIME(mimeType))
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log().Warn("result download interrupted", logging.Error(err))
	}
}

// shareDescriptor reports how a completed memento can be taken home. Sharing
// is best-effort: when no share base URL is configured the result screen
// falls back to the on-screen download flow.
func (s *httpServer) shareDescriptor(token string) api.ShareDescriptor {
	base := strings.TrimSpace(s.daemon.cfg.Booth.ShareBaseURL)
	if base == "" {
		return api.ShareDescriptor{
			Available:   false,
			Unavailable: "sharing is not configured; use the download button",
		}
	}
	return api.ShareDescriptor{
		Available: true,
		URL:       strings.TrimRight(base, "/") + "/" + token,
	}
}

func (s *httpServer) fetchSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	token := mux.Vars(r)["token"]
	sess, err := s.daemon.store.GetByToken(r.Context(), token)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if sess == nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}
