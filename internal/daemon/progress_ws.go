package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"membooth/internal/api"
	"membooth/internal/logging"
)

// progressPollInterval is how often the processing screen receives a fresh
// session snapshot over the websocket.
const progressPollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The kiosk frontend is served from a different origin than the API bind.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleProgress streams session snapshots until the session reaches a
// terminal status or the client disconnects. The processing screen drives
// its progress bar and failure redirects from these frames.
func (s *httpServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	sess, err := s.daemon.store.GetByToken(r.Context(), token)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn("progress websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		sess, err := s.daemon.store.GetByToken(ctx, token)
		if err != nil {
			s.log().Warn("progress poll failed",
				logging.String(logging.FieldSessionToken, token),
				logging.Error(err))
			return
		}
		if sess == nil {
			return
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(api.SessionResponse{Session: api.FromSession(sess)}); err != nil {
			return
		}
		if sess.IsTerminal() {
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(sess.Status)))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
		}
	}
}
