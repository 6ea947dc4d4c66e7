package trainer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-trainer/internal/obslog"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

const writeTimeout = 5 * time.Second

// Handler upgrades each request to a websocket and runs one Session for
// it. The session and all of its timers end with the connection.
type Handler struct {
	deps           Deps
	opts           Options
	originPatterns []string
	logger         *zap.Logger
}

func NewHandler(deps Deps, opts Options, originPatterns ...string) *Handler {
	return &Handler{deps: deps, opts: opts, originPatterns: originPatterns, logger: obslog.Or(deps.Logger)}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		OriginPatterns:  h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("ws_accept_failed", zap.Error(err))
		return
	}

	device := strings.TrimSpace(r.URL.Query().Get("device"))
	if device == "" {
		device = uuid.NewString()
	}
	credential := bearer(r.Header.Get("Authorization"))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := New(device, credential, h.deps, h.opts)
	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()
	go h.pumpEvents(ctx, conn, sess)

	h.logger.Info("ws_session_open", zap.String("device", device), zap.Bool("authenticated", credential != ""))
	err = h.readLoop(ctx, conn, sess)
	cancel()
	<-runErr

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		h.logger.Info("ws_session_closed", zap.String("device", device))
		_ = conn.Close(websocket.StatusNormalClosure, "")
	default:
		if errors.Is(err, context.Canceled) {
			h.logger.Info("ws_session_closed", zap.String("device", device))
		} else {
			h.logger.Warn("ws_session_error", zap.String("device", device), zap.Error(err))
		}
		_ = conn.Close(websocket.StatusInternalError, "session ended")
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, sess *Session) error {
	for {
		var cmd trainerdto.Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			return err
		}
		rep, err := sess.Do(ctx, cmd)
		if err != nil {
			return err
		}
		if err := write(ctx, conn, rep); err != nil {
			return err
		}
	}
}

func (h *Handler) pumpEvents(ctx context.Context, conn *websocket.Conn, sess *Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sess.Events():
			if err := write(ctx, conn, ev); err != nil {
				h.logger.Debug("ws_event_write_failed", zap.String("kind", ev.Kind), zap.Error(err))
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, v any) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, v)
}

func bearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
