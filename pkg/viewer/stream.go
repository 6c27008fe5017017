package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/getmockd/apidiag/pkg/httputil"
	"github.com/getmockd/apidiag/pkg/inspect"
)

// StreamMessage is sent on /logs/stream when the subscriber connects and
// after every change to the log.
type StreamMessage struct {
	Revision uint64            `json:"revision"`
	Enabled  bool              `json:"enabled"`
	Logs     []inspect.Summary `json:"logs"`
}

const streamWriteTimeout = 5 * time.Second

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := inspect.CompileFilter(q.Get("filter"), q.Get("url"))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		s.log.Debug("stream upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Subscribers only listen; CloseRead handles their close frames.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	var last uint64
	sent := false
	for {
		// Read the revision before the logs so a change in between is
		// picked up on the next tick.
		if rev := s.store.Revision(); !sent || rev != last {
			msg := StreamMessage{
				Revision: rev,
				Enabled:  s.store.IsEnabled(),
				Logs:     inspect.Summaries(filter.Apply(s.store.Logs())),
			}
			if err := writeStreamMessage(ctx, conn, msg); err != nil {
				if !errors.Is(err, context.Canceled) {
					s.log.Debug("stream write failed", "error", err)
				}
				return
			}
			last, sent = rev, true
		}

		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

func writeStreamMessage(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
