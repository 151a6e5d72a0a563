package diagnostics

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/kidpech/tracelens/internal/tracelens"
)

// sseSender writes stream events as server-sent events. Headers are written
// lazily so a stream that never starts can still answer with a JSON error.
type sseSender struct {
	w       gin.ResponseWriter
	ctx     context.Context
	started bool
}

func newSSESender(w gin.ResponseWriter, ctx context.Context) *sseSender {
	return &sseSender{w: w, ctx: ctx}
}

// Send implements tracelens.Sender.
func (s *sseSender) Send(ev tracelens.Event) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if err := sse.Encode(s.w, sse.Event{Event: ev.Name, Data: ev.Data}); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}
