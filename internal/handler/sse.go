package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// heartbeatInterval keeps idle proxies from dropping event streams.
const heartbeatInterval = 15 * time.Second

// eventStream writes server-sent events of one name to a response.
type eventStream struct {
	c     echo.Context
	event string
}

func openEventStream(c echo.Context, event string) *eventStream {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()
	return &eventStream{c: c, event: event}
}

func (s *eventStream) send(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w := s.c.Response()
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", s.event, raw); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// pump forwards ch to the client until ch closes or the request ends.
// encode may drop a value by returning false.
func pump[V any](s *eventStream, ch <-chan V, encode func(V) (any, bool)) error {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	ctx := s.c.Request().Context()
	w := s.c.Response()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			out, keep := encode(v)
			if !keep {
				continue
			}
			if err := s.send(out); err != nil {
				return nil
			}
		}
	}
}
