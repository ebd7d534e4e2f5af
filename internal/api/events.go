package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"taskboard/pkg/activity"
)

const (
	heartbeatInterval = 15 * time.Second
	writeTimeout      = 5 * time.Second
)

func (s *Server) handleEventList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	var events []activity.Event
	if after := r.URL.Query().Get("after"); after != "" {
		events = s.bus.Since(after, limit)
	} else {
		events = s.bus.Recent(limit)
	}
	if events == nil {
		events = []activity.Event{}
	}
	s.writeJSON(w, r, 200, map[string]any{"events": events})
}

// handleEventStream pushes activity as server-sent events. With ?after=<id>
// it first replays buffered events newer than id, or the whole retained
// history when id is not remembered.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, 500, "streaming not supported")
		return
	}

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(200)
	flusher.Flush()

	// newest id already written to this stream; never taken from the query
	var lastID string
	if after := r.URL.Query().Get("after"); after != "" {
		for _, e := range s.bus.Since(after, activity.DefaultHistory) {
			writeSSE(w, e)
			lastID = e.ID
		}
		flusher.Flush()
	}

	ctx := r.Context()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-ch:
			if !ok {
				return
			}
			// already sent during replay
			if lastID != "" && e.ID <= lastID {
				continue
			}
			writeSSE(w, e)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e activity.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
}

// handleEventSocket pushes activity over a WebSocket. Client messages are
// ignored; the connection ends when either side closes it.
func (s *Server) handleEventSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.requestLog(r).WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)
	s.requestLog(r).WithField("subscribers", s.bus.Subscribers()).Info("websocket client connected")

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeEvent(ctx, conn, e); err != nil {
				s.requestLog(r).WithError(err).Debug("websocket write failed")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, e activity.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}
