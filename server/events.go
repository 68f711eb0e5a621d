package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/aida/ai/assistant"
)

const clientMessageTimeout = 2 * time.Minute

// Frames clients may send on the event stream.
const (
	frameMessage  = "message"
	frameActivate = "activate"
)

type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// forwardEvents copies assistant events to the hub until ctx is done.
func (s *Server) forwardEvents(ctx context.Context) {
	events, unsubscribe := s.assistant.Events().Subscribe(assistant.DefaultSubscriberBuffer)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Warn("failed to encode event", "type", ev.Type, "error", err)
				continue
			}
			s.hub.Broadcast(data)
		}
	}
}

// events upgrades to a websocket that streams assistant events. Clients may
// send {"type":"message","text":...} to talk to the assistant; the reply
// arrives as a response event.
func (s *Server) events(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("failed to upgrade websocket", "error", err)
		return nil
	}
	conn := s.hub.NewConnection(ws)
	if !s.hub.Register(conn) {
		ws.Close()
		return nil
	}
	ws.SetReadLimit(maxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Conn.Close()
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("event stream read failed", "connection", conn.ID, "error", err)
			}
			return
		}
		s.handleFrame(conn, data)
	}
}

func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-conn.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleFrame(conn *Connection, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError(conn, "invalid JSON frame")
		return
	}

	switch frame.Type {
	case frameMessage:
		text := strings.TrimSpace(frame.Text)
		if text == "" {
			s.sendError(conn, "text is required")
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), clientMessageTimeout)
			defer cancel()
			s.assistant.ProcessMessage(ctx, text, assistant.ProcessOptions{Source: assistant.SourceAPI})
		}()
	case frameActivate:
		s.assistant.Activate(context.Background())
	default:
		s.sendError(conn, "unknown frame type: "+frame.Type)
	}
}

// sendError answers conn directly instead of through the hub.
func (s *Server) sendError(conn *Connection, message string) {
	data, err := json.Marshal(errorFrame{Type: "error", Message: message})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send error frame", "connection", conn.ID, "error", err)
	}
}
