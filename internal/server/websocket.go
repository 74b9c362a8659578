package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxMessageMB = 64
)

// WebSocket message types sent to the client.
const (
	wsTypeAccepted  = "accepted"
	wsTypeProgress  = "progress"
	wsTypePageError = "page_error"
	wsTypeCompleted = "completed"
	wsTypeError     = "error"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketExtractRequest is one extraction sent over /ws/extract. Data is
// the document itself (base64 in JSON).
type WebSocketExtractRequest struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
	ExtractOptions
}

// WebSocketMessage is every message the server sends.
type WebSocketMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Current   int    `json:"current,omitempty"`
	Total     int    `json:"total,omitempty"`
	Page      int    `json:"page,omitempty"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// extractWebSocketHandler streams page progress of extractions.
func (s *Server) extractWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(wsMaxMessageMB << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
			// Extraction may outlast the read deadline.
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		}
	}
}

// handleWebSocketMessage runs one extraction request and reports its
// progress on conn.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	requestID := s.newID()

	var req WebSocketExtractRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if len(req.Data) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No document data provided")
		return
	}

	opts, err := s.resolveOptions(req.Filename, req.ExtractOptions)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}
	if s.extractor == nil {
		s.sendWebSocketError(conn, requestID, "unavailable", "Pipeline not initialized")
		return
	}

	s.sendWebSocketMessage(conn, WebSocketMessage{Type: wsTypeAccepted, RequestID: requestID})
	opts.Progress = &wsProgress{server: s, conn: conn, requestID: requestID}

	res, err := s.runExtraction(ctx, bytes.NewReader(req.Data), opts, transportWebSocket)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "processing_error", err.Error())
		return
	}
	s.sendWebSocketMessage(conn, WebSocketMessage{Type: wsTypeCompleted, RequestID: requestID, Result: res})
}

// sendWebSocketMessage sends a message over WebSocket.
func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:      wsTypeError,
		RequestID: requestID,
		Error:     message,
		ErrorType: errorType,
	})
}

// wsProgress forwards page progress of one extraction to the client.
type wsProgress struct {
	server    *Server
	conn      WebSocketConnWriter
	requestID string

	mu sync.Mutex
}

func (p *wsProgress) send(msg WebSocketMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg.RequestID = p.requestID
	p.server.sendWebSocketMessage(p.conn, msg)
}

func (p *wsProgress) OnStart(total int) {
	p.send(WebSocketMessage{Type: wsTypeProgress, Total: total})
}

func (p *wsProgress) OnProgress(current, total int) {
	p.send(WebSocketMessage{Type: wsTypeProgress, Current: current, Total: total})
}

func (p *wsProgress) OnComplete() {}

func (p *wsProgress) OnError(page int, err error) {
	p.send(WebSocketMessage{Type: wsTypePageError, Page: page, Error: err.Error()})
}
