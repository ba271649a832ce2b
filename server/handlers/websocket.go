package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/san-kum/pose-coach/server/capture"
	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/session"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client to server messages.
const (
	MsgStart       = "start"
	MsgCameraReady = "camera_ready"
	MsgCameraError = "camera_error"
	MsgFrame       = "frame"
	MsgLandmarks   = "landmarks"
	MsgStop        = "stop"
	MsgRetry       = "retry"
	MsgDismiss     = "dismiss"
	MsgPing        = "ping"
)

// Server to client messages besides the session events.
const (
	MsgRequestCamera = "request_camera"
	MsgReleaseCamera = "release_camera"
	MsgError         = "error"
	MsgPong          = "pong"
	MsgWelcome       = "welcome"
)

type WebSocketHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader
	maxFrame int64
	demo     bool
}

type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type framePayload struct {
	Data      string `json:"data"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp int64  `json:"timestamp"`
}

type landmarksPayload struct {
	Landmarks []models.Landmark `json:"landmarks"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
}

type cameraErrorPayload struct {
	Reason string `json:"reason"`
}

type dismissPayload struct {
	ID string `json:"id"`
}

func NewWebSocketHandler(sessions *session.Manager, allowedOrigins []string, maxFrame int64, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		logger:   logger,
		maxFrame: maxFrame,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker lets pages from the allowed origins open the live socket.
// Clients that send no Origin header are not browsers and are accepted.
// WithDemoCamera makes every session use a server side synthetic camera
// instead of asking the browser for one.
func (h *WebSocketHandler) WithDemoCamera() *WebSocketHandler {
	h.demo = true
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// liveClient is one websocket connection. It is the session's event sink
// and the controller of the browser camera behind the session's source.
type liveClient struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger
	demo   bool

	writeMu sync.Mutex

	mu      sync.Mutex
	source  *capture.PushSource
	session *session.Session
	opts    session.StartOptions
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	cl := &liveClient{
		id:   uuid.NewString(),
		conn: conn,
		demo: h.demo,
	}
	cl.logger = h.logger.With(zap.String("client_id", cl.id), zap.String("client_ip", c.ClientIP()))

	sess, err := h.sessions.Create(cl.id, cl, cl.newSource)
	if err != nil {
		cl.logger.Error("Failed to create session", zap.Error(err))
		cl.sendError("Server is shutting down")
		return
	}
	cl.session = sess
	defer h.sessions.Remove(cl.id)

	cl.logger.Info("WebSocket client connected")
	cl.write(MsgWelcome, gin.H{"client_id": cl.id, "state": sess.State()})

	if h.maxFrame > 0 {
		conn.SetReadLimit(h.maxFrame)
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cl.pingRoutine(done)
	}()
	defer wg.Wait()
	defer close(done)

	for {
		var message ClientMessage
		if err := conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cl.logger.Warn("WebSocket read failed", zap.Error(err))
			}
			cl.logger.Info("WebSocket client disconnected")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		cl.handleMessage(&message)
	}
}

func (cl *liveClient) handleMessage(message *ClientMessage) {
	switch message.Type {
	case MsgStart:
		var opts session.StartOptions
		if err := decode(message.Data, &opts); err != nil {
			cl.sendError("Invalid start message")
			return
		}
		cl.mu.Lock()
		cl.opts = opts
		cl.mu.Unlock()
		if err := cl.session.Start(opts); err != nil {
			cl.logger.Warn("Failed to start session", zap.Error(err))
			cl.sendError(err.Error())
		}

	case MsgCameraReady:
		if src := cl.currentSource(); src != nil {
			src.Resolve(nil)
		}

	case MsgCameraError:
		var payload cameraErrorPayload
		_ = decode(message.Data, &payload)
		if src := cl.currentSource(); src != nil {
			src.Fail(capture.ParseError(payload.Reason))
		}

	case MsgFrame:
		var payload framePayload
		if err := decode(message.Data, &payload); err != nil {
			cl.sendError("Invalid frame message")
			return
		}
		imageData, err := extractImageData(payload.Data)
		if err != nil {
			cl.sendError("Invalid image data format")
			return
		}
		cl.push(&models.Frame{
			ImageData: imageData,
			Width:     payload.Width,
			Height:    payload.Height,
			Timestamp: payload.Timestamp,
		})

	case MsgLandmarks:
		var payload landmarksPayload
		if err := decode(message.Data, &payload); err != nil {
			cl.sendError("Invalid landmarks message")
			return
		}
		cl.push(&models.Frame{
			Width:     payload.Width,
			Height:    payload.Height,
			Timestamp: payload.Timestamp,
			Pose:      &models.Pose{Landmarks: payload.Landmarks, Timestamp: payload.Timestamp},
		})

	case MsgStop:
		cl.session.Stop()

	case MsgRetry:
		if err := cl.session.Retry(); err != nil {
			cl.sendError(err.Error())
		}

	case MsgDismiss:
		var payload dismissPayload
		if err := decode(message.Data, &payload); err != nil || payload.ID == "" {
			cl.sendError("Invalid dismiss message")
			return
		}
		cl.session.Dismiss(payload.ID)

	case MsgPing:
		cl.write(MsgPong, gin.H{"timestamp": time.Now().UnixMilli()})

	default:
		cl.logger.Warn("Unknown message type received", zap.String("type", message.Type))
		cl.sendError("Unknown message type: " + message.Type)
	}
}

// push hands a frame to the running camera source, filling in the frame
// size negotiated at start. Frames outside a live camera are dropped.
func (cl *liveClient) push(f *models.Frame) {
	src := cl.currentSource()
	if src == nil {
		return
	}

	cl.mu.Lock()
	if f.Width <= 0 || f.Height <= 0 {
		f.Width, f.Height = cl.opts.Width, cl.opts.Height
	}
	cl.mu.Unlock()
	f.ClientID = cl.id

	src.Push(f)
}

func (cl *liveClient) newSource() capture.Source {
	if cl.demo {
		cl.mu.Lock()
		cl.source = nil
		cl.mu.Unlock()
		return capture.NewSyntheticSource(cl.id)
	}

	src := capture.NewPushSource(cl)
	cl.mu.Lock()
	cl.source = src
	cl.mu.Unlock()
	return src
}

func (cl *liveClient) currentSource() *capture.PushSource {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.source
}

func (cl *liveClient) RequestCamera(c capture.Constraints) error {
	return cl.Send(MsgRequestCamera, c)
}

func (cl *liveClient) ReleaseCamera() error {
	return cl.Send(MsgReleaseCamera, nil)
}

// Send writes one envelope. Writes from the session loop, the toaster and
// the read loop are serialized here.
func (cl *liveClient) Send(messageType string, data any) error {
	cl.writeMu.Lock()
	defer cl.writeMu.Unlock()

	_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return cl.conn.WriteJSON(ServerMessage{Type: messageType, Data: data})
}

func (cl *liveClient) write(messageType string, data any) {
	if err := cl.Send(messageType, data); err != nil {
		cl.logger.Debug("Failed to send WebSocket message", zap.String("type", messageType), zap.Error(err))
	}
}

func (cl *liveClient) sendError(errorMsg string) {
	cl.write(MsgError, gin.H{
		"message":   errorMsg,
		"timestamp": time.Now().Unix(),
	})
}

func (cl *liveClient) pingRoutine(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cl.writeMu.Lock()
			err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			cl.writeMu.Unlock()
			if err != nil {
				cl.logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, v)
}
