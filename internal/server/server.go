package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trnscrb/trnscrb/internal/audio"
	"github.com/trnscrb/trnscrb/internal/calendar"
	"github.com/trnscrb/trnscrb/internal/enrich"
	"github.com/trnscrb/trnscrb/internal/metrics"
	"github.com/trnscrb/trnscrb/internal/orchestrator"
	"github.com/trnscrb/trnscrb/internal/orchestrator/events"
	"github.com/trnscrb/trnscrb/internal/storage"
	"github.com/trnscrb/trnscrb/internal/trace"
)

// Recorder is the orchestrator surface the server drives.
type Recorder interface {
	Snapshot() orchestrator.Snapshot
	StartRecording(ctx context.Context) (string, error)
	StopRecording(ctx context.Context, name string) (string, error)
	StartWatching(ctx context.Context)
	StopWatching()
	LastTranscript() string
	Enrich(ctx context.Context, id string) (enrich.Result, error)
	Events() *events.Log
}

// Transcripts lists and reads saved transcripts.
type Transcripts interface {
	List(ctx context.Context) ([]storage.Entry, error)
	Read(id string) (string, error)
}

// Options wires a Server.
type Options struct {
	Recorder    Recorder
	Transcripts Transcripts
	Calendar    calendar.Source
	Devices     func() ([]audio.Device, error)
	Metrics     *metrics.Metrics
	// BaseContext outlives requests; the watcher started over HTTP runs on it.
	BaseContext context.Context
}

// Message is the envelope every WebSocket message shares.
type Message struct {
	Type string `json:"type"`
}

// StatusMessage carries a snapshot.
type StatusMessage struct {
	Type   string                `json:"type"`
	Status orchestrator.Snapshot `json:"status"`
}

// EventMessage carries one lifecycle event.
type EventMessage struct {
	Type  string       `json:"type"`
	Event events.Event `json:"event"`
}

// ErrorMessage reports a rejected client message.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	mu         sync.Mutex
	timestamps []time.Time
	now        func() time.Time
}

func newRateLimiter() *rateLimiter { return &rateLimiter{now: time.Now} }

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	opts  Options
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New creates a server and starts broadcasting lifecycle events.
func New(opts Options) *Server {
	if opts.Calendar == nil {
		opts.Calendar = calendar.None{}
	}
	if opts.Devices == nil {
		opts.Devices = audio.ListInputDevices
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	s := &Server{
		opts:  opts,
		conns: make(map[*websocket.Conn]struct{}),
	}
	go s.broadcastEvents()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("POST /api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("POST /api/watch/start", s.handleWatchStart)
	mux.HandleFunc("POST /api/watch/stop", s.handleWatchStop)
	mux.HandleFunc("GET /api/transcripts", s.handleTranscripts)
	mux.HandleFunc("GET /api/transcripts/last", s.handleLastTranscript)
	mux.HandleFunc("GET /api/transcripts/{id}", s.handleTranscript)
	mux.HandleFunc("POST /api/transcripts/{id}/enrich", s.handleEnrich)
	mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	mux.HandleFunc("GET /api/devices", s.handleDevices)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Metrics.Gatherer(), promhttp.HandlerOpts{}))

	// CORS -> trace -> metrics -> mux
	return corsMiddleware(trace.Middleware(s.metricsMiddleware(mux)))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack hands the connection to the WebSocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.code = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = unmatchedRoute
		}
		s.opts.Metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(rec.code), time.Since(start).Seconds())
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx := r.Context()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, conn, s.statusMessage()); err != nil {
		log.Debug("websocket write error", "error", err)
		return
	}

	rl := newRateLimiter()
	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: msgRateLimited})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case "status":
			_ = wsjson.Write(ctx, conn, s.statusMessage())
		default:
			_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: msgUnknownType})
		}
	}
}

func (s *Server) statusMessage() StatusMessage {
	return StatusMessage{Type: "status", Status: s.opts.Recorder.Snapshot()}
}

func (s *Server) broadcastEvents() {
	for evt := range s.opts.Recorder.Events().Events() {
		msg := EventMessage{Type: "event", Event: evt}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
				defer cancel()
				_ = wsjson.Write(ctx, c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}
