// Package api serves the diyHue-compatible HTTP interface of the strip,
// health endpoints and a websocket stream of strip events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestrip/internal/ledger"
	"github.com/dokzlo13/huestrip/internal/light"
	"github.com/dokzlo13/huestrip/internal/protocol"
	"github.com/dokzlo13/huestrip/internal/scene"
)

// maxBody bounds request payloads.
const maxBody = 64 << 10

// Strip is the part of the engine the server drives.
type Strip interface {
	Apply(batch map[int]light.Command) error
	ApplyScene(id, duration int) scene.Scene
	ApplySceneByName(name string, duration int) (scene.Scene, error)
	State(number int) (light.State, error)
	States() map[int]light.State
	Info() []light.Info
}

// Recorder stores applied commands.
type Recorder interface {
	Append(requestID, source string, kind ledger.Kind, payload map[string]any, cmdErr error) error
	Recent(limit int) ([]*ledger.Entry, error)
}

// Server is the HTTP front end.
type Server struct {
	addr   string
	strip  Strip
	detect protocol.Detect
	ledger Recorder
	hub    *Hub

	ready      func() bool
	httpServer *http.Server
}

// NewServer creates a server. ledger and hub may be nil.
func NewServer(host string, port int, strip Strip, detect protocol.Detect, rec Recorder, hub *Hub) *Server {
	return &Server{
		addr:   fmt.Sprintf("%s:%d", host, port),
		strip:  strip,
		detect: detect,
		ledger: rec,
		hub:    hub,
		ready:  func() bool { return true },
	}
}

// SetReadyCheck replaces the readiness probe.
func (s *Server) SetReadyCheck(ready func() bool) {
	s.ready = ready
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /detect", s.handleDetect)
	mux.HandleFunc("GET /state", s.handleGetState)
	mux.HandleFunc("PUT /state", s.handlePutState)
	mux.HandleFunc("POST /state", s.handlePutState)
	mux.HandleFunc("GET /scene", s.handleScene)
	mux.HandleFunc("PUT /scene", s.handleScene)
	mux.HandleFunc("GET /lights", s.handleLights)
	mux.HandleFunc("GET /ledger", s.handleLedger)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.ServeHTTP)
	}

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting HTTP API")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP API shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.detect)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	arg := r.URL.Query().Get("light")
	if arg == "" {
		writeJSON(w, http.StatusOK, s.strip.States())
		return
	}

	n, err := strconv.Atoi(arg)
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrorTypeInvalidValue, "/state", fmt.Errorf("light %q is not a number", arg))
		return
	}
	st, err := s.strip.State(n)
	if err != nil {
		writeError(w, http.StatusNotFound, protocol.ErrorTypeUnavailable, fmt.Sprintf("/lights/%d", n), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	reqID := ledger.NewRequestID()
	w.Header().Set("X-Request-ID", reqID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	batch, decodeErr := protocol.DecodeState(body)
	if errors.Is(decodeErr, protocol.ErrMalformed) {
		log.Warn().Err(decodeErr).Str("request_id", reqID).Msg("Rejected state payload")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, protocol.FailMessage(body))
		return
	}

	applyErr := s.strip.Apply(batch)
	err = errors.Join(decodeErr, applyErr)
	s.record(reqID, ledger.KindState, body, err)

	if err != nil {
		log.Warn().Err(err).Str("request_id", reqID).Msg("State payload partially rejected")
		writeJSON(w, http.StatusBadRequest, errorReplies(err))
		return
	}

	log.Debug().Str("request_id", reqID).Int("lights", len(batch)).Msg("Applied state payload")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	reqID := ledger.NewRequestID()
	w.Header().Set("X-Request-ID", reqID)
	q := r.URL.Query()

	duration := -1
	if tt := q.Get("transitiontime"); tt != "" {
		v, err := strconv.Atoi(tt)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, protocol.ErrorTypeInvalidValue, "/scene/transitiontime", fmt.Errorf("invalid transitiontime %q", tt))
			return
		}
		duration = v
	}

	var sc scene.Scene
	var err error
	switch {
	case q.Get("name") != "":
		sc, err = s.strip.ApplySceneByName(q.Get("name"), duration)
	case q.Get("id") != "" || q.Get("scene") != "":
		arg := q.Get("id")
		if arg == "" {
			arg = q.Get("scene")
		}
		id, convErr := strconv.Atoi(arg)
		if convErr != nil {
			err = fmt.Errorf("%w: scene %q", light.ErrInvalidValue, arg)
			break
		}
		sc = s.strip.ApplyScene(id, duration)
	default:
		err = fmt.Errorf("%w: scene id or name required", light.ErrInvalidValue)
	}

	s.recordMap(reqID, ledger.KindScene, map[string]any{"query": r.URL.RawQuery}, err)
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrorTypeInvalidValue, "/scene", err)
		return
	}
	log.Info().Str("request_id", reqID).Int("scene", sc.ID).Str("name", sc.Name).Msg("Applied scene")
	writeJSON(w, http.StatusOK, map[string]any{"id": sc.ID, "name": sc.Name})
}

func (s *Server) handleLights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.strip.Info())
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusNotFound, protocol.ErrorTypeUnavailable, "/ledger", errors.New("ledger disabled"))
		return
	}
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	entries, err := s.ledger.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read ledger")
		http.Error(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) record(reqID string, kind ledger.Kind, body []byte, cmdErr error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		payload = map[string]any{"raw": string(body)}
	}
	s.recordMap(reqID, kind, payload, cmdErr)
}

func (s *Server) recordMap(reqID string, kind ledger.Kind, payload map[string]any, cmdErr error) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Append(reqID, "http", kind, payload, cmdErr); err != nil {
		log.Warn().Err(err).Str("request_id", reqID).Msg("Failed to write ledger entry")
	}
}

// errorReplies expands a joined error into one reply per failure.
func errorReplies(err error) []protocol.ErrorReply {
	var out []protocol.ErrorReply
	for _, e := range flatten(err) {
		address := "/state"
		var fe *light.FieldError
		if errors.As(e, &fe) {
			address = fmt.Sprintf("/lights/%d/state", fe.Light)
			if fe.Field != "" {
				address += "/" + fe.Field
			}
		}
		typ := protocol.ErrorTypeInvalidValue
		if errors.Is(e, light.ErrUnknownLight) {
			typ = protocol.ErrorTypeUnavailable
		}
		out = append(out, protocol.NewErrorReply(typ, address, e))
	}
	return out
}

func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status, typ int, address string, err error) {
	writeJSON(w, status, []protocol.ErrorReply{protocol.NewErrorReply(typ, address, err)})
}
