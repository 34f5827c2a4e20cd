// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package feed implements the websocket feed. Clients of /ws/events receive the navigation
// events as JSON, clients of /ws/location push location fixes into the navigation.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/bmizerany/pat"
	"github.com/gorilla/websocket"
	"github.com/justinas/alice"

	"github.com/wneessen/waybar-navigation/internal/geo"
	"github.com/wneessen/waybar-navigation/internal/location"
	"github.com/wneessen/waybar-navigation/internal/logger"
	"github.com/wneessen/waybar-navigation/internal/trip"
)

const (
	name = "feed"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	readLimit      = 4 << 10
	clientBuffer   = 16
	fixBuffer      = 8
	fixTTL         = 10 * time.Second
	shutdownWait   = 5 * time.Second
	readHeaderWait = 5 * time.Second

	// DefaultAccuracy is assumed for pushed fixes that do not report an accuracy.
	DefaultAccuracy = 10.0
)

// ErrInvalidLocation is returned for location frames without a valid position.
var ErrInvalidLocation = errors.New("invalid location frame")

// Server is the websocket feed server. It is a trip.Observer, a guidance.Sink and a
// location.Provider at the same time.
type Server struct {
	logger   *logger.Logger
	addr     string
	origins  []string
	upgrader websocket.Upgrader
	fixes    chan location.Fix

	mu        sync.RWMutex
	clients   map[*client]struct{}
	sessionID string
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// locationFrame is the JSON frame pushed by location clients.
type locationFrame struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Heading   *float64 `json:"heading"`
	Speed     *float64 `json:"speed"`
	Accuracy  *float64 `json:"accuracy"`
}

// New returns a feed Server listening on addr. Browser clients are only accepted from the
// allowed origins. Without allowed origins, only same-origin and non-browser clients are
// accepted. An origin of "*" allows everything.
func New(log *logger.Logger, addr string, allowedOrigins []string) *Server {
	server := &Server{
		logger:  log,
		addr:    addr,
		origins: allowedOrigins,
		fixes:   make(chan location.Fix, fixBuffer),
		clients: make(map[*client]struct{}),
	}
	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     server.checkOrigin,
	}
	return server
}

// Handler returns the HTTP handler of the feed.
func (s *Server) Handler() http.Handler {
	mux := pat.New()
	mux.Get("/ws/events", http.HandlerFunc(s.serveEvents))
	mux.Get("/ws/location", http.HandlerFunc(s.serveLocation))

	return alice.New(s.recoverPanic, s.logRequest).Then(mux)
}

// ListenAndServe serves the feed until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderWait,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("websocket feed listening", slog.String("address", s.addr))
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("websocket feed failed: %w", err)
	case <-ctx.Done():
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	s.closeClients()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("failed to shut down websocket feed: %w", err)
	}
	return nil
}

func (s *Server) Name() string {
	return name
}

// LookupStream implements location.Provider with the fixes pushed by location clients.
func (s *Server) LookupStream(ctx context.Context) <-chan location.Fix {
	out := make(chan location.Fix)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case fix := <-s.fixes:
				select {
				case <-ctx.Done():
					return
				case out <- fix:
				}
			}
		}
	}()
	return out
}

// Event implements trip.Observer and broadcasts the event to all event clients.
func (s *Server) Event(event trip.Event) {
	if event.SessionID != "" {
		s.mu.Lock()
		s.sessionID = event.SessionID
		s.mu.Unlock()
	}
	s.broadcast(event)
}

// Say implements guidance.Sink and broadcasts the phrase as announcement event.
func (s *Server) Say(text string) {
	s.mu.RLock()
	sessionID := s.sessionID
	s.mu.RUnlock()
	s.broadcast(trip.NewAnnouncement(sessionID, text))
}

// Clients returns the number of connected event clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// broadcast sends the event to every client without blocking. Clients that can't keep up are
// disconnected.
func (s *Server) broadcast(event trip.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to encode feed event", logger.Err(err))
		return
	}

	s.mu.RLock()
	var slow []*client
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range slow {
		s.logger.Warn("feed client is too slow, disconnecting", slog.String("remote", c.conn.RemoteAddr().String()))
		s.removeClient(c)
	}
}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logger.Err(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("feed client connected", slog.String("remote", conn.RemoteAddr().String()))

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) serveLocation(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logger.Err(err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("location client read failed", logger.Err(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		fix, err := ParseLocation(message)
		if err != nil {
			s.logger.Debug("ignoring location frame", logger.Err(err))
			continue
		}
		select {
		case s.fixes <- fix:
		default:
			s.logger.Debug("location queue is full, dropping fix")
		}
	}
}

// writePump delivers queued events and keeps the connection alive with pings.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages. It is needed to process pongs and to notice a closed
// connection.
func (s *Server) readPump(c *client) {
	defer s.removeClient(c)

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *client) {
	c.once.Do(func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		close(c.send)
		_ = c.conn.Close()
		s.logger.Debug("feed client disconnected", slog.String("remote", c.conn.RemoteAddr().String()))
	})
}

func (s *Server) closeClients() {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	for _, c := range clients {
		s.removeClient(c)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.origins) == 0 {
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

// ParseLocation decodes a location frame into a fix.
func ParseLocation(data []byte) (location.Fix, error) {
	var frame locationFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return location.Fix{}, fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}
	if frame.Latitude == nil || frame.Longitude == nil {
		return location.Fix{}, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidLocation)
	}

	fix := location.Fix{
		Point:    geo.Point{Lat: *frame.Latitude, Lon: *frame.Longitude},
		Accuracy: DefaultAccuracy,
		Source:   name,
		At:       time.Now(),
		TTL:      fixTTL,
	}
	if !fix.Point.Valid() {
		return location.Fix{}, fmt.Errorf("%w: coordinate out of range: %s", ErrInvalidLocation, fix.Point)
	}
	if frame.Accuracy != nil && *frame.Accuracy > 0 {
		fix.Accuracy = *frame.Accuracy
	}
	if frame.Heading != nil && *frame.Heading >= 0 {
		fix.Heading.Set(*frame.Heading)
	}
	if frame.Speed != nil && *frame.Speed >= 0 {
		fix.Speed.Set(*frame.Speed)
	}
	return fix, nil
}
