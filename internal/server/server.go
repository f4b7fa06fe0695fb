package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/whookdev/composer/internal/config"
	"github.com/whookdev/composer/internal/metrics"
	"github.com/whookdev/composer/internal/models"
	"github.com/whookdev/composer/internal/transport"
	"github.com/whookdev/composer/internal/tunnel"
)

// Server is the network-executing side of the message channel. It runs
// every send-request it receives through the transport client and answers
// with a response message on the same connection.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	wsServer   *http.Server
	upgrader   websocket.Upgrader
	tunnels    map[string]*tunnel.Connection
	tunnelsMux sync.RWMutex
	client     *transport.Client
	validate   *validator.Validate
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

func New(cfg *config.Config, client *transport.Client, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("transport client cannot be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}
	logger = logger.With("component", "server")

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		tunnels:  make(map[string]*tunnel.Connection),
		upgrader: tunnel.Upgrader(),
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  m,
		gatherer: gatherer,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.wsServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.WSPort),
		Handler:     s.wsRoutes(),
		ReadTimeout: 120 * time.Second,
	}

	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

func (s *Server) wsRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/channel", s.handleChannel)

	return mux
}

// Handler serves the message channel.
func (s *Server) Handler() http.Handler {
	return s.wsServer.Handler
}

// StatusHandler serves health and metrics.
func (s *Server) StatusHandler() http.Handler {
	return s.httpServer.Handler
}

// ConnectionCount reports the number of open channel connections.
func (s *Server) ConnectionCount() int {
	s.tunnelsMux.RLock()
	defer s.tunnelsMux.RUnlock()
	return len(s.tunnels)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n := s.ConnectionCount()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok %d\n", n)
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade websocket connection", "error", err)
		return
	}

	id := uuid.New().String()
	tunnelConn := tunnel.NewConnection(id, conn, s.logger)

	s.tunnelsMux.Lock()
	s.tunnels[id] = tunnelConn
	s.tunnelsMux.Unlock()
	s.metrics.ChannelConnections.Inc()

	s.logger.Info("channel connection established", "connection_id", id)

	defer func() {
		s.tunnelsMux.Lock()
		delete(s.tunnels, id)
		s.tunnelsMux.Unlock()
		s.metrics.ChannelConnections.Dec()
		tunnelConn.Close()
		s.logger.Info("channel connection closed", "connection_id", id)
	}()

	go func() {
		if err := tunnelConn.Handle(); err != nil {
			s.logger.Error("tunnel connection error", "error", err, "connection_id", id)
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for msg := range tunnelConn.Messages() {
		s.metrics.ChannelMessages.WithLabelValues("in", msg.Type).Inc()

		if msg.Type != models.TypeSendRequest || msg.Request == nil {
			s.logger.Warn("ignoring message", "type", msg.Type, "request_id", msg.RequestID)
			continue
		}

		wg.Add(1)
		go func(msg *models.Message) {
			defer wg.Done()
			s.execute(r.Context(), tunnelConn, msg)
		}(msg)
	}
}

func (s *Server) execute(ctx context.Context, conn *tunnel.Connection, msg *models.Message) {
	reply := &models.Message{
		Type:      models.TypeResponse,
		RequestID: msg.RequestID,
		Reply:     s.run(ctx, msg),
	}

	if err := conn.Send(ctx, reply); err != nil {
		s.logger.Error("failed to send reply", "error", err, "request_id", msg.RequestID)
		return
	}
	s.metrics.ChannelMessages.WithLabelValues("out", reply.Type).Inc()
}

func (s *Server) run(ctx context.Context, msg *models.Message) *models.Reply {
	opts := &msg.Request.RequestOptions

	if err := s.validate.Struct(opts); err != nil {
		s.logger.Warn("rejecting invalid request", "request_id", msg.RequestID, "error", err)
		s.metrics.RequestsTotal.WithLabelValues("invalid", "invalid").Inc()
		return &models.Reply{Error: &models.ReplyError{
			Kind:    models.ErrorKindInvalid,
			Message: fmt.Sprintf("invalid request: %s", describe(err)),
		}}
	}

	s.logger.Info("executing request",
		"request_id", msg.RequestID,
		"method", opts.Method,
		"url", opts.URL,
		"auth_type", msg.Request.AuthType)

	res, err := s.client.Send(ctx, opts)
	if err != nil {
		kind := models.ErrorKindUnexpected
		if errors.Is(err, transport.ErrRequestTimeout) {
			kind = models.ErrorKindTimeout
		}
		return &models.Reply{Error: &models.ReplyError{Kind: kind, Message: err.Error()}}
	}

	return &models.Reply{
		Response:       res.Response,
		RequestHeaders: res.RequestHeaders,
	}
}

// describe lists the offending fields without the validator's struct paths.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}

func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		s.logger.Info("starting WebSocket server", "address", s.wsServer.Addr)
		if err := s.wsServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("WebSocket server error", "error", err)
		}
	}()

	<-ctx.Done()
	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}

	s.tunnelsMux.RLock()
	for _, t := range s.tunnels {
		t.Close()
	}
	s.tunnelsMux.RUnlock()

	if err := s.wsServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down WebSocket server: %w", err)
	}

	return nil
}
