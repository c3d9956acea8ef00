package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"papertrader/src/config"
	"papertrader/src/datamodels"
	"papertrader/src/metrics"
	"papertrader/src/utils/errors"

	"github.com/gorilla/websocket"
)

// PortfolioReader is the read side of the portfolio store.
type PortfolioReader interface {
	Load() (*datamodels.Collection, error)
}

type Server struct {
	addr          string
	upgrader      websocket.Upgrader
	httpMux       *http.ServeMux
	metricsWriter *metrics.WebsocketMetricsWriter
	store         PortfolioReader
	clock         func() time.Time
}

func NewServer(addr string) *Server {
	return &Server{
		addr:     addr,
		upgrader: config.NewDefaultWSConfig().Upgrader,
		httpMux:  http.NewServeMux(),
		clock:    time.Now,
	}
}

func (s *Server) WithMetricsWriter(metricsWriter *metrics.WebsocketMetricsWriter) *Server {
	s.metricsWriter = metricsWriter
	return s
}

func (s *Server) WithStore(store PortfolioReader) *Server {
	s.store = store
	return s
}

func (s *Server) WithClock(clock func() time.Time) *Server {
	s.clock = clock
	return s
}

func (s *Server) Build() (*Server, error) {
	if s.store == nil {
		slog.Error("Server has no portfolio store")
		return nil, errors.New("server needs a portfolio store")
	}
	s.RegisterHealthCheck()
	s.RegisterPortfolioHandlers()
	s.RegisterWebSocketHandler()
	s.RegisterSwagger()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.httpMux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.httpMux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to close server", "error", err)
		}
	}()

	slog.Info("Starting server", "addr", s.addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return errors.Wrap(err, "server error")
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	welcomeMessage := WebSocketResponse{
		Success: true,
		Data:    "papertrader metrics stream",
	}
	if err := conn.WriteJSON(welcomeMessage); err != nil {
		slog.Error("Failed to send welcome message", "error", err)
		return
	}

	// once registered, writes to conn must share the metrics writer's lock
	if s.metricsWriter != nil {
		s.metricsWriter.AddClient(conn)
		defer s.metricsWriter.RemoveClient(conn)
	}
	slog.Info("Client connected", "remote", r.RemoteAddr)

	for {
		mType, msg, err := conn.ReadMessage()
		if err != nil {
			slog.Debug("Websocket client gone", "remote", r.RemoteAddr, "error", err)
			return
		}
		if mType != websocket.TextMessage {
			continue
		}
		response := s.handleMessage(msg)
		if s.metricsWriter != nil {
			err = s.metricsWriter.Send(conn, response)
		} else {
			err = conn.WriteJSON(response)
		}
		if err != nil {
			slog.Error("Failed to send websocket response", "error", err)
			return
		}
	}
}
