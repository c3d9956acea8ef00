package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"papertrader/src/datamodels"
	"papertrader/src/portfolio"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Papertrader API
// @version 1.0
// @description Read-only status API for the paper-trading engine
// @host localhost:8080
// @BasePath /

// WebSocketMessageType represents the type of WebSocket message
// @Description Type of request sent over the WebSocket connection
type WebSocketMessageType string

const (
	// Portfolios asks for the summary of every portfolio
	Portfolios WebSocketMessageType = "portfolios"
	// PortfolioDetail asks for one portfolio's report
	PortfolioDetail WebSocketMessageType = "portfolio"
)

// WebSocketMessage represents a request sent over WebSocket
// @Description Message structure for WebSocket requests
type WebSocketMessage struct {
	// Required: true
	// Enum: portfolios, portfolio
	MessageType WebSocketMessageType `json:"message_type" example:"portfolios"`
	// Optional JSON payload, {"portfolio_id": "..."} for portfolio requests
	Message json.RawMessage `json:"message,omitempty"`
}

// WebSocketResponse represents a response sent back over WebSocket
// @Description Response structure for WebSocket communication
type WebSocketResponse struct {
	// Whether the operation was successful
	// Required: true
	Success bool `json:"success" example:"true"`
	// Response payload data
	Data any `json:"data,omitempty"`
	// Error message if operation failed
	Error string `json:"error,omitempty" example:"unknown portfolio"`
}

type portfolioRequest struct {
	PortfolioID string `json:"portfolio_id"`
}

// PortfolioSummary is one row of the portfolio list.
type PortfolioSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	StrategyID     string  `json:"strategy_id"`
	Active         bool    `json:"active"`
	Cash           float64 `json:"cash"`
	Equity         float64 `json:"equity"`
	InitialCapital float64 `json:"initial_capital"`
	DrawdownPct    float64 `json:"drawdown_pct"`
	OpenPositions  int     `json:"open_positions"`
	Trades         int     `json:"trades"`
}

// PortfolioReport is the detailed view of one portfolio.
type PortfolioReport struct {
	Portfolio   *datamodels.Portfolio       `json:"portfolio"`
	Performance portfolio.Performance       `json:"performance"`
	Risk        portfolio.RiskStatus        `json:"risk"`
	Audit       portfolio.AuditReport       `json:"audit"`
	Metrics     datamodels.PortfolioMetrics `json:"metrics"`
}

func summarize(p *datamodels.Portfolio) PortfolioSummary {
	return PortfolioSummary{
		ID:             p.ID,
		Name:           p.Name,
		StrategyID:     p.StrategyID,
		Active:         p.Active,
		Cash:           p.Cash,
		Equity:         p.Equity(),
		InitialCapital: p.InitialCapital,
		DrawdownPct:    p.DrawdownPct(),
		OpenPositions:  p.OpenExposureCount(),
		Trades:         len(p.Trades),
	}
}

func (s *Server) summaries() ([]PortfolioSummary, error) {
	c, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	out := make([]PortfolioSummary, 0)
	for _, p := range c.Ordered() {
		out = append(out, summarize(p))
	}
	return out, nil
}

// report returns nil without error for an unknown id.
func (s *Server) report(id string) (*PortfolioReport, error) {
	c, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	p, ok := c.Get(id)
	if !ok {
		return nil, nil
	}
	now := s.clock()
	return &PortfolioReport{
		Portfolio:   p,
		Performance: portfolio.ComputePerformance(p),
		Risk:        portfolio.ComputeRiskStatus(p, now),
		Audit:       portfolio.Audit(p),
		Metrics:     datamodels.NewPortfolioMetrics(p, now),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// RegisterHealthCheck registers the health check endpoint
// @Summary Health check endpoint
// @Description Returns health status of the service
// @Tags health
// @Produce plain
// @Success 200 {string} string "papertrader is healthy"
// @Router /health [get]
func (s *Server) RegisterHealthCheck() {
	s.httpMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("papertrader is healthy"))
	})
}

// RegisterPortfolioHandlers registers the portfolio endpoints
// @Summary Portfolio status
// @Description Lists portfolios, or reports one with performance, risk and audit
// @Tags portfolios
// @Produce json
// @Param id path string false "Portfolio id"
// @Success 200 {object} PortfolioReport
// @Failure 404 {object} WebSocketResponse
// @Router /portfolios/{id} [get]
func (s *Server) RegisterPortfolioHandlers() {
	s.httpMux.HandleFunc("GET /portfolios", func(w http.ResponseWriter, r *http.Request) {
		out, err := s.summaries()
		if err != nil {
			slog.Error("Cannot load portfolios", "error", err)
			writeJSON(w, http.StatusInternalServerError, WebSocketResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
	s.httpMux.HandleFunc("GET /portfolios/{id}", func(w http.ResponseWriter, r *http.Request) {
		report, err := s.report(r.PathValue("id"))
		if err != nil {
			slog.Error("Cannot load portfolios", "error", err)
			writeJSON(w, http.StatusInternalServerError, WebSocketResponse{Error: err.Error()})
			return
		}
		if report == nil {
			writeJSON(w, http.StatusNotFound, WebSocketResponse{Error: "unknown portfolio"})
			return
		}
		writeJSON(w, http.StatusOK, report)
	})
}

// RegisterWebSocketHandler registers the WebSocket endpoint
// @Summary WebSocket connection endpoint
// @Description Streams metrics as they are written and answers portfolio requests
// @Tags websocket
// @Accept json
// @Produce json
// @Success 101 {string} string "Switching protocols to websocket"
// @Router /ws [get]
func (s *Server) RegisterWebSocketHandler() {
	s.httpMux.HandleFunc("/ws", s.handleWebSocket)
}

// RegisterSwagger registers the Swagger documentation endpoint
// @Summary Swagger documentation endpoint
// @Tags docs
// @Produce json,html
// @Success 200 {string} string "Swagger documentation UI"
// @Router /swagger/ [get]
func (s *Server) RegisterSwagger() {
	s.httpMux.HandleFunc("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

func (s *Server) handleMessage(msg []byte) WebSocketResponse {
	var wsMessage WebSocketMessage
	if err := json.Unmarshal(msg, &wsMessage); err != nil {
		slog.Warn("Failed to unmarshal websocket message", "error", err)
		return WebSocketResponse{Error: err.Error()}
	}

	switch wsMessage.MessageType {
	case Portfolios:
		out, err := s.summaries()
		if err != nil {
			return WebSocketResponse{Error: err.Error()}
		}
		return WebSocketResponse{Success: true, Data: out}
	case PortfolioDetail:
		var req portfolioRequest
		if err := json.Unmarshal(wsMessage.Message, &req); err != nil {
			return WebSocketResponse{Error: err.Error()}
		}
		report, err := s.report(req.PortfolioID)
		if err != nil {
			return WebSocketResponse{Error: err.Error()}
		}
		if report == nil {
			return WebSocketResponse{Error: "unknown portfolio"}
		}
		return WebSocketResponse{Success: true, Data: report}
	default:
		slog.Info("Received unknown message type", "type", wsMessage.MessageType)
		return WebSocketResponse{Error: "unknown message type " + string(wsMessage.MessageType)}
	}
}
