package metrics

import (
	"context"
	"log/slog"
	"sync"

	"papertrader/src/datamodels"

	"github.com/gorilla/websocket"
)

type WebsocketMetricsWriter struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

// NewWebSocketMetricsWriter creates a new WebSocketMetricsWriter
func NewWebSocketMetricsWriter() *WebsocketMetricsWriter {
	return &WebsocketMetricsWriter{
		clients: make(map[*websocket.Conn]bool),
	}
}

// AddClient adds a new client connection
func (w *WebsocketMetricsWriter) AddClient(conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clients[conn] = true
}

// RemoveClient removes a client connection
func (w *WebsocketMetricsWriter) RemoveClient(conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.clients, conn)
}

func (w *WebsocketMetricsWriter) ClientCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.clients)
}

// Send writes v to a single client under the broadcast lock.
func (w *WebsocketMetricsWriter) Send(conn *websocket.Conn, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return conn.WriteJSON(v)
}

// Write broadcasts the metric. Clients that fail to receive it are dropped.
func (w *WebsocketMetricsWriter) Write(ctx context.Context, metric datamodels.Metric) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for client := range w.clients {
		if err := client.WriteJSON(metric); err != nil {
			slog.Warn("Dropping websocket client", "remote", client.RemoteAddr().String(), "error", err)
			client.Close()
			delete(w.clients, client)
		}
	}
	return nil
}

func (w *WebsocketMetricsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for client := range w.clients {
		client.Close()
		delete(w.clients, client)
	}
	return nil
}
