package config

import (
	"net/http"

	"papertrader/src/datamodels"

	"github.com/gorilla/websocket"
)

func NewDefaultWSConfig() datamodels.WSConfig {
	return datamodels.WSConfig{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the metrics stream is read-only
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}
