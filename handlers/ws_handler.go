package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/courtside/cbbpoll/brackets"
)

// WSHandler upgrades connections and subscribes them to one conference's
// bracket events.
type WSHandler struct {
	hub      *brackets.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(hub *brackets.Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conferenceID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.Int("conference_id", conferenceID), slog.Any("error", err))
		return
	}

	client := brackets.NewClient(h.hub, conn, conferenceID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
