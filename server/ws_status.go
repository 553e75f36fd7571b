package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"gpxvault/logger"
	"gpxvault/model"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsPingInterval keeps idle connections alive through proxies.
const wsPingInterval = 30 * time.Second

// StatusStreamHandler pushes processing status updates for one route over
// a WebSocket. The current status is sent immediately, then every change
// until the route settles or the client goes away.
func (h *APIHandler) StatusStreamHandler(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid route id")
		return
	}
	routeID := uint(id)

	route, err := h.routeRepo.GetByID(r.Context(), routeID)
	if err != nil || route == nil {
		respondError(w, http.StatusNotFound, "route not found")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()

	updates, err := h.status.Subscribe(ctx, routeID)
	if err != nil {
		logger.Error("status subscription failed", logger.Uint("routeID", routeID), logger.ErrorField(err))
		return
	}

	// Send whatever we know right now before streaming changes.
	if current, err := h.status.Get(ctx, routeID); err == nil && current != nil {
		if err := conn.WriteJSON(current); err != nil {
			return
		}
		if settled(current.Status) {
			return
		}
	}

	// Drain client frames so close messages are noticed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-clientGone:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(st); err != nil {
				return
			}
			if settled(st.Status) {
				return
			}
		}
	}
}

// settled reports whether processing reached a terminal state.
func settled(status string) bool {
	switch status {
	case model.StatusReady, model.StatusDegraded, model.StatusFailed:
		return true
	}
	return false
}
