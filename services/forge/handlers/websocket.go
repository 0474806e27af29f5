// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/huddleeco/siteforge/services/forge/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
}

// HandleBatchWebSocket streams a batch's progress events over a
// WebSocket. The client selects the batch with the batchId query
// parameter. Like the SSE stream, a disconnect only stops this
// consumer; the batch keeps running and other consumers keep
// receiving events.
func HandleBatchWebSocket(runs *Runs) gin.HandlerFunc {
	return func(c *gin.Context) {
		batchID := c.Query("batchId")
		run, ok := runs.Get(batchID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown batch"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		slog.Info("Websocket progress client connected", "batchId", batchID)

		events, unsubscribe := run.Hub().Subscribe()
		defer unsubscribe()
		observability.ProgressSubscribers.Inc()
		defer observability.ProgressSubscribers.Dec()

		// Drain reads so close frames and pings are processed; the
		// read error doubles as the disconnect signal.
		disconnected := make(chan struct{})
		go func() {
			defer close(disconnected)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, open := <-events:
				if !open {
					_ = ws.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch complete"))
					return
				}
				if err := ws.WriteJSON(ev); err != nil {
					slog.Info("Websocket progress client disconnected", "batchId", batchID)
					return
				}
			case <-disconnected:
				return
			}
		}
	}
}
