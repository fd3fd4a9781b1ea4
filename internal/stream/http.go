package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Handler serves the observability feed over a websocket, one connection
// per subscriber (DOMAIN STACK: go-chi/chi, go-chi/cors, coder/websocket).
type Handler struct {
	hub *Hub
}

// NewHandler wraps hub for HTTP transport.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// Routes mounts the feed endpoint on r, with permissive CORS for the
// local dashboard use case (the feed carries no secrets, only handle ids
// and timestamps).
func (h *Handler) Routes(r chi.Router) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet},
		AllowCredentials: false,
	}))
	r.Get("/events", h.handleEvents)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	ch, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		case event, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "hub closed")
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
