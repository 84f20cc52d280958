package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/erfan-mirasadi/menu-3d/internal/realtime"
)

// keepAlive is how often an idle stream sends a comment line so proxies do
// not drop it.
const keepAlive = 15 * time.Second

// StreamHandler serves the restaurant read model to role clients.
type StreamHandler struct {
	Hub *realtime.Hub
}

func NewStreamHandler(hub *realtime.Hub) *StreamHandler {
	if hub == nil {
		panic("nil hub passed to NewStreamHandler")
	}
	return &StreamHandler{Hub: hub}
}

// viewer scopes the caller to the restaurant in the path. It writes the
// error response itself and returns ok=false when the caller may not look.
func viewer(c echo.Context) (realtime.Viewer, string, bool, error) {
	actor, err := actorOr401(c)
	if err != nil {
		return realtime.Viewer{}, "", false, err
	}
	rid := c.Param("id")
	if actor.RestaurantID != "" && actor.RestaurantID != rid {
		return realtime.Viewer{}, "", false, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "other restaurant"})
	}
	return realtime.Viewer{Role: actor.Role, TableID: actor.TableID}, rid, true, nil
}

// Snapshot: GET /v1/restaurants/:id/snapshot
func (h *StreamHandler) Snapshot(c echo.Context) error {
	v, rid, ok, err := viewer(c)
	if !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	snap, err := h.Hub.Snapshot(ctx, rid, v)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// Stream: GET /v1/restaurants/:id/stream. Server-sent events: "snapshot"
// carries the full filtered read model after each settled burst of
// changes, "notification" an alert for the caller's role.
func (h *StreamHandler) Stream(c echo.Context) error {
	v, rid, ok, err := viewer(c)
	if !ok {
		return err
	}
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	sub := h.Hub.Watch(rid, v)
	defer sub.Close()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub.Snapshots:
			if !ok {
				return nil
			}
			if err := writeEvent(w, "snapshot", snap); err != nil {
				return nil
			}
		case note, ok := <-sub.Notes:
			if !ok {
				return nil
			}
			if err := writeEvent(w, "notification", note); err != nil {
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func writeEvent(w *echo.Response, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	w.Flush()
	return nil
}

