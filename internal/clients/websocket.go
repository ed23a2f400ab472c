package clients

import (
	"context"
	"fmt"

	ws "github.com/AstroMined/debtonator-sub002/internal/transport/websocket"
)

// WebSocketClient is the service layer's handle on the hub: export job
// events and realtime cashflow pushes.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{hub: hub}
}

// NotifyCashflowUpdate pushes a freshly computed cashflow snapshot to the
// user after a payment mutation.
func (c *WebSocketClient) NotifyCashflowUpdate(ctx context.Context, userID int64, snapshot any) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "cashflow_update",
		Channel: fmt.Sprintf("cashflow#%d", userID),
		Data:    snapshot,
	})
	return nil
}

func (c *WebSocketClient) NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error {
	if c.hub == nil {
		return nil
	}

	data := map[string]any{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_progress",
		Channel: fmt.Sprintf("export_progress#%d", userID),
		Data:    data,
	})
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(ctx context.Context, userID int64, exportID string, url string, filename string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_complete",
		Channel: fmt.Sprintf("export_complete#%d", userID),
		Data: map[string]any{
			"id":       exportID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	})
	return nil
}

func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, userID int64, exportID string, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "export_failed",
		Channel: fmt.Sprintf("export_failed#%d", userID),
		Data: map[string]any{
			"id":      exportID,
			"message": errMsg,
			"user_id": userID,
		},
	})
	return nil
}
