package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	ws "github.com/codeconnects/backend/internal/websocket"
)

// Watch streams the viewer's notifications to fn until ctx is done or the
// server closes the connection.
func (c *Client) Watch(ctx context.Context, fn func(ws.NotificationPayload)) error {
	if c.token == "" {
		return errors.New("watch requires a token")
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}
	endpoint.Scheme = strings.Replace(endpoint.Scheme, "http", "ws", 1)
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/ws/notifications"
	endpoint.RawQuery = url.Values{"token": {c.token}}.Encode()

	conn, _, err := websocket.Dial(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.CloseNow()

	for {
		var msg ws.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			return err
		}

		switch msg.Type {
		case ws.MessageTypeNotification:
			var payload ws.NotificationPayload
			if err := msg.ParsePayload(&payload); err != nil {
				return fmt.Errorf("malformed notification: %w", err)
			}
			fn(payload)
		case ws.MessageTypeSystem:
			var payload ws.SystemPayload
			if err := msg.ParsePayload(&payload); err == nil && payload.Event == ws.EventServerShutdown {
				return nil
			}
		}
	}
}
