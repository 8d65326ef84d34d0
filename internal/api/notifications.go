package api

import (
	"context"
	"net/http"
	"net/url"
)

// ListNotifications returns all notifications for the current identity,
// newest first.
func (c *Client) ListNotifications(ctx context.Context) ([]NotificationRecord, error) {
	var recs []NotificationRecord
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// MarkNotificationSeen flips a notification to seen server-side.
func (c *Client) MarkNotificationSeen(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(id)+"/seen", nil, nil)
}

// DeleteNotification removes a notification server-side.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil, nil)
}
