package api

import (
	"context"
	"net/http"
	"net/url"
)

// StartChat opens a new conversation for the given visitor and returns the
// created session. The returned session ID is the chat token the caller
// persists locally.
func (c *Client) StartChat(ctx context.Context, visitor Sender) (*ChatSession, error) {
	var session ChatSession
	if err := c.do(ctx, http.MethodPost, "/chats", visitor, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetChat fetches a conversation record by chat id.
func (c *Client) GetChat(ctx context.Context, chatID string) (*ChatSession, error) {
	var session ChatSession
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListMessages returns the full message history of a conversation in causal
// order, oldest first.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]ChatMessage, error) {
	var msgs []ChatMessage
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID)+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage persists a message and returns the authoritative record with
// the server-assigned id and timestamp.
func (c *Client) SendMessage(ctx context.Context, msg ChatMessage) (*ChatMessage, error) {
	var saved ChatMessage
	if err := c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(msg.ChatID)+"/messages", msg, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ListConversations returns the admin's conversation roster, optionally
// filtered by a visitor-name query.
func (c *Client) ListConversations(ctx context.Context, query string) ([]Conversation, error) {
	path := "/admin/conversations"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var convs []Conversation
	if err := c.do(ctx, http.MethodGet, path, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// DeleteConversation removes a chat history record.
func (c *Client) DeleteConversation(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/admin/conversations/"+url.PathEscape(chatID), nil, nil)
}
