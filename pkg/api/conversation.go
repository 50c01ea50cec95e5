package api

import (
	"context"
	"fmt"
	"time"
)

type ConversationPayload struct {
	Id        string     `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type MessagePayload struct {
	Id        string    `json:"id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationAPI is the remote conversation persistence surface.
type ConversationAPI interface {
	CreateConversation(ctx context.Context, id, title string) error
	GetConversations(ctx context.Context) ([]ConversationPayload, error)
	GetConversation(ctx context.Context, id string) ([]MessagePayload, error)
	DeleteConversation(ctx context.Context, id string) error
}

var _ ConversationAPI = &Client{}

func (c *Client) CreateConversation(ctx context.Context, id, title string) error {
	payload := map[string]interface{}{"id": id, "title": title}
	return c.doJSON(ctx, "POST", "/api/conversations", payload, nil)
}

func (c *Client) GetConversations(ctx context.Context) ([]ConversationPayload, error) {
	var resp struct {
		Conversations []ConversationPayload `json:"conversations"`
	}
	if err := c.doJSON(ctx, "GET", "/api/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (c *Client) GetConversation(ctx context.Context, id string) ([]MessagePayload, error) {
	var resp struct {
		Messages []MessagePayload `json:"messages"`
	}
	if err := c.doJSON(ctx, "GET", fmt.Sprintf("/api/conversations/%s", id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, "DELETE", fmt.Sprintf("/api/conversations/%s", id), nil, nil)
}
