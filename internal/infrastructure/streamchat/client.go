// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package streamchat is a minimal server-side client of the chat REST API that
// backs the post-meeting conversation.
package streamchat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/httpclient"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/constants"
)

// DefaultBaseURL is the chat REST endpoint
const DefaultBaseURL = "https://chat.stream-io-api.com"

// Config holds the configuration for the chat client
type Config struct {
	APIKey    string
	APISecret string
	// Optional: override base URL for testing
	BaseURL string
	Timeout time.Duration
	// Optional: override retry delays for testing
	InitialBackoff time.Duration
}

// Client calls the chat REST API with a server token
type Client struct {
	http   *httpclient.Client
	config Config

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

var _ domain.ChatService = (*Client)(nil)

// NewClient creates a new chat client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &Client{
		http: httpclient.New(httpclient.Config{
			Service:        "chat",
			BaseURL:        config.BaseURL,
			Timeout:        config.Timeout,
			InitialBackoff: config.InitialBackoff,
		}),
		config: config,
	}
}

// ServerToken returns an HS256 token with the server claim, signed with the API secret.
func ServerToken(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("chat API secret not configured")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"server": true}).SignedString([]byte(secret))
}

func (c *Client) serverToken() (string, error) {
	c.tokenOnce.Do(func() {
		c.token, c.tokenErr = ServerToken(c.config.APISecret)
	})
	return c.token, c.tokenErr
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	token, err := c.serverToken()
	if err != nil {
		return domain.NewUnavailableError("chat is not configured", err)
	}
	header := http.Header{}
	header.Set("Authorization", token)
	header.Set("Stream-Auth-Type", "jwt")

	full := path + "?api_key=" + url.QueryEscape(c.config.APIKey)
	return c.http.DoJSON(ctx, method, full, body, out, header)
}

func channelPath(channelID, action string) string {
	return fmt.Sprintf("/channels/%s/%s/%s", constants.ChatChannelType, url.PathEscape(channelID), action)
}

type channelQuery struct {
	Data     *channelData  `json:"data,omitempty"`
	State    bool          `json:"state"`
	Watch    bool          `json:"watch"`
	Messages *messagesPage `json:"messages,omitempty"`
}

type channelData struct {
	CreatedByID string   `json:"created_by_id"`
	Members     []string `json:"members"`
}

type messagesPage struct {
	Limit int `json:"limit"`
}

type channelState struct {
	Messages []models.ChatMessage `json:"messages"`
}

// EnsureChannel creates the channel if it does not exist yet.
func (c *Client) EnsureChannel(ctx context.Context, channelID, createdByID string, members []string) error {
	return c.call(ctx, http.MethodPost, channelPath(channelID, "query"), channelQuery{
		Data:  &channelData{CreatedByID: createdByID, Members: members},
		State: false,
	}, nil)
}

// RecentMessages returns up to limit of the latest channel messages, oldest first.
func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) ([]models.ChatMessage, error) {
	var state channelState
	err := c.call(ctx, http.MethodPost, channelPath(channelID, "query"), channelQuery{
		State:    true,
		Messages: &messagesPage{Limit: limit},
	}, &state)
	if err != nil {
		return nil, err
	}
	if len(state.Messages) > limit {
		state.Messages = state.Messages[len(state.Messages)-limit:]
	}
	return state.Messages, nil
}

// UpsertUser creates or replaces a chat identity.
func (c *Client) UpsertUser(ctx context.Context, user models.ChatUser) error {
	body := map[string]any{
		"users": map[string]models.ChatUser{user.ID: user},
	}
	return c.call(ctx, http.MethodPost, "/users", body, nil)
}

type messageRequest struct {
	Message struct {
		Text   string `json:"text"`
		UserID string `json:"user_id"`
	} `json:"message"`
}

// SendMessage posts text to the channel as author.
func (c *Client) SendMessage(ctx context.Context, channelID, text string, author models.ChatUser) error {
	var req messageRequest
	req.Message.Text = text
	req.Message.UserID = author.ID
	return c.call(ctx, http.MethodPost, channelPath(channelID, "message"), req, nil)
}
