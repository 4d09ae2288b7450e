// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package aibackend is the client of the service that joins calls as the AI
// participant and records their transcripts.
package aibackend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/httpclient"
)

// DefaultBaseURL is where the AI backend listens in local development
const DefaultBaseURL = "http://localhost:8000"

// Config holds the configuration for the AI backend client
type Config struct {
	BaseURL string
	// Optional: OAuth2 client credentials. Requests are unauthenticated when
	// TokenURL is empty.
	TokenURL     string
	ClientID     string
	ClientSecret string
	// Optional: override timeout and retries
	Timeout    time.Duration
	MaxRetries int
	// Optional: override retry delays for testing
	InitialBackoff time.Duration
}

// Client talks to the AI backend
type Client struct {
	http *httpclient.Client
}

// Ensure that Client implements domain.AIBackend
var _ domain.AIBackend = (*Client)(nil)

// NewClient creates a new AI backend client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	var ts oauth2.TokenSource
	if config.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
		}
		ts = cc.TokenSource(context.Background())
	}

	return &Client{
		http: httpclient.New(httpclient.Config{
			Service:        "ai-backend",
			BaseURL:        config.BaseURL,
			Timeout:        config.Timeout,
			MaxRetries:     config.MaxRetries,
			InitialBackoff: config.InitialBackoff,
			TokenSource:    ts,
		}),
	}
}

func meetingPath(meetingID, action string) string {
	return fmt.Sprintf("/meetings/%s/%s", url.PathEscape(meetingID), action)
}

// StartAgent asks the backend to join the call as the agent.
func (c *Client) StartAgent(ctx context.Context, req models.StartAgentRequest) error {
	return c.http.DoJSON(ctx, http.MethodPost, "/meetings/start", req, nil, nil)
}

// StopAgent asks the backend to leave the call.
func (c *Client) StopAgent(ctx context.Context, meetingID string) error {
	return c.http.DoJSON(ctx, http.MethodPost, meetingPath(meetingID, "stop"), nil, nil, nil)
}

// GetTranscript returns the transcript the backend recorded for the call.
func (c *Client) GetTranscript(ctx context.Context, meetingID string) (*models.TranscriptResult, error) {
	var result models.TranscriptResult
	if err := c.http.DoJSON(ctx, http.MethodGet, meetingPath(meetingID, "transcript"), nil, &result, nil); err != nil {
		return nil, err
	}
	if result.Transcript == nil {
		result.Transcript = []models.TranscriptEntry{}
	}
	return &result, nil
}

// Downloader fetches transcript documents by URL. It carries no credentials so
// the backend token is never sent to a third-party host.
type Downloader struct {
	http *httpclient.Client
}

var _ domain.TranscriptDownloader = (*Downloader)(nil)

// NewDownloader creates a Downloader.
func NewDownloader(timeout time.Duration) *Downloader {
	return &Downloader{
		http: httpclient.New(httpclient.Config{Service: "transcript-download", Timeout: timeout}),
	}
}

// Download returns the document at rawURL. Only http and https are fetched.
func (d *Downloader) Download(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewValidationError(fmt.Sprintf("unsupported transcript url %q", rawURL))
	}
	return d.http.Fetch(ctx, u.String())
}
