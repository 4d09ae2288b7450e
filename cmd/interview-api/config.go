// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
)

// Storage backends and summary providers selectable by environment.
const (
	storeBackendNATS     = "nats"
	storeBackendPostgres = "postgres"

	summaryProviderOpenAI = "openai"
	summaryProviderVertex = "vertex"
)

// flags are the command line flags for the interview service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the interview service.
type environment struct {
	Port         string `env:"PORT" env-default:"8080"`
	NatsURL      string `env:"NATS_URL" env-default:"nats://localhost:4222"`
	StoreBackend string `env:"STORE_BACKEND" env-default:"nats"`
	DatabaseURL  string `env:"DATABASE_URL"`

	StreamAPIKey      string `env:"STREAM_API_KEY"`
	StreamAPISecret   string `env:"STREAM_API_SECRET"`
	StreamChatBaseURL string `env:"STREAM_CHAT_BASE_URL" env-default:"https://chat.stream-io-api.com"`

	AIBackendURL          string `env:"FASTAPI_URL" env-default:"http://localhost:8000"`
	AIBackendTokenURL     string `env:"AI_BACKEND_TOKEN_URL"`
	AIBackendClientID     string `env:"AI_BACKEND_CLIENT_ID"`
	AIBackendClientSecret string `env:"AI_BACKEND_CLIENT_SECRET"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	ChatModel     string `env:"CHAT_MODEL" env-default:"chatgpt-4o-latest"`

	SummaryProvider     string `env:"SUMMARY_PROVIDER" env-default:"openai"`
	SummaryModel        string `env:"SUMMARY_MODEL" env-default:"gpt-4o"`
	GoogleCloudProject  string `env:"GOOGLE_CLOUD_PROJECT"`
	GoogleCloudLocation string `env:"GOOGLE_CLOUD_LOCATION" env-default:"us-central1"`
	VertexModel         string `env:"VERTEX_MODEL" env-default:"gemini-1.5-flash"`

	// Context windows used to trim chat history and transcripts; 0 disables trimming.
	ChatContextTokens    int `env:"CHAT_CONTEXT_TOKENS" env-default:"120000"`
	SummaryContextTokens int `env:"SUMMARY_CONTEXT_TOKENS" env-default:"120000"`

	WorkerConcurrency int `env:"WORKER_CONCURRENCY" env-default:"4"`
	JobMaxDeliver     int `env:"JOB_MAX_DELIVER" env-default:"5"`
}

// parseEnv reads and validates the environment.
func parseEnv() (environment, error) {
	var env environment
	if err := cleanenv.ReadEnv(&env); err != nil {
		return env, fmt.Errorf("reading environment: %w", err)
	}
	return env, env.validate()
}

func (e environment) validate() error {
	switch e.StoreBackend {
	case storeBackendNATS:
	case storeBackendPostgres:
		if e.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", storeBackendPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", e.StoreBackend)
	}

	switch e.SummaryProvider {
	case summaryProviderOpenAI:
	case summaryProviderVertex:
		if e.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when SUMMARY_PROVIDER=%s", summaryProviderVertex)
		}
	default:
		return fmt.Errorf("unknown SUMMARY_PROVIDER %q", e.SummaryProvider)
	}

	if e.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", e.WorkerConcurrency)
	}
	if e.JobMaxDeliver <= 0 {
		return fmt.Errorf("JOB_MAX_DELIVER must be positive, got %d", e.JobMaxDeliver)
	}
	return nil
}

// warnMissingCredentials logs the integrations that will answer Unavailable.
func (e environment) warnMissingCredentials() {
	if e.StreamAPIKey == "" || e.StreamAPISecret == "" {
		slog.Warn("STREAM_API_KEY or STREAM_API_SECRET not set, webhooks will be rejected and chat disabled")
	}
	if e.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY not set, chat replies and OpenAI summaries will fail")
	}
}

// applyDebug forces debug logging before the logger is configured.
func applyDebug(debug bool) {
	if !debug {
		return
	}
	if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
		slog.With(logging.ErrKey, err).Error("error setting log level")
		os.Exit(1)
	}
}
