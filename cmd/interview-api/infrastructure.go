// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/aibackend"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/llm"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/streamchat"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/service"
)

const (
	natsDrainTimeout    = 25 * time.Second
	downloadTimeout     = 2 * time.Minute
	kvSetupTimeout      = 10 * time.Second
	postgresMaxConns    = 10
	postgresPingTimeout = 5 * time.Second
)

// kvBuckets are the JetStream key-value buckets of the NATS store backend.
var kvBuckets = []string{store.KVStoreNameMeetings, store.KVStoreNameAgents, store.KVStoreNameUsers}

// repositories bundles the stores the services read and write.
type repositories struct {
	Meeting domain.MeetingRepository
	Agent   domain.AgentRepository
	User    domain.UserRepository
}

// app is the wired service graph shared by every command.
type app struct {
	env       environment
	natsConn  *nats.Conn
	js        jetstream.JetStream
	repos     repositories
	publisher *messaging.MessageBuilder

	lifecycle     *service.MeetingLifecycleService
	summarization *service.SummarizationService

	closers []func()
}

// newApp connects NATS and the store, then builds the clients and services.
func newApp(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*app, error) {
	a := &app{env: env}

	natsConn, err := setupNATS(env, gracefulCloseWG, done)
	if err != nil {
		return nil, err
	}
	a.natsConn = natsConn
	fail := func(err error) (*app, error) {
		a.close()
		natsConn.Close()
		return nil, err
	}

	a.js, err = jetstream.New(natsConn)
	if err != nil {
		return fail(fmt.Errorf("creating JetStream context: %w", err))
	}
	if err := a.setupRepositories(ctx); err != nil {
		return fail(err)
	}
	a.publisher = messaging.NewMessageBuilder(natsConn, a.js)
	if err := a.setupServices(ctx); err != nil {
		return fail(err)
	}
	return a, nil
}

// setupNATS connects to NATS. The wait group is released once the connection has
// drained and closed.
func setupNATS(env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	gracefulCloseWG.Add(1)
	conn, err := nats.Connect(
		env.NatsURL,
		nats.Name("lfx-v2-interview-service"),
		nats.DrainTimeout(natsDrainTimeout),
		nats.MaxReconnects(-1),
		nats.ConnectHandler(func(nc *nats.Conn) {
			slog.With("nats_url", nc.ConnectedUrl()).Info("NATS connection established")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.With("nats_url", nc.ConnectedUrl()).Warn("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.With(logging.ErrKey, err, "subject", s.Subject, "queue", s.Queue).Error("async NATS error")
			} else {
				slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if err := nc.LastError(); err != nil {
				slog.With(logging.ErrKey, err).Error("NATS connection closed with error")
			} else {
				slog.Info("NATS connection closed gracefully")
			}
			gracefulCloseWG.Done()
			// Wake main if the connection closed on its own.
			select {
			case done <- os.Interrupt:
			default:
			}
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("connecting to NATS at %s: %w", env.NatsURL, err)
	}
	return conn, nil
}

func (a *app) setupRepositories(ctx context.Context) error {
	if a.env.StoreBackend == storeBackendPostgres {
		db, err := sql.Open("postgres", a.env.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening postgres: %w", err)
		}
		db.SetMaxOpenConns(postgresMaxConns)
		a.closers = append(a.closers, func() { _ = db.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}

		repo := store.NewPostgresRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating postgres schema: %w", err)
		}
		a.repos = repositories{Meeting: repo, Agent: repo, User: repo}
		slog.InfoContext(ctx, "using postgres store")
		return nil
	}

	kv, err := getKeyValueStores(ctx, a.js)
	if err != nil {
		return err
	}
	a.repos = repositories{
		Meeting: store.NewNatsMeetingRepository(kv[store.KVStoreNameMeetings]),
		Agent:   store.NewNatsAgentRepository(kv[store.KVStoreNameAgents]),
		User:    store.NewNatsUserRepository(kv[store.KVStoreNameUsers]),
	}
	slog.InfoContext(ctx, "using NATS key-value store")
	return nil
}

// getKeyValueStores creates the store buckets when missing.
func getKeyValueStores(ctx context.Context, js jetstream.JetStream) (map[string]jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, kvSetupTimeout)
	defer cancel()

	stores := make(map[string]jetstream.KeyValue, len(kvBuckets))
	for _, bucket := range kvBuckets {
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  bucket,
			History: 5,
			Storage: jetstream.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("getting key-value store %s: %w", bucket, err)
		}
		stores[bucket] = kv
	}
	return stores, nil
}

func (a *app) setupServices(ctx context.Context) error {
	env := a.env

	aiBackend := aibackend.NewClient(aibackend.Config{
		BaseURL:      env.AIBackendURL,
		TokenURL:     env.AIBackendTokenURL,
		ClientID:     env.AIBackendClientID,
		ClientSecret: env.AIBackendClientSecret,
	})
	chat := streamchat.NewClient(streamchat.Config{
		APIKey:    env.StreamAPIKey,
		APISecret: env.StreamAPISecret,
		BaseURL:   env.StreamChatBaseURL,
	})
	completer := llm.NewChatClient(env.OpenAIAPIKey, env.OpenAIBaseURL, env.ChatModel)

	summarizer, summaryModel, err := a.setupSummarizer(ctx)
	if err != nil {
		return err
	}

	bridge := service.NewChatBridgeService(a.repos.Meeting, a.repos.Agent, chat, completer,
		tokenBudget(ctx, env.ChatModel, env.ChatContextTokens))
	a.lifecycle = service.NewMeetingLifecycleService(a.repos.Meeting, a.repos.Agent, aiBackend, chat, a.publisher, bridge)
	a.summarization = service.NewSummarizationService(
		a.repos.Meeting,
		a.repos.Agent,
		a.repos.User,
		summarizer,
		aibackend.NewDownloader(downloadTimeout),
		a.publisher,
		tokenBudget(ctx, summaryModel, env.SummaryContextTokens),
	)
	return nil
}

func (a *app) setupSummarizer(ctx context.Context) (domain.Summarizer, string, error) {
	env := a.env
	if env.SummaryProvider == summaryProviderVertex {
		vs, err := llm.NewVertexSummarizer(ctx, env.GoogleCloudProject, env.GoogleCloudLocation, env.VertexModel)
		if err != nil {
			return nil, "", fmt.Errorf("creating vertex summarizer: %w", err)
		}
		a.closers = append(a.closers, func() { _ = vs.Close() })
		// Gemini has no tiktoken encoding; the OpenAI counts are a close enough estimate.
		return vs, env.SummaryModel, nil
	}
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  env.OpenAIAPIKey,
		BaseURL: env.OpenAIBaseURL,
		Model:   env.SummaryModel,
	}), env.SummaryModel, nil
}

// tokenBudget returns nil, which disables trimming, when the limit is zero or the
// encoding cannot be loaded.
func tokenBudget(ctx context.Context, model string, limit int) *llm.TokenBudget {
	if limit <= 0 {
		return nil
	}
	budget, err := llm.NewTokenBudget(model, limit)
	if err != nil {
		slog.WarnContext(ctx, "token encoding unavailable, context trimming disabled", logging.ErrKey, err, "model", model)
		return nil
	}
	return budget
}

// close releases what newApp opened, except the NATS connection, which is drained
// by gracefulShutdown.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
