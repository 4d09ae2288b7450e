// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
)

// NatsAgentRepository stores agents in a NATS KV bucket keyed by agent id.
type NatsAgentRepository struct {
	base *NatsBaseRepository[models.Agent]
}

// NewNatsAgentRepository creates a new NATS KV store repository for agents.
func NewNatsAgentRepository(agents INatsKeyValue) *NatsAgentRepository {
	return &NatsAgentRepository{base: NewNatsBaseRepository[models.Agent](agents, "agent")}
}

var _ domain.AgentRepository = (*NatsAgentRepository)(nil)

func (s *NatsAgentRepository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	if agent == nil {
		return domain.NewValidationError("agent is required")
	}
	if err := checkKey("agent", agent.ID); err != nil {
		return err
	}
	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now
	return s.base.Create(ctx, agent.ID, agent)
}

func (s *NatsAgentRepository) GetAgent(ctx context.Context, agentID string) (*models.Agent, error) {
	if err := checkKey("agent", agentID); err != nil {
		return nil, domain.NewNotFoundError("agent not found", err)
	}
	return s.base.Get(ctx, agentID)
}

func (s *NatsAgentRepository) ListAgents(ctx context.Context, ids []string) ([]*models.Agent, error) {
	return s.base.GetMany(ctx, ids)
}

// NatsUserRepository stores users in a NATS KV bucket keyed by user id.
type NatsUserRepository struct {
	base *NatsBaseRepository[models.User]
}

// NewNatsUserRepository creates a new NATS KV store repository for users.
func NewNatsUserRepository(users INatsKeyValue) *NatsUserRepository {
	return &NatsUserRepository{base: NewNatsBaseRepository[models.User](users, "user")}
}

var _ domain.UserRepository = (*NatsUserRepository)(nil)

func (s *NatsUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return domain.NewValidationError("user is required")
	}
	if err := checkKey("user", user.ID); err != nil {
		return err
	}
	return s.base.Create(ctx, user.ID, user)
}

func (s *NatsUserRepository) ListUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	return s.base.GetMany(ctx, ids)
}
