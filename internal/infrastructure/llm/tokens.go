// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package llm

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
)

// perTurnOverhead approximates the role and separator tokens of one chat message.
const perTurnOverhead = 4

// TokenBudget trims prompts to fit a model's input window. A nil budget never trims.
type TokenBudget struct {
	count func(string) int
	limit int
}

// NewTokenBudget selects the tokenizer of model, falling back to cl100k_base.
func NewTokenBudget(model string, limit int) (*TokenBudget, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &TokenBudget{
		count: func(s string) int { return len(enc.Encode(s, nil, nil)) },
		limit: limit,
	}, nil
}

// Count returns the token count of s.
func (b *TokenBudget) Count(s string) int {
	if b == nil {
		return 0
	}
	return b.count(s)
}

// FitTurns keeps system and latest and as many of the most recent history turns
// as fit. The result is system, the kept history in order, then latest.
func (b *TokenBudget) FitTurns(system models.ChatTurn, history []models.ChatTurn, latest models.ChatTurn) []models.ChatTurn {
	kept := history
	if b != nil {
		used := b.turnCost(system) + b.turnCost(latest)
		start := len(history)
		for i := len(history) - 1; i >= 0; i-- {
			cost := b.turnCost(history[i])
			if used+cost > b.limit {
				break
			}
			used += cost
			start = i
		}
		kept = history[start:]
	}

	out := make([]models.ChatTurn, 0, len(kept)+2)
	out = append(out, system)
	out = append(out, kept...)
	return append(out, latest)
}

// FitPrefix returns how many leading parts fit in the budget after reserved tokens.
func (b *TokenBudget) FitPrefix(reserved int, parts []string) int {
	if b == nil {
		return len(parts)
	}
	used := reserved
	for i, p := range parts {
		used += b.count(p)
		if used > b.limit {
			return i
		}
	}
	return len(parts)
}

func (b *TokenBudget) turnCost(t models.ChatTurn) int {
	return b.count(t.Content) + perTurnOverhead
}
