// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"strings"
	"time"
)

// DefaultAgentInstructions is the persona used when an agent has no instructions of its own.
const DefaultAgentInstructions = "You are a rational and critical Venture Capitalist analyst..."

// Agent is the AI persona that joins a meeting and later answers questions about it.
type Agent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	UserID       string `json:"userId"`
	Instructions string `json:"instructions"`
	// ReportTemplate drives the post-meeting data report.
	ReportTemplate string    `json:"instructions2"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Persona returns the instructions sent to the AI backend when the agent joins a call.
func (a *Agent) Persona() string {
	if strings.TrimSpace(a.Instructions) == "" {
		return DefaultAgentInstructions
	}
	return a.Instructions
}

// User is a human account that can own meetings and speak in them.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}
