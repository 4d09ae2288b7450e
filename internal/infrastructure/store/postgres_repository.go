// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/utils"
)

// Schema creates the tables the Postgres repositories read and write. It is
// compatible with an existing database that already has them.
const Schema = `
DO $$ BEGIN
	CREATE TYPE meeting_status AS ENUM ('upcoming', 'active', 'completed', 'processing', 'cancelled');
EXCEPTION WHEN duplicate_object THEN NULL;
END $$;

CREATE TABLE IF NOT EXISTS "user" (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	email_verified BOOLEAN NOT NULL DEFAULT false,
	image TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT now(),
	updated_at TIMESTAMP NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	user_id TEXT NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
	instructions TEXT NOT NULL,
	instructions2 TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT now(),
	updated_at TIMESTAMP NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS meetings (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	user_id TEXT NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	status meeting_status NOT NULL DEFAULT 'upcoming',
	started_at TIMESTAMP,
	ended_at TIMESTAMP,
	transcript_url TEXT,
	recording_url TEXT,
	summary TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT now(),
	updated_at TIMESTAMP NOT NULL DEFAULT now()
);
`

const meetingColumns = `id, name, user_id, agent_id, status, started_at, ended_at, transcript_url, recording_url, summary, created_at, updated_at`

const (
	queryInsertMeeting = `INSERT INTO meetings (` + meetingColumns + `) VALUES ($1, $2, $3, $4, $5::meeting_status, $6, $7, $8, $9, $10, $11, $12)`

	querySelectMeeting = `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`

	querySelectMeetingsByStatus = `SELECT ` + meetingColumns + ` FROM meetings WHERE status = $1::meeting_status ORDER BY created_at`

	queryActivateMeeting = `UPDATE meetings SET status = 'active', started_at = $2, updated_at = $2
WHERE id = $1 AND status <> ALL($3::meeting_status[]) RETURNING ` + meetingColumns

	queryBeginProcessing = `UPDATE meetings SET status = 'processing', ended_at = $2, transcript_url = $3, updated_at = $2
WHERE id = $1 AND status = 'active' RETURNING ` + meetingColumns

	queryCancelMeeting = `UPDATE meetings SET status = 'cancelled', updated_at = $2
WHERE id = $1 AND status IN ('upcoming', 'active') RETURNING ` + meetingColumns

	querySetRecordingURL = `UPDATE meetings SET recording_url = $2, updated_at = $3 WHERE id = $1`

	queryCompleteMeeting = `UPDATE meetings SET summary = $2, status = 'completed', updated_at = $3 WHERE id = $1`

	queryInsertAgent = `INSERT INTO agents (id, name, user_id, instructions, instructions2, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	querySelectAgents = `SELECT id, name, user_id, instructions, instructions2, created_at, updated_at FROM agents WHERE id = ANY($1)`

	queryInsertUser = `INSERT INTO "user" (id, name, email, image) VALUES ($1, $2, $3, $4)`

	querySelectUsers = `SELECT id, name, email, COALESCE(image, '') FROM "user" WHERE id = ANY($1)`
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// PostgresRepository implements the meeting, agent and user repositories on a
// relational database. Guarded transitions are single UPDATE statements whose
// WHERE clause carries the status guard, so the database decides the race.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ domain.MeetingRepository = (*PostgresRepository)(nil)
	_ domain.AgentRepository   = (*PostgresRepository)(nil)
	_ domain.UserRepository    = (*PostgresRepository)(nil)
)

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return domain.NewInternalError("failed to apply database schema", err)
	}
	return nil
}

func (r *PostgresRepository) startSpan(ctx context.Context, op, table string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "postgres."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.sql.table", table),
		),
	)
}

// IsReady pings the database.
func (r *PostgresRepository) IsReady(ctx context.Context) bool {
	if r.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx) == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*models.Meeting, error) {
	var (
		m                                    models.Meeting
		status                               string
		startedAt, endedAt                   sql.Null[time.Time]
		transcriptURL, recordingURL, summary sql.Null[string]
	)
	if err := row.Scan(&m.ID, &m.Name, &m.UserID, &m.AgentID, &status, &startedAt, &endedAt,
		&transcriptURL, &recordingURL, &summary, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Status = models.MeetingStatus(status)
	m.StartedAt = fromNull(startedAt)
	m.EndedAt = fromNull(endedAt)
	m.TranscriptURL = fromNull(transcriptURL)
	m.RecordingURL = fromNull(recordingURL)
	m.Summary = fromNull(summary)
	return &m, nil
}

// fromNull maps a nullable column to an optional field.
func fromNull[T any](v sql.Null[T]) *T {
	if !v.Valid {
		return nil
	}
	return utils.Ptr(v.V)
}

func toNull[T any](p *T) sql.Null[T] {
	if p == nil {
		return sql.Null[T]{}
	}
	return sql.Null[T]{V: *p, Valid: true}
}

func (r *PostgresRepository) internal(ctx context.Context, span trace.Span, msg string, err error) error {
	slog.ErrorContext(ctx, msg, logging.ErrKey, err)
	return failSpan(span, domain.NewInternalError(msg, err), "")
}

func (r *PostgresRepository) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	ctx, span := r.startSpan(ctx, "insert", "meetings")
	defer span.End()

	if meeting == nil || meeting.ID == "" {
		return failSpan(span, domain.NewValidationError("meeting id is required"), "")
	}
	if meeting.Status == "" {
		meeting.Status = models.MeetingStatusUpcoming
	}
	if !meeting.Status.IsValid() {
		return failSpan(span, domain.NewValidationError("unknown meeting status '"+string(meeting.Status)+"'"), "")
	}
	now := r.now()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, queryInsertMeeting,
		meeting.ID, meeting.Name, meeting.UserID, meeting.AgentID, string(meeting.Status),
		toNull(meeting.StartedAt), toNull(meeting.EndedAt),
		toNull(meeting.TranscriptURL), toNull(meeting.RecordingURL), toNull(meeting.Summary),
		meeting.CreatedAt, meeting.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return failSpan(span, domain.NewConflictError(fmt.Sprintf("meeting with id '%s' already exists", meeting.ID), err), "conflict")
		}
		return r.internal(ctx, span, "failed to insert meeting", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *PostgresRepository) GetMeeting(ctx context.Context, meetingID string) (*models.Meeting, error) {
	ctx, span := r.startSpan(ctx, "select", "meetings")
	defer span.End()

	m, err := scanMeeting(r.db.QueryRowContext(ctx, querySelectMeeting, meetingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, failSpan(span, domain.NewNotFoundError(fmt.Sprintf("meeting with id '%s' not found", meetingID), err), "not found")
		}
		return nil, r.internal(ctx, span, "failed to select meeting", err)
	}
	span.SetStatus(codes.Ok, "")
	return m, nil
}

func (r *PostgresRepository) ListMeetingsByStatus(ctx context.Context, status models.MeetingStatus) ([]*models.Meeting, error) {
	ctx, span := r.startSpan(ctx, "select", "meetings")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, querySelectMeetingsByStatus, string(status))
	if err != nil {
		return nil, r.internal(ctx, span, "failed to list meetings", err)
	}
	defer func() { _ = rows.Close() }()

	var meetings []*models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, r.internal(ctx, span, "failed to scan meeting", err)
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, r.internal(ctx, span, "failed to list meetings", err)
	}
	span.SetStatus(codes.Ok, "")
	return meetings, nil
}

// guarded runs a conditional UPDATE ... RETURNING. No returned row means the
// meeting is missing or its status rejected the transition.
func (r *PostgresRepository) guarded(ctx context.Context, op, query string, args ...any) (*models.Meeting, bool, error) {
	ctx, span := r.startSpan(ctx, op, "meetings")
	defer span.End()

	m, err := scanMeeting(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			span.SetAttributes(attribute.Bool("db.applied", false))
			span.SetStatus(codes.Ok, "")
			return nil, false, nil
		}
		return nil, false, r.internal(ctx, span, "failed to update meeting status", err)
	}
	span.SetAttributes(attribute.Bool("db.applied", true))
	span.SetStatus(codes.Ok, "")
	return m, true, nil
}

func statusStrings(statuses []models.MeetingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *PostgresRepository) ActivateMeeting(ctx context.Context, meetingID string, startedAt time.Time) (*models.Meeting, bool, error) {
	return r.guarded(ctx, "activate", queryActivateMeeting,
		meetingID, startedAt, pq.Array(statusStrings(models.ActivationBlockedStatuses())))
}

func (r *PostgresRepository) BeginProcessing(ctx context.Context, meetingID string, endedAt time.Time, transcript *string) (*models.Meeting, bool, error) {
	return r.guarded(ctx, "begin_processing", queryBeginProcessing, meetingID, endedAt, toNull(transcript))
}

func (r *PostgresRepository) CancelMeeting(ctx context.Context, meetingID string, at time.Time) (*models.Meeting, bool, error) {
	return r.guarded(ctx, "cancel", queryCancelMeeting, meetingID, at)
}

func (r *PostgresRepository) updateOne(ctx context.Context, op, query string, args ...any) error {
	ctx, span := r.startSpan(ctx, op, "meetings")
	defer span.End()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return r.internal(ctx, span, "failed to update meeting", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.internal(ctx, span, "failed to update meeting", err)
	}
	if n == 0 {
		return failSpan(span, domain.NewNotFoundError(fmt.Sprintf("meeting with id '%v' not found", args[0])), "not found")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *PostgresRepository) SetRecordingURL(ctx context.Context, meetingID, url string) error {
	return r.updateOne(ctx, "set_recording_url", querySetRecordingURL, meetingID, url, r.now())
}

func (r *PostgresRepository) CompleteMeeting(ctx context.Context, meetingID, summary string) error {
	return r.updateOne(ctx, "complete", queryCompleteMeeting, meetingID, summary, r.now())
}

func (r *PostgresRepository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	ctx, span := r.startSpan(ctx, "insert", "agents")
	defer span.End()

	if agent == nil || agent.ID == "" {
		return failSpan(span, domain.NewValidationError("agent id is required"), "")
	}
	now := r.now()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now
	if _, err := r.db.ExecContext(ctx, queryInsertAgent, agent.ID, agent.Name, agent.UserID,
		agent.Instructions, agent.ReportTemplate, agent.CreatedAt, agent.UpdatedAt); err != nil {
		return r.internal(ctx, span, "failed to insert agent", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *PostgresRepository) GetAgent(ctx context.Context, agentID string) (*models.Agent, error) {
	agents, err := r.ListAgents(ctx, []string{agentID})
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, domain.NewNotFoundError(fmt.Sprintf("agent with id '%s' not found", agentID))
	}
	return agents[0], nil
}

func (r *PostgresRepository) ListAgents(ctx context.Context, ids []string) ([]*models.Agent, error) {
	ctx, span := r.startSpan(ctx, "select", "agents")
	defer span.End()

	if len(ids) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, querySelectAgents, pq.Array(ids))
	if err != nil {
		return nil, r.internal(ctx, span, "failed to select agents", err)
	}
	defer func() { _ = rows.Close() }()

	var agents []*models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.UserID, &a.Instructions, &a.ReportTemplate, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, r.internal(ctx, span, "failed to scan agent", err)
		}
		agents = append(agents, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, r.internal(ctx, span, "failed to select agents", err)
	}
	span.SetStatus(codes.Ok, "")
	return agents, nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	ctx, span := r.startSpan(ctx, "insert", "user")
	defer span.End()

	if user == nil || user.ID == "" {
		return failSpan(span, domain.NewValidationError("user id is required"), "")
	}
	image := toNull(utils.PtrIfNotZero(user.Image))
	if _, err := r.db.ExecContext(ctx, queryInsertUser, user.ID, user.Name, user.Email, image); err != nil {
		return r.internal(ctx, span, "failed to insert user", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	ctx, span := r.startSpan(ctx, "select", "user")
	defer span.End()

	if len(ids) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, querySelectUsers, pq.Array(ids))
	if err != nil {
		return nil, r.internal(ctx, span, "failed to select users", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Image); err != nil {
			return nil, r.internal(ctx, span, "failed to scan user", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, r.internal(ctx, span, "failed to select users", err)
	}
	span.SetStatus(codes.Ok, "")
	return users, nil
}
