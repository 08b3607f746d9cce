package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Log is one persisted audit entry.
type Log struct {
	ID           uuid.UUID       `json:"id"`
	ActorKind    string          `json:"actor_kind"`
	ActorUserID  *uuid.UUID      `json:"actor_user_id,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   *string         `json:"resource_id,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Route        *string         `json:"route,omitempty"`
	Status       int32           `json:"status"`
	IP           *string         `json:"ip,omitempty"`
	UserAgent    *string         `json:"user_agent,omitempty"`
	RequestID    *string         `json:"request_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PGStore persists audit logs in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PGStore over the shared connection pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// InsertAuditLog stores one audit entry.
func (s *PGStore) InsertAuditLog(ctx context.Context, entry Log) (Log, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO audit_logs (actor_kind, actor_user_id, action, resource_type, resource_id,
			method, path, route, status, ip, user_agent, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		entry.ActorKind, entry.ActorUserID, entry.Action, entry.ResourceType, entry.ResourceID,
		entry.Method, entry.Path, entry.Route, entry.Status, entry.IP, entry.UserAgent,
		entry.RequestID, nullableJSON(entry.Metadata))
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return Log{}, fmt.Errorf("audit: insert log: %w", err)
	}
	return entry, nil
}

// ListAuditLogs returns audit entries, newest first.
func (s *PGStore) ListAuditLogs(ctx context.Context, limit, offset int32) ([]Log, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id,
			method, path, route, status, ip, user_agent, request_id, metadata, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("audit: list logs: %w", err)
	}
	defer rows.Close()

	var logs []Log
	for rows.Next() {
		var entry Log
		if err := rows.Scan(
			&entry.ID,
			&entry.ActorKind,
			&entry.ActorUserID,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.Method,
			&entry.Path,
			&entry.Route,
			&entry.Status,
			&entry.IP,
			&entry.UserAgent,
			&entry.RequestID,
			&entry.Metadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func nullableJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}
