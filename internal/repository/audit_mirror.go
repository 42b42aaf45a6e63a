package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditMirrorRepository copies audit events into Postgres so they can be
// queried across projects. The workspace log stays authoritative.
type AuditMirrorRepository struct {
	pool *pgxpool.Pool
}

func NewAuditMirrorRepository(pool *pgxpool.Pool) *AuditMirrorRepository {
	return &AuditMirrorRepository{pool: pool}
}

type auditPayload struct {
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

func (r *AuditMirrorRepository) Insert(ctx context.Context, ev domain.AuditEvent) error {
	payload, err := json.Marshal(auditPayload{Before: ev.Before, After: ev.After, Data: ev.Data})
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}
	var itemID *string
	if ev.ItemID != "" {
		itemID = &ev.ItemID
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_events (id, project_id, type, actor, at, item_id, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.ProjectID, ev.Type, ev.Actor, ev.At, itemID, payload,
	)
	return err
}

func (r *AuditMirrorRepository) ListByProjectWithCursor(ctx context.Context, projectID string, cursor *pagination.Cursor, limit int) (*AuditPageResult, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.pool.Query(ctx,
			`SELECT id::text, project_id, type, actor, at, COALESCE(item_id, ''), payload FROM audit_events
			 WHERE project_id = $1 AND (at, id) > ($2, $3)
			 ORDER BY at ASC, id ASC
			 LIMIT $4`,
			projectID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT id::text, project_id, type, actor, at, COALESCE(item_id, ''), payload FROM audit_events
			 WHERE project_id = $1
			 ORDER BY at ASC, id ASC
			 LIMIT $2`,
			projectID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.AuditEvent{}
	for rows.Next() {
		var ev domain.AuditEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.Type, &ev.Actor, &ev.At, &ev.ItemID, &payload); err != nil {
			return nil, err
		}
		var p auditPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode audit payload: %w", err)
		}
		ev.Before, ev.After, ev.Data = p.Before, p.After, p.Data
		ev.At = ev.At.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}

	var nextCursor string
	if hasMore && len(events) > 0 {
		last := events[len(events)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.At)
	}

	return &AuditPageResult{
		Items:   events,
		Cursor:  nextCursor,
		HasMore: hasMore,
	}, nil
}

// CountByType aggregates mirrored events across all projects.
func (r *AuditMirrorRepository) CountByType(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT type, COUNT(*) FROM audit_events GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
