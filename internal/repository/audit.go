package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/pagination"
)

// AuditPageResult is one page of a project's audit log
type AuditPageResult = pagination.PageResult[domain.AuditEvent]

const defaultAuditLimit = 50

// AppendAudit adds one event to the project's audit log. Callers hold the
// project lock so lines are never interleaved.
func (r *ProjectRepository) AppendAudit(ctx context.Context, ev domain.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(filepath.Join(r.Dir(ev.ProjectID), auditFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	return f.Close()
}

// ReadAudit returns every event of a project in append order.
func (r *ProjectRepository) ReadAudit(ctx context.Context, projectID string) ([]domain.AuditEvent, error) {
	if !ValidProjectID(projectID) {
		return nil, domain.ErrProjectNotFound
	}
	f, err := os.Open(filepath.Join(r.Dir(projectID), auditFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.AuditEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	events := []domain.AuditEvent{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ev domain.AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("corrupt audit log for %s: %w", projectID, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}

// ListAuditWithCursor pages through the audit log oldest first.
func (r *ProjectRepository) ListAuditWithCursor(ctx context.Context, projectID string, cursor *pagination.Cursor, limit int) (*AuditPageResult, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	events, err := r.ReadAudit(ctx, projectID)
	if err != nil {
		return nil, err
	}

	start := 0
	if cursor != nil {
		start = len(events)
		for i, ev := range events {
			if ev.ID == cursor.LastID {
				start = i + 1
				break
			}
		}
	}

	page := events[start:]
	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}

	var nextCursor string
	if hasMore && len(page) > 0 {
		last := page[len(page)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.At)
	}

	return &AuditPageResult{
		Items:   page,
		Cursor:  nextCursor,
		HasMore: hasMore,
	}, nil
}
