package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/lock"
	"github.com/cloo-solutions/truststack/internal/metrics"
	"github.com/cloo-solutions/truststack/internal/storage"
	"github.com/cloo-solutions/truststack/internal/telemetry"
)

// BlobStoreInterface stores evidence bytes by content hash
type BlobStoreInterface interface {
	Put(ctx context.Context, projectID, hash string, data []byte) (string, error)
	Open(ctx context.Context, projectID, hash string) (io.ReadCloser, int64, error)
}

// MirrorClientInterface copies blobs to object storage
type MirrorClientInterface interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)
}

const maxFileNameLength = 255

// EvidenceService attaches uploaded files to checklist items
type EvidenceService struct {
	projectWriter
	blobs    BlobStoreInterface
	objects  MirrorClientInterface
	maxBytes int64
}

// NewEvidenceService creates a new EvidenceService. objects may be nil when
// no S3 mirror is configured; maxBytes <= 0 disables the size check.
func NewEvidenceService(
	repo ProjectRepositoryInterface,
	blobs BlobStoreInterface,
	objects MirrorClientInterface,
	locker lock.Locker,
	auditMirror AuditMirror,
	m *metrics.Metrics,
	maxBytes int64,
) *EvidenceService {
	return NewEvidenceServiceWithUUIDGen(repo, blobs, objects, locker, auditMirror, m, maxBytes, &DefaultUUIDGenerator{}, SystemClock{})
}

// NewEvidenceServiceWithUUIDGen creates a new EvidenceService with custom UUID generator and clock (for testing)
func NewEvidenceServiceWithUUIDGen(
	repo ProjectRepositoryInterface,
	blobs BlobStoreInterface,
	objects MirrorClientInterface,
	locker lock.Locker,
	auditMirror AuditMirror,
	m *metrics.Metrics,
	maxBytes int64,
	uuidGen UUIDGenerator,
	clock Clock,
) *EvidenceService {
	return &EvidenceService{
		projectWriter: projectWriter{
			repo:    repo,
			locker:  locker,
			mirror:  auditMirror,
			metrics: m,
			uuidGen: uuidGen,
			clock:   clock,
		},
		blobs:    blobs,
		objects:  objects,
		maxBytes: maxBytes,
	}
}

// UploadEvidenceInput represents one uploaded file
type UploadEvidenceInput struct {
	ProjectID   string
	ItemID      string
	FileName    string
	ContentType string
	Body        io.Reader
	Actor       string
}

// EvidenceBlob is an opened evidence file
type EvidenceBlob struct {
	Evidence domain.Evidence
	Body     io.ReadCloser
	Size     int64
}

// Upload stores the file and appends an evidence record to the item. Bytes
// are hashed and written before the project lock is taken.
func (s *EvidenceService) Upload(ctx context.Context, input UploadEvidenceInput) (*domain.Evidence, error) {
	ctx, span := telemetry.StartSpan(ctx, "EvidenceService.Upload", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		ItemID:    input.ItemID,
		Actor:     input.Actor,
		Operation: "upload_evidence",
	})
	defer span.End()

	fileName := SanitizeFileName(input.FileName)
	if fileName == "" {
		return nil, domain.NewValidationError("file_name", "file_name is required")
	}
	if input.Body == nil {
		return nil, domain.NewValidationError("file", "file is required")
	}

	// Fail fast on unknown targets before writing any bytes.
	rec, err := s.repo.Get(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	if _, ok := rec.Item(input.ItemID); !ok {
		return nil, domain.NewEvidenceError("cannot attach evidence", domain.ErrItemNotFound)
	}

	data, err := s.read(input.Body)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	hash := storage.Digest(data)

	key, err := s.blobs.Put(ctx, input.ProjectID, hash, data)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewEvidenceError("failed to store evidence", err)
	}
	s.mirrorBlob(ctx, input.ProjectID, hash, data, input.ContentType)

	var ev domain.Evidence
	err = s.withLock(ctx, input.ProjectID, func() error {
		rec, err := s.repo.Get(ctx, input.ProjectID)
		if err != nil {
			return err
		}
		item, ok := rec.Item(input.ItemID)
		if !ok {
			return domain.NewEvidenceError("cannot attach evidence", domain.ErrItemNotFound)
		}

		now := s.clock.Now()
		uploadedAt := now
		if n := len(item.Evidence); n > 0 && !uploadedAt.After(item.Evidence[n-1].UploadedAt) {
			uploadedAt = item.Evidence[n-1].UploadedAt.Add(time.Microsecond)
		}
		ev = domain.Evidence{
			EvidenceID:  s.uuidGen.NewString(),
			FileName:    fileName,
			SHA256:      hash,
			Size:        int64(len(data)),
			ContentType: input.ContentType,
			UploadedAt:  uploadedAt,
			StorageKey:  key,
		}
		if err := domain.ValidateEvidence(&ev); err != nil {
			return domain.NewEvidenceError("invalid evidence record", err)
		}
		item.Evidence = append(item.Evidence, ev)

		if err := s.commit(ctx, rec, now); err != nil {
			return err
		}
		s.audit(ctx, domain.AuditEvent{
			ProjectID: rec.Project.ID,
			Type:      domain.AuditEvidenceUploaded,
			Actor:     input.Actor,
			At:        now,
			ItemID:    item.ItemID,
			Data: map[string]any{
				"evidence_id": ev.EvidenceID,
				"file_name":   ev.FileName,
				"sha256":      ev.SHA256,
				"size":        ev.Size,
			},
		})
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	s.metrics.AddEvidenceBytes(ev.Size)
	return &ev, nil
}

// Open returns a stored evidence file of the project by its hash
func (s *EvidenceService) Open(ctx context.Context, projectID, hash string) (*EvidenceBlob, error) {
	ctx, span := telemetry.StartSpan(ctx, "EvidenceService.Open", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "open_evidence",
	})
	defer span.End()

	rec, err := s.repo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	meta, ok := findEvidence(rec, strings.ToLower(hash))
	if !ok {
		return nil, domain.ErrBlobNotFound
	}

	body, size, err := s.blobs.Open(ctx, projectID, meta.SHA256)
	if errors.Is(err, domain.ErrBlobNotFound) && s.objects != nil {
		body, size, err = s.objects.GetObject(ctx, storage.MirrorKey(projectID, meta.SHA256))
		if errors.Is(err, storage.ErrObjectNotFound) {
			err = domain.ErrBlobNotFound
		}
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return &EvidenceBlob{Evidence: meta, Body: body, Size: size}, nil
}

func (s *EvidenceService) read(r io.Reader) ([]byte, error) {
	if s.maxBytes > 0 {
		r = io.LimitReader(r, s.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.NewEvidenceError("failed to read upload", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, domain.NewValidationError("file", fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	return data, nil
}

// mirrorBlob copies the blob to object storage. The local blob is
// authoritative, so failures are reported and not returned.
func (s *EvidenceService) mirrorBlob(ctx context.Context, projectID, hash string, data []byte, contentType string) {
	if s.objects == nil {
		return
	}
	if err := s.objects.PutObject(ctx, storage.MirrorKey(projectID, hash), data, contentType); err != nil {
		log.Printf("evidence: failed to mirror %s/%s: %v", projectID, hash, err)
		telemetry.CaptureError(ctx, err)
	}
}

func findEvidence(rec *domain.ProjectRecord, hash string) (domain.Evidence, bool) {
	for i := range rec.Checklist {
		for _, ev := range rec.Checklist[i].Evidence {
			if ev.SHA256 == hash {
				return ev, true
			}
		}
	}
	return domain.Evidence{}, false
}

// SanitizeFileName keeps the base name of a client-supplied path and drops
// control characters.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if len(name) > maxFileNameLength {
		name = name[:maxFileNameLength]
	}
	return name
}
