package preview

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flora/internal/domain/upload"
	"github.com/kailas-cloud/flora/internal/metrics"
)

// URLPrefix is the HTTP path under which previews are served.
const URLPrefix = "/previews/"

// Service hands out owned preview handles.
type Service struct {
	repo   Repository
	newID  func() string
	logger *zap.Logger
}

// New creates a preview service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, newID: uuid.NewString, logger: logger}
}

// WithIDGenerator overrides preview id generation (tests).
func (s *Service) WithIDGenerator(fn func() string) *Service {
	s.newID = fn
	return s
}

// Acquire stores a copy of the upload and returns the handle that owns it.
func (s *Service) Acquire(ctx context.Context, f *upload.File) (*Handle, error) {
	id := s.newID()
	if err := s.repo.Save(ctx, id, f); err != nil {
		return nil, fmt.Errorf("acquire preview: %w", err)
	}
	metrics.PreviewsLive.Inc()
	metrics.PreviewsTotal.WithLabelValues("acquired").Inc()
	return &Handle{id: id, svc: s}, nil
}

// Open returns the stored image for id. Released previews are not found.
func (s *Service) Open(ctx context.Context, id string) (*upload.File, error) {
	f, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open preview: %w", err)
	}
	return f, nil
}

func (s *Service) release(ctx context.Context, id string) {
	metrics.PreviewsLive.Dec()
	metrics.PreviewsTotal.WithLabelValues("released").Inc()
	if err := s.repo.Delete(ctx, id); err != nil {
		// The repository TTL reclaims it eventually.
		s.logger.Warn("Failed to delete released preview", zap.String("preview_id", id), zap.Error(err))
	}
}

// Handle owns one stored preview until Release.
type Handle struct {
	id   string
	svc  *Service
	once sync.Once
}

// ID returns the preview id.
func (h *Handle) ID() string { return h.id }

// URL returns the path the preview is served under.
func (h *Handle) URL() string { return URLPrefix + h.id }

// Release deletes the stored preview. Only the first call has an effect;
// it is safe on a nil handle.
func (h *Handle) Release(ctx context.Context) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.svc.release(context.WithoutCancel(ctx), h.id)
	})
}
