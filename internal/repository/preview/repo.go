package preview

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/flora/internal/domain"
	"github.com/kailas-cloud/flora/internal/domain/upload"
)

var keyPrefix = domain.KeyPrefix + "preview:"

const (
	fieldName        = "name"
	fieldContentType = "content_type"
	fieldData        = "data"
)

// store is the consumer interface for preview persistence (ISP).
type store interface {
	HSetWithTTL(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Repo stores query image previews as hashes with a TTL.
// The TTL bounds the lifetime of previews whose owner never released them.
type Repo struct {
	store store
	ttl   time.Duration
}

// New creates a preview repository.
func New(s store, ttl time.Duration) *Repo {
	return &Repo{store: s, ttl: ttl}
}

// Save stores the image under id.
func (r *Repo) Save(ctx context.Context, id string, f *upload.File) error {
	fields := map[string]string{
		fieldName:        f.Name,
		fieldContentType: f.ContentType,
		fieldData:        string(f.Data),
	}
	if err := r.store.HSetWithTTL(ctx, key(id), fields, r.ttl); err != nil {
		return fmt.Errorf("save preview %s: %w", id, err)
	}
	return nil
}

// Load returns the image stored under id.
func (r *Repo) Load(ctx context.Context, id string) (*upload.File, error) {
	m, err := r.store.HGetAll(ctx, key(id))
	if err != nil {
		return nil, fmt.Errorf("load preview %s: %w", id, err)
	}
	data, ok := m[fieldData]
	if !ok {
		return nil, fmt.Errorf("preview %s: %w", id, domain.ErrPreviewNotFound)
	}
	return &upload.File{
		Name:        m[fieldName],
		ContentType: m[fieldContentType],
		Data:        []byte(data),
	}, nil
}

// Delete removes the image stored under id. Deleting a missing id is not an error.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, key(id)); err != nil {
		return fmt.Errorf("delete preview %s: %w", id, err)
	}
	return nil
}

func key(id string) string {
	return keyPrefix + id
}
