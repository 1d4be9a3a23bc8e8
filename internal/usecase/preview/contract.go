package preview

import (
	"context"

	"github.com/kailas-cloud/flora/internal/domain/upload"
)

// Repository persists preview bytes.
type Repository interface {
	Save(ctx context.Context, id string, f *upload.File) error
	Load(ctx context.Context, id string) (*upload.File, error)
	Delete(ctx context.Context, id string) error
}
