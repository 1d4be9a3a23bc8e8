package session

import (
	"context"

	"github.com/kailas-cloud/flora/internal/domain/flower"
	"github.com/kailas-cloud/flora/internal/domain/upload"
	"github.com/kailas-cloud/flora/internal/transport/catalog"
	"github.com/kailas-cloud/flora/internal/usecase/preview"
)

// Searcher queries the flower catalog.
type Searcher interface {
	Search(ctx context.Context, req catalog.Request) ([]flower.Item, error)
}

// Preview is an owned query image preview.
type Preview interface {
	URL() string
	Release(ctx context.Context)
}

// Previews hands out query image previews.
type Previews interface {
	Acquire(ctx context.Context, f *upload.File) (Preview, error)
}

// PreviewService adapts *preview.Service to Previews.
type PreviewService struct {
	Service *preview.Service
}

// Acquire implements Previews.
func (p PreviewService) Acquire(ctx context.Context, f *upload.File) (Preview, error) {
	h, err := p.Service.Acquire(ctx, f)
	if err != nil {
		return nil, err
	}
	return h, nil
}
