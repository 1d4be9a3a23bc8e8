package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/flora/internal/domain/flower"
	"github.com/kailas-cloud/flora/internal/domain/upload"
	"github.com/kailas-cloud/flora/internal/transport/catalog"
)

type mockSearcher struct {
	mu       sync.Mutex
	requests []catalog.Request
	searchFn func(ctx context.Context, req catalog.Request) ([]flower.Item, error)
}

func (m *mockSearcher) Search(ctx context.Context, req catalog.Request) ([]flower.Item, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, req)
	}
	return []flower.Item{}, nil
}

func (m *mockSearcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// eventLog records preview lifecycle events in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(ev string) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakePreview struct {
	id       string
	log      *eventLog
	mu       sync.Mutex
	released int
}

func (p *fakePreview) URL() string { return "/previews/" + p.id }

func (p *fakePreview) Release(context.Context) {
	p.mu.Lock()
	p.released++
	p.mu.Unlock()
	p.log.add("release " + p.id)
}

func (p *fakePreview) releases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

type fakePreviews struct {
	log       *eventLog
	mu        sync.Mutex
	handles   []*fakePreview
	acquireFn func(f *upload.File) error
}

func newFakePreviews() *fakePreviews {
	return &fakePreviews{log: &eventLog{}}
}

func (f *fakePreviews) Acquire(_ context.Context, file *upload.File) (Preview, error) {
	if f.acquireFn != nil {
		if err := f.acquireFn(file); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	p := &fakePreview{id: fmt.Sprintf("p%d", len(f.handles)+1), log: f.log}
	f.handles = append(f.handles, p)
	f.mu.Unlock()
	f.log.add("acquire " + p.id)
	return p, nil
}

func (f *fakePreviews) handle(i int) *fakePreview {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[i]
}

func pngFile(name string, size int) *upload.File {
	return &upload.File{Name: name, ContentType: "image/png", Data: make([]byte, size)}
}
