package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/flora/internal/domain"
	"github.com/kailas-cloud/flora/internal/domain/flower"
	"github.com/kailas-cloud/flora/internal/domain/upload"
	"github.com/kailas-cloud/flora/internal/metrics"
	"github.com/kailas-cloud/flora/internal/transport/catalog"
)

// GenericSearchError is shown when a search fails without a catalog message.
const GenericSearchError = "Search failed"

// ErrSuperseded is returned by a search whose outcome was dropped because a
// later search started or the session closed.
var ErrSuperseded = errors.New("search superseded")

// State is a copy of the session state for rendering.
type State struct {
	Form       FormState
	Items      []flower.Item
	Loading    bool
	Searched   bool
	Error      string
	Selected   *flower.Item
	DetailOpen bool
	PreviewURL string
}

// Session is the per-browser search state: form, results, selection and the
// held query image preview. All methods are safe for concurrent use.
type Session struct {
	id        string
	searcher  Searcher
	previews  Previews
	validator *upload.Validator
	logger    *zap.Logger

	mu         sync.Mutex
	form       Form
	items      []flower.Item
	loading    bool
	searched   bool
	errMsg     string
	selected   *flower.Item
	detailOpen bool
	preview    Preview
	seq        uint64
	cancel     context.CancelFunc
	closed     bool
}

// New creates a session.
func New(id string, searcher Searcher, previews Previews, validator *upload.Validator, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:        id,
		searcher:  searcher,
		previews:  previews,
		validator: validator,
		logger:    logger.With(zap.String("session_id", id)),
		items:     []flower.Item{},
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// SubmitText searches with text and no file. In file mode the submission is
// ignored and nil is returned.
func (s *Session) SubmitText(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	if !s.form.submitText(text) {
		s.mu.Unlock()
		s.logger.Debug("Text submission ignored in file mode")
		return nil
	}
	s.mu.Unlock()

	return s.search(ctx, catalog.Request{Text: text})
}

// SelectFile validates the file and, when accepted, searches with that file only.
// A rejected file returns the *upload.ValidationError and never reaches the catalog.
func (s *Session) SelectFile(ctx context.Context, f *upload.File) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	if err := s.form.selectFile(s.validator, f); err != nil {
		s.mu.Unlock()
		var ve *upload.ValidationError
		if errors.As(err, &ve) {
			metrics.UploadRejectionsTotal.WithLabelValues(string(ve.Reason)).Inc()
		}
		return err
	}
	s.mu.Unlock()

	return s.search(ctx, catalog.Request{File: f})
}

// RejectFile records an upload rejected before it could be read, such as a
// request body over the transport limit. No search is made.
func (s *Session) RejectFile(ve *upload.ValidationError) {
	s.mu.Lock()
	s.form.err = ve.Message
	s.mu.Unlock()
	metrics.UploadRejectionsTotal.WithLabelValues(string(ve.Reason)).Inc()
}

// ClearForm resets the form, releases the preview and clears the error banner.
// Results and the selection are kept.
func (s *Session) ClearForm(ctx context.Context) {
	s.mu.Lock()
	s.form.reset()
	old := s.takePreviewLocked()
	s.errMsg = ""
	s.mu.Unlock()

	release(ctx, old)
}

// Select stores a copy of the item at index and opens the detail view.
func (s *Session) Select(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("select %d of %d: %w", index, len(s.items), domain.ErrItemNotFound)
	}
	item := s.items[index]
	s.selected = &item
	s.detailOpen = true
	return nil
}

// CloseDetail hides the detail view. The selection stays.
func (s *Session) CloseDetail() {
	s.mu.Lock()
	s.detailOpen = false
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Form:       s.form.state(),
		Items:      append([]flower.Item(nil), s.items...),
		Loading:    s.loading,
		Searched:   s.searched,
		Error:      s.errMsg,
		DetailOpen: s.detailOpen,
	}
	if s.selected != nil {
		sel := *s.selected
		st.Selected = &sel
	}
	if s.preview != nil {
		st.PreviewURL = s.preview.URL()
	}
	return st
}

// Close cancels an in-flight search and releases the preview. Further calls are no-ops.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.loading = false
	old := s.takePreviewLocked()
	s.mu.Unlock()

	release(ctx, old)
}

// search runs one catalog query. A newer search cancels this one and only
// the latest outcome is applied.
func (s *Session) search(ctx context.Context, req catalog.Request) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	s.seq++
	mySeq := s.seq
	if s.cancel != nil {
		s.cancel()
	}
	searchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loading = true
	s.searched = true
	s.errMsg = ""
	old := s.takePreviewLocked()
	s.mu.Unlock()

	// Preview store calls run outside mu. The previous preview is released
	// before the next one is acquired.
	release(ctx, old)
	if req.File != nil {
		if !s.installPreview(ctx, mySeq, req.File) {
			cancel()
			return ErrSuperseded
		}
	}

	items, err := s.searcher.Search(searchCtx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	cancel()

	if mySeq != s.seq {
		s.logger.Debug("Dropping stale search outcome", zap.Uint64("seq", mySeq))
		return ErrSuperseded
	}
	s.cancel = nil
	s.loading = false

	if err != nil {
		s.errMsg = errorMessage(err)
		return err
	}
	s.items = items
	return nil
}

// installPreview acquires a preview for f and stores it when search seq is
// still current. It reports false when the search was superseded meanwhile;
// the fresh handle is then released.
func (s *Session) installPreview(ctx context.Context, seq uint64, f *upload.File) bool {
	p, err := s.previews.Acquire(ctx, f)
	if err != nil {
		s.logger.Warn("Failed to store query image preview", zap.Error(err))
	}

	s.mu.Lock()
	current := seq == s.seq
	if current && p != nil {
		s.preview = p
	}
	s.mu.Unlock()

	if !current {
		release(ctx, p)
	}
	return current
}

// takePreviewLocked detaches the held preview. Caller holds mu and releases
// the returned handle after unlocking.
func (s *Session) takePreviewLocked() Preview {
	p := s.preview
	s.preview = nil
	return p
}

func release(ctx context.Context, p Preview) {
	if p != nil {
		p.Release(ctx)
	}
}

// errorMessage is the banner text for a failed search.
func errorMessage(err error) string {
	var apiErr *catalog.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return GenericSearchError
}
