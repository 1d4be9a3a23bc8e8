package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flora/internal/domain"
	"github.com/kailas-cloud/flora/internal/domain/flower"
	"github.com/kailas-cloud/flora/internal/domain/upload"
	logpkg "github.com/kailas-cloud/flora/internal/logger"
	"github.com/kailas-cloud/flora/internal/transport/catalog"
	healthuc "github.com/kailas-cloud/flora/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/flora/internal/usecase/session"
	"github.com/kailas-cloud/flora/internal/view"
)

const (
	fieldText  = "q"
	fieldImage = "q_img"

	// bodyOverhead covers multipart framing and the text field.
	bodyOverhead = 1 << 20
)

// PreviewOpener reads stored query image previews.
type PreviewOpener interface {
	Open(ctx context.Context, id string) (*upload.File, error)
}

// Options holds transport settings.
type Options struct {
	CookieName     string
	SecureCookie   bool
	AllowedOrigins []string
}

// errorHandler tries to handle a search error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the search page, its form actions and the JSON search API.
type Server struct {
	sessions      *sessionuc.Manager
	previews      PreviewOpener
	searcher      sessionuc.Searcher
	validator     *upload.Validator
	health        *healthuc.Service
	renderer      *view.Renderer
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP server.
func NewServer(
	sessions *sessionuc.Manager,
	previews PreviewOpener,
	searcher sessionuc.Searcher,
	validator *upload.Validator,
	health *healthuc.Service,
	renderer *view.Renderer,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "flora_session"
	}
	s := &Server{
		sessions:  sessions,
		previews:  previews,
		searcher:  searcher,
		validator: validator,
		health:    health,
		renderer:  renderer,
		opts:      opts,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		apiErrorHandler,
		sentinelHandler(domain.ErrCatalogUnavailable, http.StatusBadGateway),
		sentinelHandler(domain.ErrMalformedResponse, http.StatusBadGateway),
	}
	return s
}

// Routes registers all handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.Index)
	r.Post("/search", s.Search)
	r.Post("/clear", s.Clear)
	r.Post("/select/{index}", s.Select)
	r.Post("/detail/close", s.CloseDetail)
	r.Get("/previews/{id}", s.Preview)

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Post("/api/search", s.APISearch)
		r.Options("/api/search", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(view.Static()))))
}

// Index handles GET /.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.renderer.Page(w, view.NewPage(sess.Snapshot())); err != nil {
		logpkg.FromContext(r.Context(), s.logger).Error("Failed to render page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Search handles POST /search. A selected file wins over the text field.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	log := logpkg.FromContext(r.Context(), s.logger)

	form, err := s.readForm(w, r)
	switch {
	case errors.As(err, new(*http.MaxBytesError)):
		sess.RejectFile(s.validator.TooLarge())
	case err != nil:
		log.Debug("Unreadable search form", zap.Error(err))
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	case form.file != nil:
		err = sess.SelectFile(r.Context(), form.file)
	default:
		err = sess.SubmitText(r.Context(), form.text)
	}
	if err != nil {
		log.Debug("Search did not complete", zap.Error(err))
	}

	redirectHome(w, r)
}

// Clear handles POST /clear.
func (s *Server) Clear(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).ClearForm(r.Context())
	redirectHome(w, r)
}

// Select handles POST /select/{index}.
func (s *Server) Select(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}
	if err := s.session(w, r).Select(index); err != nil {
		// stale page; the redirect shows the current results
		logpkg.FromContext(r.Context(), s.logger).Debug("Select ignored", zap.Error(err))
	}
	redirectHome(w, r)
}

// CloseDetail handles POST /detail/close.
func (s *Server) CloseDetail(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).CloseDetail()
	redirectHome(w, r)
}

// Preview handles GET /previews/{id}.
func (s *Server) Preview(w http.ResponseWriter, r *http.Request) {
	f, err := s.previews.Open(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrPreviewNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logpkg.FromContext(r.Context(), s.logger).Error("Failed to open preview", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(f.Data)
}

type apiSearchResponse struct {
	Items []flower.Item `json:"items"`
}

type apiErrorResponse struct {
	Detail string `json:"detail"`
}

// APISearch handles POST /api/search. It forwards q and q_img as given
// and does not touch any session.
func (s *Server) APISearch(w http.ResponseWriter, r *http.Request) {
	form, err := s.readForm(w, r)
	if errors.As(err, new(*http.MaxBytesError)) {
		s.handleSearchError(w, r, s.validator.TooLarge())
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiErrorResponse{Detail: "Invalid multipart form"})
		return
	}
	if form.file != nil {
		if err := s.validator.ValidateFile(form.file); err != nil {
			s.handleSearchError(w, r, err)
			return
		}
	}

	items, err := s.searcher.Search(r.Context(), catalog.Request{Text: form.text, File: form.file})
	if err != nil {
		s.handleSearchError(w, r, err)
		return
	}
	if items == nil {
		items = []flower.Item{}
	}
	writeJSON(w, http.StatusOK, apiSearchResponse{Items: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// session returns the caller's session, issuing a cookie for a new one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *sessionuc.Session {
	var id string
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		id = c.Value
	}

	sess, created := s.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     s.opts.CookieName,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   s.opts.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

type searchForm struct {
	text string
	file *upload.File
}

// readForm streams the request form. The first q_img part with a file name
// is the upload. A part whose declared type is rejected is not read, and an
// accepted image is read one byte past the limit so validation rejects it.
func (s *Server) readForm(w http.ResponseWriter, r *http.Request) (searchForm, error) {
	limit := s.validator.MaxSize()
	r.Body = http.MaxBytesReader(w, r.Body, 2*limit+bodyOverhead)
	// drain the unread rest, up to the cap, before responding
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			return searchForm{}, fmt.Errorf("parse form: %w", err)
		}
		return searchForm{text: r.PostFormValue(fieldText)}, nil
	}
	if err != nil {
		return searchForm{}, fmt.Errorf("multipart reader: %w", err)
	}

	var form searchForm
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return form, fmt.Errorf("next part: %w", err)
		}

		switch {
		case p.FormName() == fieldText:
			b, err := io.ReadAll(p)
			if err != nil {
				return form, fmt.Errorf("read %s: %w", fieldText, err)
			}
			form.text = string(b)
		case p.FormName() == fieldImage && p.FileName() != "" && form.file == nil:
			f, err := s.readFile(p, limit)
			if err != nil {
				return form, err
			}
			form.file = f
			if s.validator.ValidateFile(f) != nil {
				// rejected either way; the remaining parts are not needed
				return form, nil
			}
		}
	}
}

func (s *Server) readFile(p *multipart.Part, limit int64) (*upload.File, error) {
	f := &upload.File{
		Name:        p.FileName(),
		ContentType: p.Header.Get("Content-Type"),
	}
	if s.validator.Validate(f.Name, f.ContentType, -1) != nil {
		return f, nil
	}

	data, err := io.ReadAll(io.LimitReader(p, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fieldImage, err)
	}
	f.Data = data
	return f, nil
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSearchError(w http.ResponseWriter, r *http.Request, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	logpkg.FromContext(r.Context(), s.logger).Error("Unhandled search error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, apiErrorResponse{Detail: sessionuc.GenericSearchError})
}

func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *upload.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, apiErrorResponse{Detail: ve.Message})
	return true
}

// apiErrorHandler relays the catalog status and message.
func apiErrorHandler(w http.ResponseWriter, err error) bool {
	var apiErr *catalog.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	writeJSON(w, apiErr.StatusCode, apiErrorResponse{Detail: apiErr.Error()})
	return true
}

func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeJSON(w, status, apiErrorResponse{Detail: sessionuc.GenericSearchError})
		return true
	}
}
