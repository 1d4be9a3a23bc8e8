// Package catalog is the HTTP client for the flower catalog search API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/flora/internal/domain"
	"github.com/kailas-cloud/flora/internal/domain/flower"
	"github.com/kailas-cloud/flora/internal/domain/upload"
	"github.com/kailas-cloud/flora/internal/metrics"
)

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "http://localhost:8000"

const (
	searchPath     = "/flowers/search/"
	fieldText      = "q"
	fieldImage     = "q_img"
	maxErrorBody   = 64 << 10
)

// DefaultMaxResponseBytes caps a 2xx search body when Config.MaxResponseBytes is zero.
const DefaultMaxResponseBytes = 16 << 20

// Config holds the catalog client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	// MaxResponseBytes caps the success body. Larger bodies fail with ErrMalformedResponse.
	MaxResponseBytes int64
}

// Request is a search query. Text and File are both optional.
type Request struct {
	Text string
	File *upload.File
}

// Mode labels the request for metrics and logs.
func (r Request) Mode() string {
	if r.File != nil {
		return "image"
	}
	return "text"
}

// APIError is a non-2xx catalog response.
type APIError struct {
	StatusCode int
	Detail     string
}

// Error returns the server-provided detail, or a status-based message when absent.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *APIError) Unwrap() error { return domain.ErrCatalogRejected }

// Client talks to POST {base}/flowers/search/.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	maxBody int64
}

// New creates a catalog client. One trailing slash is stripped from the base URL.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimSuffix(base, "/")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}
	return &Client{baseURL: base, http: hc, logger: logger, maxBody: maxBody}
}

// Search posts the query and returns the result items.
// A 2xx body whose items field is missing or not an array yields zero items;
// otherwise one item is returned per array element.
func (c *Client) Search(ctx context.Context, req Request) ([]flower.Item, error) {
	body, contentType, err := encodeMultipart(req)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, body)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	metrics.CatalogRequestDuration.WithLabelValues(req.Mode()).Observe(time.Since(start).Seconds())
	if err != nil {
		c.fail("transport")
		return nil, fmt.Errorf("search request: %w: %w", domain.ErrCatalogUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.fail("status_" + statusClass(resp.StatusCode))
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: extractDetail(raw)}
		c.logger.Debug("Catalog rejected search",
			zap.Int("status", resp.StatusCode),
			zap.String("detail", apiErr.Detail),
		)
		return nil, apiErr
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		c.fail("read_body")
		return nil, fmt.Errorf("read search response: %w: %w", domain.ErrCatalogUnavailable, err)
	}
	if int64(len(raw)) > c.maxBody {
		c.fail("body_too_large")
		return nil, fmt.Errorf("search response larger than %d bytes: %w", c.maxBody, domain.ErrMalformedResponse)
	}

	items, err := decodeItems(raw)
	if err != nil {
		c.fail("malformed_body")
		return nil, err
	}

	metrics.CatalogRequestsTotal.WithLabelValues("success").Inc()
	metrics.CatalogResultsTotal.Add(float64(len(items)))
	return items, nil
}

// Ping checks that the catalog answers at all. Any status below 500 is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", http.NoBody)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping catalog: %w: %w", domain.ErrCatalogUnavailable, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("ping catalog: HTTP %d: %w", resp.StatusCode, domain.ErrCatalogUnavailable)
	}
	return nil
}

func (c *Client) fail(errorType string) {
	metrics.CatalogRequestsTotal.WithLabelValues("error").Inc()
	metrics.CatalogErrorsTotal.WithLabelValues(errorType).Inc()
}

func encodeMultipart(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if req.Text != "" {
		if err := w.WriteField(fieldText, req.Text); err != nil {
			return nil, "", fmt.Errorf("write %s: %w", fieldText, err)
		}
	}

	if req.File != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`,
			fieldImage, escapeQuotes(req.File.Name)))
		ct := req.File.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create %s part: %w", fieldImage, err)
		}
		if _, err := part.Write(req.File.Data); err != nil {
			return nil, "", fmt.Errorf("write %s: %w", fieldImage, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// decodeItems extracts the items array. Only a body that is not JSON is an error.
// Elements are decoded one by one so a badly typed field only blanks that field.
func decodeItems(raw []byte) ([]flower.Item, error) {
	var envelope struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// valid JSON, but not an object
			return []flower.Item{}, nil
		}
		return nil, fmt.Errorf("decode search response: %w: %w", domain.ErrMalformedResponse, err)
	}

	trimmed := bytes.TrimSpace(envelope.Items)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []flower.Item{}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return []flower.Item{}, nil
	}
	items := make([]flower.Item, len(elems))
	for i, elem := range elems {
		// on a type mismatch Unmarshal keeps every field it could decode
		_ = json.Unmarshal(elem, &items[i])
	}
	return items, nil
}

// extractDetail extracts a string "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if s, ok := parsed.Detail.(string); ok {
		return s
	}
	return ""
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
