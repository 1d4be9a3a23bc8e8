package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/flora/internal/domain"
	"github.com/kailas-cloud/flora/internal/domain/upload"
)

type capturedRequest struct {
	method      string
	path        string
	fields      map[string]string
	fileName    string
	fileType    string
	fileData    string
	hasFilePart bool
}

func newCatalogServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.method = r.Method
			captured.path = r.URL.Path
			captured.fields = map[string]string{}
			if err := r.ParseMultipartForm(8 << 20); err == nil {
				for k, v := range r.MultipartForm.Value {
					captured.fields[k] = v[0]
				}
				if fhs := r.MultipartForm.File["q_img"]; len(fhs) > 0 {
					captured.hasFilePart = true
					captured.fileName = fhs[0].Filename
					captured.fileType = fhs[0].Header.Get("Content-Type")
					f, _ := fhs[0].Open()
					data, _ := io.ReadAll(f)
					_ = f.Close()
					captured.fileData = string(data)
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
	if c.maxBody != DefaultMaxResponseBytes {
		t.Errorf("maxBody = %d, want %d", c.maxBody, DefaultMaxResponseBytes)
	}
}

func TestSearch_TrailingSlashBase(t *testing.T) {
	var got capturedRequest
	srv := newCatalogServer(t, http.StatusOK, `{"items":[]}`, &got)

	if _, err := New(Config{BaseURL: srv.URL + "/"}).Search(context.Background(), Request{Text: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.path != "/flowers/search/" {
		t.Errorf("path = %q, want /flowers/search/", got.path)
	}
}

func TestSearch_TextOnly(t *testing.T) {
	var got capturedRequest
	srv := newCatalogServer(t, http.StatusOK,
		`{"items":[{"common_name":"Rose","botanical_name":"Rosa","image1_url":"http://img/1.jpg"}]}`, &got)

	items, err := New(Config{BaseURL: srv.URL + "/"}).Search(context.Background(), Request{Text: "red"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.method != http.MethodPost || got.path != "/flowers/search/" {
		t.Errorf("request = %s %s, want POST /flowers/search/", got.method, got.path)
	}
	if got.fields["q"] != "red" {
		t.Errorf("q = %q, want red", got.fields["q"])
	}
	if got.hasFilePart {
		t.Error("expected no q_img part for a text search")
	}
	if len(items) != 1 || items[0].CommonName != "Rose" || items[0].Image1URL != "http://img/1.jpg" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestSearch_FileOnly(t *testing.T) {
	var got capturedRequest
	srv := newCatalogServer(t, http.StatusOK, `{"items":[]}`, &got)

	file := &upload.File{Name: "tulip.png", ContentType: "image/png", Data: []byte("\x89PNGdata")}
	items, err := New(Config{BaseURL: srv.URL}).Search(context.Background(), Request{File: file})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected zero items, got %d", len(items))
	}

	if _, ok := got.fields["q"]; ok {
		t.Error("expected no q field when the query text is empty")
	}
	if !got.hasFilePart {
		t.Fatal("expected a q_img part")
	}
	if got.fileName != "tulip.png" || got.fileType != "image/png" || got.fileData != "\x89PNGdata" {
		t.Errorf("unexpected file part: name=%q type=%q data=%q", got.fileName, got.fileType, got.fileData)
	}
}

func TestSearch_TextAndFile(t *testing.T) {
	var got capturedRequest
	srv := newCatalogServer(t, http.StatusOK, `{"items":[]}`, &got)

	file := &upload.File{Name: "a.jpg", ContentType: "image/jpeg", Data: []byte("jpg")}
	if _, err := New(Config{BaseURL: srv.URL}).Search(context.Background(), Request{Text: "lily", File: file}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.fields["q"] != "lily" || !got.hasFilePart {
		t.Errorf("expected both q and q_img, got fields=%v file=%v", got.fields, got.hasFilePart)
	}
}

func TestSearch_NonOKWithDetail(t *testing.T) {
	srv := newCatalogServer(t, http.StatusBadRequest, `{"detail":"Query too long"}`, nil)

	_, err := New(Config{BaseURL: srv.URL}).Search(context.Background(), Request{Text: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "Query too long" {
		t.Errorf("message = %q, want server detail", err.Error())
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected *APIError with status 400, got %T %v", err, err)
	}
	if !errors.Is(err, domain.ErrCatalogRejected) {
		t.Error("expected ErrCatalogRejected")
	}
}

func TestSearch_NonOKFallbackMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"html body", "<html>oops</html>"},
		{"non-string detail", `{"detail":[{"loc":["q"]}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newCatalogServer(t, http.StatusInternalServerError, tc.body, nil)
			_, err := New(Config{BaseURL: srv.URL}).Search(context.Background(), Request{Text: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != "HTTP 500" {
				t.Errorf("message = %q, want HTTP 500", err.Error())
			}
		})
	}
}

func TestSearch_LenientItems(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing items", `{"total":3}`},
		{"null items", `{"items":null}`},
		{"object items", `{"items":{"a":1}}`},
		{"string items", `{"items":"nope"}`},
		{"top-level array", `[1,2]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newCatalogServer(t, http.StatusOK, tc.body, nil)
			items, err := New(Config{BaseURL: srv.URL}).Search(context.Background(), Request{Text: "x"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if items == nil || len(items) != 0 {
				t.Errorf("expected empty non-nil slice, got %#v", items)
			}
		})
	}
}

func TestSearch_OneItemPerElement(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"badly typed field", `{"items":[{"common_name":"Rose"},{"common_name":"Iris","family":7}]}`, []string{"Rose", "Iris"}},
		{"non-object elements", `{"items":[1,"x",null]}`, []string{"", "", ""}},
		{"mixed", `{"items":[{"common_name":"Lily","image1_url":["a"]},true]}`, []string{"Lily", ""}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newCatalogServer(t, http.StatusOK, tc.body, nil)
			items, err := New(Config{BaseURL: srv.URL}).Search(context.Background(), Request{Text: "x"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != len(tc.want) {
				t.Fatalf("expected %d items, got %d", len(tc.want), len(items))
			}
			for i, name := range tc.want {
				if items[i].CommonName != name {
					t.Errorf("items[%d].CommonName = %q, want %q", i, items[i].CommonName, name)
				}
			}
		})
	}
}

func TestSearch_ResponseTooLarge(t *testing.T) {
	srv := newCatalogServer(t, http.StatusOK, `{"items":[{"common_name":"Rose"}]}`, nil)

	_, err := New(Config{BaseURL: srv.URL, MaxResponseBytes: 16}).Search(context.Background(), Request{Text: "x"})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if !strings.Contains(err.Error(), "larger than 16 bytes") {
		t.Errorf("expected size in error, got %q", err.Error())
	}
}

func TestSearch_ResponseAtLimit(t *testing.T) {
	body := `{"items":[{}]}`
	srv := newCatalogServer(t, http.StatusOK, body, nil)

	items, err := New(Config{BaseURL: srv.URL, MaxResponseBytes: int64(len(body))}).
		Search(context.Background(), Request{Text: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestSearch_MalformedBody(t *testing.T) {
	srv := newCatalogServer(t, http.StatusOK, "not json at all", nil)

	_, err := New(Config{BaseURL: srv.URL}).Search(context.Background(), Request{Text: "x"})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestSearch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := New(Config{BaseURL: base, Timeout: time.Second}).Search(context.Background(), Request{Text: "x"})
	if !errors.Is(err, domain.ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("network failure must not produce an APIError")
	}
}

func TestSearch_ContextCanceled(t *testing.T) {
	srv := newCatalogServer(t, http.StatusOK, `{"items":[]}`, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{BaseURL: srv.URL}).Search(ctx, Request{Text: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPing(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusNotFound, false},
		{http.StatusServiceUnavailable, true},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := newCatalogServer(t, tc.status, "", nil)
			err := New(Config{BaseURL: srv.URL}).Ping(context.Background())
			if (err != nil) != tc.wantErr {
				t.Errorf("Ping() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestExtractDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"bad image"}`, "bad image"},
		{`{"detail":42}`, ""},
		{`{}`, ""},
		{`garbage`, ""},
	}
	for _, tc := range tests {
		if got := extractDetail([]byte(tc.body)); got != tc.want {
			t.Errorf("extractDetail(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestRequest_Mode(t *testing.T) {
	if m := (Request{Text: "x"}).Mode(); m != "text" {
		t.Errorf("Mode() = %q, want text", m)
	}
	if m := (Request{File: &upload.File{}}).Mode(); !strings.EqualFold(m, "image") {
		t.Errorf("Mode() = %q, want image", m)
	}
}
