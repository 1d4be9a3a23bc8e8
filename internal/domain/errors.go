package domain

import "errors"

var (
	// ErrUnsupportedFileType signals an upload that is neither JPEG nor PNG.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileTooLarge signals an upload above the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrCatalogRejected signals a non-2xx response from the catalog API.
	ErrCatalogRejected = errors.New("catalog rejected request")
	// ErrCatalogUnavailable signals a transport failure talking to the catalog API.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrMalformedResponse signals a 2xx catalog response that is not JSON.
	ErrMalformedResponse = errors.New("malformed catalog response")

	// ErrPreviewNotFound signals a missing or released query image preview.
	ErrPreviewNotFound = errors.New("preview not found")
	// ErrSessionNotFound signals an unknown or expired session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrItemNotFound signals a result index outside the current result list.
	ErrItemNotFound = errors.New("item not found")
)
