package health

import "context"

// StorePinger checks preview store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// CatalogPinger checks catalog API reachability.
type CatalogPinger interface {
	Ping(ctx context.Context) error
}
