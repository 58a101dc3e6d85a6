package health

import "context"

// Pinger checks session store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an embedding or language model provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
