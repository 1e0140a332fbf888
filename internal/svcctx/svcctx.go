// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/redlinehq/redline/internal/process"
	"github.com/redlinehq/redline/internal/store"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Facade  *process.Facade
	Content store.ContentStore
	Logger  *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// FacadeFrom extracts the processing facade from context.
func FacadeFrom(ctx context.Context) *process.Facade {
	if s := ServicesFrom(ctx); s != nil {
		return s.Facade
	}
	return nil
}

// ContentFrom extracts the content store from context.
func ContentFrom(ctx context.Context) store.ContentStore {
	if s := ServicesFrom(ctx); s != nil {
		return s.Content
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
