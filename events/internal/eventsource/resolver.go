package eventsource

import (
	"context"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

// SystemLookup reads monitored systems.
type SystemLookup interface {
	GetSystem(ctx context.Context, id string) (*models.MonitoredSystem, error)
	ListSystems(ctx context.Context) ([]*models.MonitoredSystem, error)
}

// Bound pairs a source with the system it serves. System is nil for the
// native source when it addresses every native system at once.
type Bound struct {
	System *models.MonitoredSystem
	Source EventSource
}

// SystemID returns the bound system id, or "" for the all-systems binding.
func (b Bound) SystemID() string {
	if b.System == nil {
		return ""
	}
	return b.System.ID
}

// Resolver maps systems to their EventSource.
type Resolver struct {
	systems  SystemLookup
	native   EventSource
	external func(*models.MonitoredSystem) (EventSource, error)
}

// NewResolver wires the native source and, when client is non-nil, external
// sources created on demand for external-search-backed systems.
func NewResolver(systems SystemLookup, native EventSource, client *opensearch.Client, meta MetadataStore, opts EsOptions) *Resolver {
	return &Resolver{
		systems: systems,
		native:  native,
		external: func(sys *models.MonitoredSystem) (EventSource, error) {
			if client == nil {
				return nil, ErrBackendUnavailable
			}
			return NewEsEventSource(client, sys, meta, opts)
		},
	}
}

// NewResolverWithFactory is NewResolver with a custom external source factory.
func NewResolverWithFactory(systems SystemLookup, native EventSource, external func(*models.MonitoredSystem) (EventSource, error)) *Resolver {
	return &Resolver{systems: systems, native: native, external: external}
}

// Native returns the native source, unbound to any system.
func (r *Resolver) Native() EventSource {
	return r.native
}

// ForSystem looks the system up and returns the source backing it.
func (r *Resolver) ForSystem(ctx context.Context, systemID string) (Bound, error) {
	sys, err := r.systems.GetSystem(ctx, systemID)
	if err != nil {
		return Bound{}, err
	}
	src, err := r.sourceFor(sys)
	if err != nil {
		return Bound{}, err
	}
	return Bound{System: sys, Source: src}, nil
}

func (r *Resolver) sourceFor(sys *models.MonitoredSystem) (EventSource, error) {
	switch sys.EventSource {
	case models.EventSourceExternal:
		src, err := r.external(sys)
		if err != nil {
			return nil, fmt.Errorf("system %s: %w", sys.ID, err)
		}
		return src, nil
	case models.EventSourceNative, "":
		return r.native, nil
	default:
		return nil, fmt.Errorf("system %s: unknown event source %q", sys.ID, sys.EventSource)
	}
}

// External returns one binding per external-search-backed system.
func (r *Resolver) External(ctx context.Context) ([]Bound, error) {
	systems, err := r.systems.ListSystems(ctx)
	if err != nil {
		return nil, err
	}

	var bound []Bound
	for _, sys := range systems {
		if sys.EventSource != models.EventSourceExternal {
			continue
		}
		src, err := r.sourceFor(sys)
		if err != nil {
			return nil, err
		}
		bound = append(bound, Bound{System: sys, Source: src})
	}
	return bound, nil
}
