package eventsource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
)

var errNotFound = errors.New("not found")

type staticSystems map[string]*models.MonitoredSystem

func (s staticSystems) GetSystem(_ context.Context, id string) (*models.MonitoredSystem, error) {
	sys, ok := s[id]
	if !ok {
		return nil, errNotFound
	}
	return sys, nil
}

func (s staticSystems) ListSystems(context.Context) ([]*models.MonitoredSystem, error) {
	out := []*models.MonitoredSystem{}
	for _, id := range []string{"native", "ext-1", "ext-2"} {
		if sys, ok := s[id]; ok {
			out = append(out, sys)
		}
	}
	return out, nil
}

type stubSource struct {
	EventSource
	name string
}

func testSystems() staticSystems {
	return staticSystems{
		"native": {ID: "native", EventSource: models.EventSourceNative},
		"ext-1":  {ID: "ext-1", EventSource: models.EventSourceExternal},
		"ext-2":  {ID: "ext-2", EventSource: models.EventSourceExternal},
	}
}

func TestResolver_ForSystem(t *testing.T) {
	native := &stubSource{name: "native"}
	r := NewResolverWithFactory(testSystems(), native, func(sys *models.MonitoredSystem) (EventSource, error) {
		return &stubSource{name: sys.ID}, nil
	})

	b, err := r.ForSystem(context.Background(), "native")
	require.NoError(t, err)
	assert.Same(t, native, b.Source)
	assert.Equal(t, "native", b.SystemID())

	b, err = r.ForSystem(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", b.Source.(*stubSource).name)

	_, err = r.ForSystem(context.Background(), "missing")
	assert.ErrorIs(t, err, errNotFound)
	assert.Same(t, native, r.Native())
}

func TestResolver_External(t *testing.T) {
	r := NewResolverWithFactory(testSystems(), &stubSource{}, func(sys *models.MonitoredSystem) (EventSource, error) {
		return &stubSource{name: sys.ID}, nil
	})

	bound, err := r.External(context.Background())
	require.NoError(t, err)
	require.Len(t, bound, 2)
	assert.Equal(t, "ext-1", bound[0].SystemID())
	assert.Equal(t, "ext-2", bound[1].SystemID())
}

func TestResolver_NoCluster(t *testing.T) {
	r := NewResolver(testSystems(), &stubSource{}, nil, newMemoryMetadata(), DefaultEsOptions())

	_, err := r.ForSystem(context.Background(), "ext-1")
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	_, err = r.External(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestResolver_UnknownKind(t *testing.T) {
	systems := staticSystems{"odd": {ID: "odd", EventSource: "clickhouse"}}
	r := NewResolverWithFactory(systems, &stubSource{}, nil)
	_, err := r.ForSystem(context.Background(), "odd")
	assert.Error(t, err)
}

func TestBound_AllSystems(t *testing.T) {
	assert.Equal(t, "", Bound{}.SystemID())
}
