package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlend(t *testing.T) {
	assert.InDelta(t, 0.55, Blend(DefaultMetaWeight, 0.4, 0.9), 1e-9)
	assert.InDelta(t, 0.0, Blend(DefaultMetaWeight, 0, 0), 1e-9)
	assert.InDelta(t, 0.3, Blend(DefaultMetaWeight, 0, 1), 1e-9)
}

func TestEventSourceKind_Valid(t *testing.T) {
	assert.True(t, EventSourceNative.Valid())
	assert.True(t, EventSourceExternal.Valid())
	assert.False(t, EventSourceKind("mongo").Valid())
}

func TestExternalConfig_WithDefaults(t *testing.T) {
	cfg := ExternalConfig{IndexPattern: "logs-*", MessageField: "msg"}.WithDefaults()
	assert.Equal(t, "@timestamp", cfg.TimestampField)
	assert.Equal(t, "msg", cfg.MessageField)
	assert.Equal(t, "host.name", cfg.HostField)
}

func TestCriterionIDs(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, CriterionIDs())
}

func TestFlipResult_Merge(t *testing.T) {
	r := &FlipResult{Count: 1, Messages: []string{"a"}}
	r.Merge(&FlipResult{Count: 2, EventIDs: []string{"x"}, Messages: []string{"b", "c"}}, 2)
	r.Merge(nil, 2)

	assert.Equal(t, int64(3), r.Count)
	assert.Equal(t, []string{"x"}, r.EventIDs)
	assert.Equal(t, []string{"a", "b"}, r.Messages)
}

func TestEventFilter_Offset(t *testing.T) {
	assert.Equal(t, 0, (&EventFilter{Page: 0, Limit: 50}).Offset())
	assert.Equal(t, 100, (&EventFilter{Page: 3, Limit: 50}).Offset())
}
