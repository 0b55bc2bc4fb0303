package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), SubjectAuditRecorded, []byte("x")))
	assert.False(t, p.IsConnected())
	assert.NoError(t, p.Close())
}
