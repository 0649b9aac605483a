package requestid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttach_GeneratesWhenEmpty(t *testing.T) {
	ctx, id := Attach(context.Background(), "")
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}

func TestAttach_KeepsInboundID(t *testing.T) {
	ctx, id := Attach(context.Background(), "client-supplied")
	assert.Equal(t, "client-supplied", id)
	assert.Equal(t, "client-supplied", FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
}
