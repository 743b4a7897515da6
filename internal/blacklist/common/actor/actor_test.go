package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithID_RoundTrip(t *testing.T) {
	ctx := WithID(context.Background(), "integration-1")
	assert.Equal(t, "integration-1", ID(ctx))
}

func TestWithID_InnerOverridesOuter(t *testing.T) {
	ctx := WithID(context.Background(), "user-1")
	ctx = WithID(ctx, "integration-1")
	assert.Equal(t, "integration-1", ID(ctx))
}

func TestID_Unset(t *testing.T) {
	assert.Equal(t, "", ID(context.Background()))
}
