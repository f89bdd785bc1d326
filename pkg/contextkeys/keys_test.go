package contextkeys

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetRequestID(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", GetRequestID(ctx))
}

func TestUserID(t *testing.T) {
	ctx := WithUserID(context.Background(), "alice")
	assert.Equal(t, "alice", GetUserID(ctx))
}

func TestRequestStartTime(t *testing.T) {
	assert.True(t, GetRequestStartTime(context.Background()).IsZero())

	now := time.Now()
	ctx := WithRequestStartTime(context.Background(), now)
	assert.Equal(t, now, GetRequestStartTime(ctx))
}

func TestKeysDoNotCollideWithStrings(t *testing.T) {
	ctx := context.WithValue(context.Background(), "request_id", "plain") //nolint:staticcheck
	assert.Equal(t, "", GetRequestID(ctx))
}
