package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "y"} {
		t.Setenv("TESTUTIL_FLAG", v)
		assert.True(t, envBool("TESTUTIL_FLAG"), v)
	}
	t.Setenv("TESTUTIL_FLAG", "no")
	assert.False(t, envBool("TESTUTIL_FLAG"))
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TESTUTIL_VALUE", "")
	assert.Equal(t, "fallback", getEnvOrDefault("TESTUTIL_VALUE", "fallback"))
	t.Setenv("TESTUTIL_VALUE", "set")
	assert.Equal(t, "set", getEnvOrDefault("TESTUTIL_VALUE", "fallback"))
}

func TestNewMiniRedis(t *testing.T) {
	_, client := NewMiniRedis(t)
	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestStubExecutor(t *testing.T) {
	ex := &StubExecutor{Payload: "ok"}
	out, err := ex.Execute(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	failing := &StubExecutor{Err: errors.New("boom")}
	_, err = failing.Execute(context.Background(), "p2")
	require.EqualError(t, err, "boom")

	slow := &StubExecutor{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Execute(ctx, "p3")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, []string{"p3"}, slow.Calls())
}
