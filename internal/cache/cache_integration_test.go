//go:build integration

package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tinote/tinote/internal/model"
)

var testCache *Cache

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() {
			_ = container.Terminate(ctx)
		}()

		host, err := container.Host(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
			return 1
		}
		port, err := container.MappedPort(ctx, "6379")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
			return 1
		}

		testCache, err = New(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to redis: %v\n", err)
			return 1
		}
		defer testCache.Close()

		return m.Run()
	}()

	os.Exit(code)
}

func TestAuthContext_RoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	auth := &model.AuthContext{
		KeyID:         "key-1",
		KeyPrefix:     "abc123",
		UserID:        "user-1",
		Scopes:        model.StudentScopes,
		RateLimitTier: model.TierStandard,
	}

	got, err := testCache.GetAuthContext(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, testCache.SetAuthContext(ctx, "ck-1", auth))
	require.NoError(t, testCache.SetAuthContext(ctx, "ck-2", auth))

	got, err = testCache.GetAuthContext(ctx, "ck-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, auth.UserID, got.UserID)
	assert.Equal(t, auth.Scopes, got.Scopes)

	require.NoError(t, testCache.InvalidateUserAuthContexts(ctx, "user-1"))

	for _, key := range []string{"ck-1", "ck-2"} {
		got, err = testCache.GetAuthContext(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got, key)
	}
}

func TestAuthContext_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testCache.Client().Set(ctx, authCachePrefix+"bad", "{not json", time.Minute).Err())

	got, err := testCache.GetAuthContext(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoginRateLimit_Burst(t *testing.T) {
	ctx := context.Background()
	ip := fmt.Sprintf("10.0.0.%d", time.Now().UnixNano()%250)
	require.NoError(t, testCache.Client().Del(ctx, rateLimitLoginPrefix+hashIP(ip)).Err())

	for i := 0; i < 3; i++ {
		result, err := testCache.CheckLoginRateLimit(ctx, ip, 1, 3)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "attempt %d", i)
	}

	result, err := testCache.CheckLoginRateLimit(ctx, ip, 1, 3)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Second, result.RetryAfter)
}

func TestRateLimit_FailsOpenWithError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	c := NewFromClient(client)
	defer c.Close()

	result, err := c.CheckKeyRateLimit(context.Background(), "key", 60, 10)
	assert.Error(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Allowed)
}
