// Package testutil provides shared helpers for tests: broker fixtures, infra skips and
// small fakes used across packages.
package testutil

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// TestingTB is an interface that covers both *testing.T and *testing.B.
type TestingTB interface {
	Helper()
	Skip(args ...interface{})
	Skipf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
	Cleanup(func())
}

// getEnvOrDefault returns environment variable value or default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envBool parses common truthy values from env vars.
func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }
func requireKafka() bool { return envBool("TEST_REQUIRE_KAFKA") || envBool("TEST_REQUIRE_INFRA") }

// Redis test utilities

// NewMiniRedis starts an in-process Redis server and returns it with a connected client.
// Both are released when the test finishes.
func NewMiniRedis(t TestingTB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil && !strings.Contains(cerr.Error(), "closed") {
			t.Logf("warning: failed to close redis client: %v", cerr)
		}
		mr.Close()
	})
	return mr, client
}

// GetTestRedisAddr returns the Redis address for tests that need a real server.
// REDIS_ADDR wins; otherwise common local and CI addresses are probed.
func GetTestRedisAddr(t TestingTB) (string, bool) {
	t.Helper()

	if ciAddr := os.Getenv("REDIS_ADDR"); ciAddr != "" {
		return testRedisConnection(t, ciAddr)
	}

	for _, candidate := range []string{"redis:6379", "localhost:6379"} {
		if addr, ok := testRedisConnection(t, candidate); ok {
			return addr, true
		}
	}
	return testRedisConnection(t, "localhost:56379")
}

func testRedisConnection(t TestingTB, addr string) (string, bool) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() {
		if err := client.Close(); err != nil {
			t.Logf("warning: failed to close redis client: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("Redis not available at %s: %v", addr, err)
		return addr, false
	}
	return addr, true
}

// SetupTestRedis connects to a real Redis server. The test is skipped when none is
// reachable unless TEST_REQUIRE_REDIS or TEST_REQUIRE_INFRA is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, ok := GetTestRedisAddr(t)
	if !ok {
		if requireRedis() {
			t.Fatal("Redis not available for testing")
		}
		t.Skip("Redis not available for testing")
	}

	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			db = i
		}
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	t.Cleanup(func() {
		if err := client.Close(); err != nil && !strings.Contains(err.Error(), "closed") {
			t.Logf("warning: failed to close redis client: %v", err)
		}
	})
	return client
}

// Kafka test utilities

// KafkaBrokers returns the brokers listed in TEST_KAFKA_BROKERS. The test is skipped
// when the variable is unset unless TEST_REQUIRE_KAFKA or TEST_REQUIRE_INFRA is set.
func KafkaBrokers(t TestingTB) []string {
	t.Helper()

	raw := getEnvOrDefault("TEST_KAFKA_BROKERS", "")
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		if requireKafka() {
			t.Fatal("TEST_KAFKA_BROKERS must be set when Kafka is required")
		}
		t.Skip("Kafka not available for testing (set TEST_KAFKA_BROKERS)")
	}
	return brokers
}

// FixedTimeFunc returns a function that always returns the same time.
func FixedTimeFunc(t time.Time) func() time.Time {
	return func() time.Time {
		return t
	}
}

// TestTime returns a fixed time for testing.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}
