package statsd

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  vibe.socket  ": "vibe.socket",
		"..foo..":         "foo",
		".":               "",
		"":                "",
	}
	for input, want := range tests {
		assert.Equal(t, want, sanitizePrefix(input), input)
	}
}

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" job/transition ": "job_transition",
		"relay..active":    "relay.active",
		"multi  space":     "multi__space",
		"   ":              "",
	}
	for input, want := range tests {
		assert.Equal(t, want, normalizeMetricName(input), input)
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " vibe-socket "}
	local := map[string]string{"result": " success ", "": "ignored", "env": "stage"}

	assert.Equal(t, "|#env:stage,result:success,service:vibe-socket", formatTags(global, local))
	assert.Empty(t, formatTags(nil, nil))
}

func TestClient_Line(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "vibe", globalTags: map[string]string{"env": "test"}}
	assert.Equal(t, "vibe.job.transition:1|c|#env:test,result:success",
		c.line("job.transition", "1", "c", map[string]string{"result": "success"}))
	assert.Empty(t, c.line(" ", "1", "c", nil))
}

func TestClient_DisabledIsNoop(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:8125"})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	c.Count("job.transition", 1, nil)
	require.NoError(t, c.Close())

	var nilClient *Client
	nilClient.Gauge("relay.active", 1, nil)
	assert.False(t, nilClient.Enabled())
	require.NoError(t, nilClient.Close())
}

func TestClient_WritesDatagrams(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     "vibe",
		GlobalTags: map[string]string{"env": "test"},
	})
	require.NoError(t, err)
	defer c.Close()
	require.True(t, c.Enabled())

	c.Timing("job.duration", 1500*time.Microsecond, map[string]string{"result": "success"})

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	line := string(buf[:n])
	assert.True(t, strings.HasPrefix(line, "vibe.job.duration:1.5|ms"), line)
	assert.Contains(t, line, "|#env:test,result:success")
}

func TestRecorder_Find(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.Count("job.transition", 1, map[string]string{"transition": "queued"})
	r.Count("job.transition", 1, map[string]string{"transition": "completed"})
	r.Gauge("relay.active", 2, nil)

	assert.Len(t, r.Points(), 3)
	assert.Len(t, r.Find("job.transition", map[string]string{"transition": "completed"}), 1)
	assert.Len(t, r.Find("relay.active", nil), 1)
}
