package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/gittidev/vibe-socket-test/internal/adapters/jobrunner"
	"github.com/gittidev/vibe-socket-test/internal/adapters/memory"
	"github.com/gittidev/vibe-socket-test/internal/adapters/websocket"
	"github.com/gittidev/vibe-socket-test/internal/domain/alert"
	"github.com/gittidev/vibe-socket-test/internal/domain/job"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	"github.com/gittidev/vibe-socket-test/internal/domain/patient"
	"github.com/gittidev/vibe-socket-test/internal/service"
	"github.com/gittidev/vibe-socket-test/internal/testutil"
)

type stackOptions struct {
	executor    *testutil.StubExecutor
	topics      model.Topics
	origins     []string
	submitLimit RateLimitConfig
}

type testStack struct {
	server   *httptest.Server
	channel  *memory.Channel
	runner   *jobrunner.Runner
	hub      *service.RelayHub
	registry *job.Registry
	rules    *alert.RuleStore
}

func newTestStack(t *testing.T, opts stackOptions) *testStack {
	t.Helper()

	exec := opts.executor
	if exec == nil {
		exec = &testutil.StubExecutor{Delay: 50 * time.Millisecond, Payload: jobrunner.DefaultVitalsPayload}
	}
	if opts.topics.Channel == "" {
		opts.topics = model.NewTopics("", opts.topics.Mode)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := &testStack{
		channel:  memory.New(memory.Options{}),
		registry: job.NewRegistry(),
		rules:    alert.NewRuleStore(alert.DefaultThresholds()),
	}
	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Channel:  s.channel,
		Executor: exec,
		Registry: s.registry,
		Topics:   opts.topics,
		Logger:   logger,
	})
	require.NoError(t, err)
	s.runner = runner

	hub, err := service.NewRelayHub(service.RelayHubOptions{
		Channel:      s.channel,
		Topics:       opts.topics,
		PollInterval: 10 * time.Millisecond,
		Logger:       logger,
	})
	require.NoError(t, err)
	s.hub = hub

	alerts, err := service.NewAlertRuleService(s.rules, logger)
	require.NoError(t, err)
	roster, err := patient.LoadRoster("")
	require.NoError(t, err)

	s.server = httptest.NewServer(NewRouter(RouterServices{
		Jobs:           service.MustNewJobService(service.JobServiceOptions{Submitter: runner, Registry: s.registry, Logger: logger}),
		Hub:            hub,
		Upgrader:       websocket.NewUpgrader(websocket.UpgraderOptions{AllowedOrigins: opts.origins}),
		Alerts:         alerts,
		Patients:       roster,
		Ready:          s.channel,
		AllowedOrigins: opts.origins,
		SubmitLimit:    opts.submitLimit,
		Logger:         logger,
	}))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = runner.Stop(ctx)
		_ = hub.Shutdown(ctx)
		s.server.Close()
		_ = s.channel.Close()
	})
	return s
}

func (s *testStack) wsURL(query string) string {
	return s.wsPathURL("/ws", query)
}

func (s *testStack) wsPathURL(path, query string) string {
	u := "ws" + strings.TrimPrefix(s.server.URL, "http") + path
	if query != "" {
		u += "?" + query
	}
	return u
}

func (s *testStack) dial(t *testing.T, query string) *gws.Conn {
	t.Helper()
	return s.dialPath(t, "/ws", query)
}

func (s *testStack) dialPath(t *testing.T, path, query string) *gws.Conn {
	t.Helper()
	conn, resp, err := gws.DefaultDialer.Dial(s.wsPathURL(path, query), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return s.hub.Active() > 0 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func (s *testStack) post(t *testing.T, patientID string) (*http.Response, SubmitResponse) {
	t.Helper()
	resp, err := http.Post(s.server.URL+"/api/process-patient/"+patientID, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body SubmitResponse
	if resp.Header.Get("Content-Type") == "application/json" {
		_ = json.NewDecoder(resp.Body).Decode(&body)
	}
	return resp, body
}

func readResult(t *testing.T, conn *gws.Conn, wait time.Duration) model.JobResult {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	kind, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, gws.TextMessage, kind)
	res, err := model.DecodeJobResult(payload)
	require.NoError(t, err)
	return res
}

// do sends a JSON request and decodes the JSON response into out when non-nil.
func (s *testStack) do(t *testing.T, method, path, body string, out any) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, s.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}
