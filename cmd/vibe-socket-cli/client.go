package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/gittidev/vibe-socket-test/internal/domain/model"
)

type submitResponse struct {
	Accepted  bool   `json:"accepted"`
	Message   string `json:"message"`
	PatientID string `json:"patientId"`
	JobID     string `json:"jobId"`
}

type statusResponse struct {
	PatientID string     `json:"patientId"`
	Running   bool       `json:"running"`
	JobID     string     `json:"jobId"`
	StartedAt *time.Time `json:"startedAt"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type apiClient struct {
	base   *url.URL
	http   *http.Client
	dialer *gws.Dialer
}

func newAPIClient(server string, timeout time.Duration) (*apiClient, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(server), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", server)
	}
	return &apiClient{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		dialer: &gws.Dialer{HandshakeTimeout: timeout},
	}, nil
}

func (c *apiClient) jobURL(patientID string) string {
	return c.base.JoinPath("api", "process-patient", patientID).String()
}

func (c *apiClient) streamURL(patientID string) string {
	u := *c.base.JoinPath("ws")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	if patientID != "" {
		u.RawQuery = url.Values{"patientId": {patientID}}.Encode()
	}
	return u.String()
}

func (c *apiClient) submit(ctx context.Context, patientID string) (submitResponse, error) {
	var out submitResponse
	err := c.do(ctx, http.MethodPost, c.jobURL(patientID), &out, http.StatusAccepted)
	return out, err
}

func (c *apiClient) status(ctx context.Context, patientID string) (statusResponse, error) {
	var out statusResponse
	err := c.do(ctx, http.MethodGet, c.jobURL(patientID), &out, http.StatusOK)
	return out, err
}

func (c *apiClient) patients(ctx context.Context) ([]model.Patient, error) {
	var out []model.Patient
	err := c.do(ctx, http.MethodGet, c.base.JoinPath("api", "patients").String(), &out, http.StatusOK)
	return out, err
}

func (c *apiClient) do(ctx context.Context, method, target string, out any, want int) error {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return responseError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func responseError(status int, body []byte) error {
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return fmt.Errorf("server returned %d: %s", status, e.Message)
	}
	var s submitResponse
	if json.Unmarshal(body, &s) == nil && s.Message != "" {
		return fmt.Errorf("server returned %d: %s", status, s.Message)
	}
	return fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
}

// stream is an open result subscription.
type stream struct {
	conn      *gws.Conn
	closeOnce sync.Once
	closeErr  error
}

func (c *apiClient) openStream(ctx context.Context, patientID string) (*stream, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.streamURL(patientID), nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
			return nil, responseError(resp.StatusCode, body)
		}
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return &stream{conn: conn}, nil
}

var errStreamClosed = errors.New("stream closed by server")

// next blocks until a result arrives or the deadline passes. A zero deadline waits
// indefinitely.
func (s *stream) next(deadline time.Time) (model.JobResult, error) {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return model.JobResult{}, err
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
			return model.JobResult{}, errStreamClosed
		}
		return model.JobResult{}, err
	}
	return model.DecodeJobResult(data)
}

func (s *stream) close() error {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""), deadline)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
