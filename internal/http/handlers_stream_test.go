package httpx

import (
	"net/http"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	"github.com/gittidev/vibe-socket-test/internal/testutil"
)

func TestStream_DeliversCompletedResult(t *testing.T) {
	s := newTestStack(t, stackOptions{executor: &testutil.StubExecutor{Delay: 100 * time.Millisecond, Payload: "Blood Pressure: 120/80"}})
	conn := s.dial(t, "patientId=42")

	resp, _ := s.post(t, "42")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	res := readResult(t, conn, 1500*time.Millisecond)
	assert.Equal(t, model.CompletedResult("42", "Blood Pressure: 120/80"), res)
}

func TestStream_AllPatientsInSharedMode(t *testing.T) {
	s := newTestStack(t, stackOptions{executor: &testutil.StubExecutor{Payload: "ok"}})
	conn := s.dial(t, "")

	for _, id := range []string{"1", "2"} {
		resp, _ := s.post(t, id)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	seen := map[string]bool{}
	for range 2 {
		seen[readResult(t, conn, time.Second).SubjectKey] = true
	}
	assert.Equal(t, map[string]bool{"1": true, "2": true}, seen)
}

func TestStream_FiltersOtherPatients(t *testing.T) {
	s := newTestStack(t, stackOptions{executor: &testutil.StubExecutor{Payload: "ok"}})
	conn := s.dial(t, "patientId=42")

	resp, _ := s.post(t, "7")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp, _ = s.post(t, "42")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Equal(t, "42", readResult(t, conn, time.Second).SubjectKey)
}

func TestStream_PerSubjectRequiresPatientID(t *testing.T) {
	s := newTestStack(t, stackOptions{topics: model.NewTopics("", model.TopicModePerSubject)})

	_, resp, err := gws.DefaultDialer.Dial(s.wsURL(""), nil)
	require.ErrorIs(t, err, gws.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	conn := s.dial(t, "patientId=42")
	resp2, _ := s.post(t, "42")
	require.Equal(t, http.StatusAccepted, resp2.StatusCode)
	assert.Equal(t, "42", readResult(t, conn, 2*time.Second).SubjectKey)
}

func TestStream_UnavailableChannelFailsHandshake(t *testing.T) {
	s := newTestStack(t, stackOptions{})
	require.NoError(t, s.channel.Close())

	_, resp, err := gws.DefaultDialer.Dial(s.wsURL(""), nil)
	require.ErrorIs(t, err, gws.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 0, s.hub.Active())
}

func TestStream_DisconnectReleasesSubscription(t *testing.T) {
	s := newTestStack(t, stackOptions{})
	conn := s.dial(t, "")

	n, err := s.channel.SubscriberCount(t.Context(), model.DefaultChannel)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.NoError(t, conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, "")))
	require.Eventually(t, func() bool {
		n, err := s.channel.SubscriberCount(t.Context(), model.DefaultChannel)
		return err == nil && n == 0 && s.hub.Active() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_ShutdownSendsCloseFrame(t *testing.T) {
	s := newTestStack(t, stackOptions{})
	conn := s.dial(t, "")

	require.NoError(t, s.hub.Shutdown(t.Context()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, gws.IsCloseError(err, gws.CloseNormalClosure), "got %v", err)
}
