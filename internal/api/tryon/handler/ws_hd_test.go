package tryonHandler

import (
	"net"
	"testing"
	"time"

	"OpticalFactory/internal/api/tryon"
	"OpticalFactory/pkg/handlerUtil"
	"OpticalFactory/pkg/pose/posetest"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTryOn(t *testing.T, s *testServer) *websocket.Conn {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.app.Listener(ln) }()
	t.Cleanup(func() { _ = s.app.Shutdown() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/face/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, jsoniter.Unmarshal(data, v), string(data))
}

func TestWebSocket_Session(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	conn := dialTryOn(t, s)

	payload, err := jsoniter.Marshal(poseRequest(posetest.FrontalFace()))
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	var fresh tryon.FaceAnalysisResponse
	readJSON(t, conn, &fresh)
	assert.True(t, fresh.Success)
	assert.Equal(t, "tracking", fresh.State)
	require.NotEmpty(t, fresh.SessionID)
	assert.Equal(t, 1, s.service.ActiveSessions())

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("no-face")))
	var recovered tryon.FaceAnalysisResponse
	readJSON(t, conn, &recovered)
	assert.True(t, recovered.Recovered)
	assert.Equal(t, fresh.SessionID, recovered.SessionID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var bad handlerUtil.ErrorResponse
	readJSON(t, conn, &bad)
	assert.Equal(t, "BAD_REQUEST", bad.Code)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("jpeg-bytes")))
	var again tryon.FaceAnalysisResponse
	readJSON(t, conn, &again)
	assert.False(t, again.Recovered)
	assert.Equal(t, fresh.SessionID, again.SessionID)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return s.service.ActiveSessions() == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	resp, _ := s.do(t, jsonRequest(t, "GET", "/api/v1/face/ws", "", nil))
	assert.Equal(t, 426, resp.StatusCode)
}
