package tryonHandler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"OpticalFactory/internal/api/tryon"
	tryonService "OpticalFactory/internal/api/tryon/service"
	"OpticalFactory/internal/entity"
	"OpticalFactory/internal/middleware"
	contextPkg "OpticalFactory/pkg/context"
	"OpticalFactory/pkg/handlerUtil"
	jwtPkg "OpticalFactory/pkg/jwt"
	"OpticalFactory/pkg/pose"
	"OpticalFactory/pkg/pose/posetest"
	"OpticalFactory/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	mu     sync.Mutex
	result *entity.LandmarkDetectionResult
	err    error
}

func (d *stubDetector) DetectLandmarks(_ context.Context, frame []byte) (*entity.LandmarkDetectionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if string(frame) == "no-face" {
		return &entity.LandmarkDetectionResult{ImageWidth: 640, ImageHeight: 480}, nil
	}
	return d.result, nil
}

type testServer struct {
	app      *fiber.App
	service  tryonService.ITryOnService
	detector *stubDetector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger, _ := test.NewNullLogger()
	detector := &stubDetector{result: &entity.LandmarkDetectionResult{
		Detected:    true,
		Landmarks:   posetest.FrontalFace(),
		ImageWidth:  posetest.ImageWidth,
		ImageHeight: posetest.ImageHeight,
	}}

	settings := tryon.DefaultSettings()
	settings.SnapshotEvery = 0
	svc, err := tryonService.NewTryOnService(logger, pose.DefaultConfig(), settings, detector, utils.New())
	require.NoError(t, err)

	mw := middleware.New(logger)
	app := fiber.New(fiber.Config{
		JSONEncoder: jsoniter.Marshal,
		JSONDecoder: jsoniter.Unmarshal,
	})
	app.Use(mw.NewRequestIDMiddleware())

	New(logger, validator.New(), mw, svc, utils.New()).Start(app.Group("/api/v1"))

	return &testServer{app: app, service: svc, detector: detector}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func jsonRequest(t *testing.T, method, path, sessionID string, v interface{}) *http.Request {
	t.Helper()

	var body io.Reader
	if v != nil {
		payload, err := jsoniter.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if sessionID != "" {
		req.Header.Set(contextPkg.SessionIDHeader, sessionID)
	}
	return req
}

func poseRequest(ls pose.LandmarkSet) tryon.PoseFrameRequest {
	return tryon.PoseFrameRequest{
		Detected:    len(ls) > 0,
		Landmarks:   ls,
		ImageWidth:  posetest.ImageWidth,
		ImageHeight: posetest.ImageHeight,
	}
}

func decode(t *testing.T, body []byte) tryon.FaceAnalysisResponse {
	t.Helper()
	var out tryon.FaceAnalysisResponse
	require.NoError(t, jsoniter.Unmarshal(body, &out), string(body))
	return out
}

func TestTestEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/face/test", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Face detection service is running")
}

func TestPose_Lifecycle(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	resp, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/face/pose", "", poseRequest(posetest.FrontalFace())))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	fresh := decode(t, body)
	assert.True(t, fresh.Success)
	assert.Equal(t, tryon.MessageFresh, fresh.Message)
	assert.Equal(t, "tracking", fresh.State)
	assert.NotEmpty(t, fresh.SessionID)
	assert.Equal(t, fresh.SessionID, resp.Header.Get(contextPkg.SessionIDHeader))
	require.NotNil(t, fresh.Landmarks)
	require.Len(t, fresh.Landmarks.Landmarks, pose.LandmarkCount)
	assert.InDelta(t, 160, fresh.Landmarks.Landmarks[pose.LeftEyeOuter].X, 1e-9)
	assert.InDelta(t, 192, fresh.Landmarks.Landmarks[pose.LeftEyeOuter].Y, 1e-9)
	require.NotNil(t, fresh.GlassesPosition)
	assert.Greater(t, fresh.GlassesPosition.Scale.X, 0.0)

	id := fresh.SessionID
	for i := 0; i < 3; i++ {
		resp, body = s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/face/pose", id, poseRequest(nil)))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		rec := decode(t, body)
		assert.True(t, rec.Recovered)
		assert.Equal(t, "degraded", rec.State)
		assert.Equal(t, []tryon.Point2D{{X: 320, Y: 240}}, rec.Landmarks.Landmarks)
		assert.Equal(t, fresh.GlassesPosition, rec.GlassesPosition)
	}

	resp, body = s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/face/pose", id, poseRequest(nil)))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))
	lost := decode(t, body)
	assert.False(t, lost.Success)
	assert.Equal(t, "NO_FACE_DETECTED", lost.Code)
	assert.Equal(t, "lost", lost.State)
	assert.Equal(t, 4, lost.Failures)
	assert.Nil(t, lost.GlassesPosition)

	resp, body = s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/face/pose", id, poseRequest(posetest.AsymmetricFace())))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	poor := decode(t, body)
	assert.Equal(t, "POOR_DETECTION_QUALITY", poor.Code)
	assert.Equal(t, pose.CheckEyeSymmetry, poor.Details)

	resp, body = s.do(t, jsonRequest(t, http.MethodGet, "/api/v1/face/sessions/"+id, "", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap entity.SessionSnapshot
	require.NoError(t, jsoniter.Unmarshal(body, &snap))
	assert.Equal(t, 6, snap.Frames)
	assert.Equal(t, pose.StateLost, snap.State)

	resp, body = s.do(t, jsonRequest(t, http.MethodDelete, "/api/v1/face/sessions/"+id, "", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary tryon.SessionSummary
	require.NoError(t, jsoniter.Unmarshal(body, &summary))
	assert.Equal(t, 6, summary.Frames)
	assert.InDelta(t, 1.0/6, summary.DetectionRate, 1e-9)
	assert.Equal(t, tryonService.EndReasonClosed, summary.EndReason)

	resp, _ = s.do(t, jsonRequest(t, http.MethodGet, "/api/v1/face/sessions/"+id, "", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPose_BadRequests(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	t.Run("validation", func(t *testing.T) {
		req := poseRequest(posetest.FrontalFace())
		req.ImageWidth = 0
		resp, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/face/pose", "", req))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var out handlerUtil.ErrorResponse
		require.NoError(t, jsoniter.Unmarshal(body, &out))
		assert.Equal(t, "VALIDATION_ERROR", out.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/face/pose", bytes.NewBufferString("{"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := s.do(t, req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown session", func(t *testing.T) {
		resp, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/v1/face/pose", "gone", poseRequest(nil)))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var out handlerUtil.ErrorResponse
		require.NoError(t, jsoniter.Unmarshal(body, &out))
		assert.Equal(t, "NOT_FOUND", out.Code)
	})
}

func multipartImage(t *testing.T, data []byte, contentType string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="image"; filename="frame.jpg"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/face/detect", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func TestDetect(t *testing.T) {
	t.Parallel()

	t.Run("multipart image", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		resp, body := s.do(t, multipartImage(t, []byte("jpeg-bytes"), "image/jpeg"))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.True(t, decode(t, body).Success)
	})

	t.Run("base64 body", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		req := jsonRequest(t, http.MethodPost, "/api/v1/face/detect", "", tryon.DetectRequest{
			ImageBase64: base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
		})
		resp, body := s.do(t, req)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Equal(t, "tracking", decode(t, body).State)
	})

	t.Run("not an image", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		resp, _ := s.do(t, multipartImage(t, []byte("hello"), "text/plain"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("no face", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		resp, body := s.do(t, multipartImage(t, []byte("no-face"), "image/jpeg"))
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "NO_FACE_DETECTED", decode(t, body).Code)
	})

	t.Run("detector down", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		s.detector.err = errors.New("connection refused")
		resp, body := s.do(t, multipartImage(t, []byte("jpeg-bytes"), "image/jpeg"))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		var out handlerUtil.ErrorResponse
		require.NoError(t, jsoniter.Unmarshal(body, &out))
		assert.Equal(t, "SERVICE_UNAVAILABLE", out.Code)
	})
}

func TestHistory(t *testing.T) {
	t.Setenv(middleware.AccessTokenSecret, "handler-secret")

	s := newTestServer(t)

	resp, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/face/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _, err := jwtPkg.Sign(entity.UserLoginData{ID: "u-1", Email: "u@x.io", Username: "u"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/face/sessions?limit=5", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, body := s.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out tryon.SessionHistoryResponse
	require.NoError(t, jsoniter.Unmarshal(body, &out))
	assert.Empty(t, out.Sessions)
}

func TestSessions_Ownership(t *testing.T) {
	t.Setenv(middleware.AccessTokenSecret, "handler-secret")

	s := newTestServer(t)
	tokenFor := func(id string) string {
		token, _, err := jwtPkg.Sign(entity.UserLoginData{ID: id, Email: id + "@x.io", Username: id}, time.Hour)
		require.NoError(t, err)
		return "Bearer " + token
	}

	req := jsonRequest(t, http.MethodPost, "/api/v1/face/pose", "", poseRequest(posetest.FrontalFace()))
	req.Header.Set(fiber.HeaderAuthorization, tokenFor("owner"))
	resp, body := s.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := decode(t, body).SessionID

	req = jsonRequest(t, http.MethodDelete, "/api/v1/face/sessions/"+id, "", nil)
	req.Header.Set(fiber.HeaderAuthorization, tokenFor("intruder"))
	resp, _ = s.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = jsonRequest(t, http.MethodGet, "/api/v1/face/sessions/"+id, "", nil)
	req.Header.Set(fiber.HeaderAuthorization, tokenFor("owner"))
	resp, _ = s.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
