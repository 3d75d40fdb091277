package tryon

import (
	"time"

	"OpticalFactory/internal/entity"
	"OpticalFactory/pkg/pose"
)

const (
	MessageFresh     = "Face landmarks and glasses position calculated successfully"
	MessageRecovered = "Face not tracked in this frame, showing last stable position"
	MessageFailed    = "Face tracking lost"
)

type PoseFrameRequest struct {
	Detected    bool            `json:"detected"`
	Landmarks   []pose.Landmark `json:"landmarks" validate:"max=1000"`
	ImageWidth  int             `json:"image_width" validate:"required,gt=0,lte=16384"`
	ImageHeight int             `json:"image_height" validate:"required,gt=0,lte=16384"`
	TimestampMs int64           `json:"timestamp_ms" validate:"gte=0"`
}

func (r PoseFrameRequest) Frame() pose.Frame {
	f := pose.Frame{
		Detected:    r.Detected,
		Landmarks:   pose.LandmarkSet(r.Landmarks),
		ImageWidth:  r.ImageWidth,
		ImageHeight: r.ImageHeight,
	}
	if r.TimestampMs > 0 {
		f.Timestamp = time.UnixMilli(r.TimestampMs)
	}
	return f
}

type DetectRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
}

type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type FaceLandmarks struct {
	Landmarks   []Point2D `json:"landmarks"`
	ImageWidth  int       `json:"image_width"`
	ImageHeight int       `json:"image_height"`
}

type GlassesPosition struct {
	Position pose.Vector3 `json:"position"`
	Rotation pose.Vector3 `json:"rotation"`
	Scale    pose.Vector3 `json:"scale"`
}

type FaceAnalysisResponse struct {
	Success         bool             `json:"success"`
	Message         string           `json:"message"`
	SessionID       string           `json:"session_id"`
	State           string           `json:"state"`
	Recovered       bool             `json:"recovered"`
	Landmarks       *FaceLandmarks   `json:"landmarks"`
	GlassesPosition *GlassesPosition `json:"glasses_position"`
	Code            string           `json:"code,omitempty"`
	Details         string           `json:"details,omitempty"`
	Failures        int              `json:"failures,omitempty"`
}

// FrameOutcome is what the session service produced for one frame. Failure is
// set when the session is lost; Result then carries no pose.
type FrameOutcome struct {
	SessionID string
	Frame     pose.Frame
	Result    pose.Result
	Failure   *pose.FrameError
}

// NewFaceAnalysisResponse renders an outcome in the try-on client format.
// Recovered frames report the image centre as their only landmark.
func NewFaceAnalysisResponse(o FrameOutcome) FaceAnalysisResponse {
	resp := FaceAnalysisResponse{
		SessionID: o.SessionID,
		State:     o.Result.State.String(),
		Recovered: o.Result.Recovered,
	}

	if o.Failure != nil {
		resp.Message = MessageFailed
		resp.Code = string(o.Failure.Kind)
		resp.Details = o.Failure.Check()
		if resp.Details == "" {
			resp.Details = o.Failure.Cause.Error()
		}
		resp.Failures = o.Failure.Failures
		return resp
	}

	resp.Success = true
	resp.Message = MessageFresh
	w, h := o.Frame.ImageWidth, o.Frame.ImageHeight

	points := []Point2D{{X: float64(w) / 2, Y: float64(h) / 2}}
	if o.Result.Recovered {
		resp.Message = MessageRecovered
	} else {
		points = make([]Point2D, len(o.Frame.Landmarks))
		for i, lm := range o.Frame.Landmarks {
			points[i] = Point2D{X: lm.X * float64(w), Y: lm.Y * float64(h)}
		}
	}

	resp.Landmarks = &FaceLandmarks{Landmarks: points, ImageWidth: w, ImageHeight: h}
	resp.GlassesPosition = &GlassesPosition{
		Position: o.Result.Pose.Position,
		Rotation: o.Result.Pose.Rotation,
		Scale:    o.Result.Pose.Scale,
	}
	return resp
}

type SessionHistoryResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type SessionSummary struct {
	ID            string    `json:"id"`
	Preset        string    `json:"preset"`
	Frames        int       `json:"frames"`
	DetectionRate float64   `json:"detection_rate"`
	FinalState    string    `json:"final_state"`
	EndReason     string    `json:"end_reason"`
	TraceURL      string    `json:"trace_url,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
}

func NewSessionSummary(s entity.TrackingSession) SessionSummary {
	return SessionSummary{
		ID:            s.ID,
		Preset:        s.Preset,
		Frames:        s.Frames,
		DetectionRate: s.DetectionRate(),
		FinalState:    s.FinalState,
		EndReason:     s.EndReason,
		TraceURL:      s.TraceURL,
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
	}
}
