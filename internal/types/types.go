package types

import (
	"bytes"
	"encoding/json"
)

// Face is one entry of the "faces" array returned by /detect.
// bbox and landmarks_5 are kept as raw JSON and forwarded exactly as the service sent them.
type Face struct {
	BBox       json.RawMessage `json:"bbox"`        // [x1, y1, x2, y2]
	Landmarks5 json.RawMessage `json:"landmarks_5"` // five [x, y] points
}

// Missing reports whether a raw field was absent or null.
func Missing(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DetectResult matches the JSON structure coming back from /detect
type DetectResult struct {
	Success bool   `json:"success"`
	Faces   []Face `json:"faces"`
}

// HasFace reports whether the detection can be used for a follow-up call.
func (d *DetectResult) HasFace() bool {
	return d != nil && d.Success && len(d.Faces) > 0
}

// DetectRequest is the body sent to /detect.
type DetectRequest struct {
	Image string `json:"image"`
}

// RegisterRequest is the body sent to /face/register.
type RegisterRequest struct {
	PersonID                string          `json:"person_id"`
	Image                   string          `json:"image"`
	BBox                    json.RawMessage `json:"bbox"`
	EnableLivenessDetection bool            `json:"enable_liveness_detection"`
	Landmarks5              json.RawMessage `json:"landmarks_5"`
}

// RecognizeRequest is the body sent to /face/recognize. It carries no person_id:
// recognition identifies an unknown face instead of confirming a claimed one.
type RecognizeRequest struct {
	Image      string          `json:"image"`
	BBox       json.RawMessage `json:"bbox"`
	Landmarks5 json.RawMessage `json:"landmarks_5"`
}

// Response is a raw service reply. Body is kept verbatim so it can be printed
// with every field the service returned.
type Response struct {
	Endpoint   string
	StatusCode int
	Body       json.RawMessage
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Success reads the top-level "success" flag. Non-JSON bodies count as false.
func (r *Response) Success() bool {
	var v struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return false
	}
	return v.Success
}

// Detection pairs the raw /detect reply with its decoded form.
// Result is nil when the body could not be decoded.
type Detection struct {
	Response
	Result *DetectResult
}
