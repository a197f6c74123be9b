// Package workflow runs the detect -> register/recognize sequence against a face service.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andresmejia3/suri/internal/types"
	"github.com/andresmejia3/suri/internal/utils"
	log "github.com/sirupsen/logrus"
)

// PersonIDPrefix is prepended to every enrollment key.
const PersonIDPrefix = "student_"

// Service is the subset of the face service the workflow needs.
type Service interface {
	Detect(ctx context.Context, image string) (*types.Detection, error)
	Register(ctx context.Context, req types.RegisterRequest) (*types.Response, error)
	Recognize(ctx context.Context, req types.RecognizeRequest) (*types.Response, error)
}

// NoFaceError means detection succeeded at the transport level but found nothing usable.
// It is an expected outcome, not a crash.
type NoFaceError struct {
	Detection *types.Detection
}

func (e *NoFaceError) Error() string {
	return "no face detected"
}

// DetectionStatusError means /detect answered with a non-2xx status during enrollment.
type DetectionStatusError struct {
	Detection *types.Detection
}

func (e *DetectionStatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Detection.Endpoint, e.Detection.StatusCode, strings.TrimSpace(string(e.Detection.Body)))
}

// ErrMissingField is wrapped when the first face lacks a field registration needs.
var ErrMissingField = errors.New("detected face is missing a field")

// ErrMalformedDetection is wrapped when /detect reports success but its faces cannot be read.
var ErrMalformedDetection = errors.New("detection reply could not be decoded")

// Request describes one run.
type Request struct {
	ImagePath string
	// SubjectID, when set, becomes the person id ("student_<SubjectID>").
	SubjectID string
	// Now is used for auto-generated person ids. Defaults to time.Now.
	Now func() time.Time
}

// Outcome is what a completed run produced.
type Outcome struct {
	Detection *types.Detection
	PersonID  string
	Result    *types.Response
}

// PersonID derives the enrollment key. The subject id is used as given;
// an empty one falls back to the unix time.
func PersonID(subjectID string, now time.Time) string {
	if subjectID != "" {
		return PersonIDPrefix + subjectID
	}
	return PersonIDPrefix + strconv.FormatInt(now.Unix(), 10)
}

// DetectOnly sends the image to /detect and returns whatever came back, whatever the status.
func DetectOnly(ctx context.Context, svc Service, imagePath string) (*types.Detection, error) {
	image, err := utils.LoadImageDataURL(imagePath)
	if err != nil {
		return nil, err
	}
	det, err := svc.Detect(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	return det, nil
}

// Enroll detects a face and registers it. A non-2xx detection is fatal;
// a detection without faces returns *NoFaceError and /face/register is never called.
func Enroll(ctx context.Context, svc Service, req Request) (*Outcome, error) {
	image, err := utils.LoadImageDataURL(req.ImagePath)
	if err != nil {
		return nil, err
	}

	det, err := svc.Detect(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	if !det.OK() {
		return &Outcome{Detection: det}, &DetectionStatusError{Detection: det}
	}

	face, err := firstFace(det)
	if err != nil {
		return &Outcome{Detection: det}, err
	}
	if types.Missing(face.BBox) {
		return &Outcome{Detection: det}, fmt.Errorf("%w: bbox", ErrMissingField)
	}
	if types.Missing(face.Landmarks5) {
		return &Outcome{Detection: det}, fmt.Errorf("%w: landmarks_5", ErrMissingField)
	}

	now := time.Now
	if req.Now != nil {
		now = req.Now
	}
	personID := PersonID(req.SubjectID, now())
	out := &Outcome{Detection: det, PersonID: personID}

	log.WithField("person_id", personID).Debug("Registering face")
	out.Result, err = svc.Register(ctx, types.RegisterRequest{
		PersonID:                personID,
		Image:                   image,
		BBox:                    face.BBox,
		EnableLivenessDetection: false,
		Landmarks5:              face.Landmarks5,
	})
	if err != nil {
		return out, fmt.Errorf("registration failed: %w", err)
	}
	return out, nil
}

// Recognize detects a face and asks the service who it is. The detection status is not
// checked on its own: a reply without a usable face yields *NoFaceError.
func Recognize(ctx context.Context, svc Service, imagePath string) (*Outcome, error) {
	image, err := utils.LoadImageDataURL(imagePath)
	if err != nil {
		return nil, err
	}

	det, err := svc.Detect(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	face, err := firstFace(det)
	if err != nil {
		return &Outcome{Detection: det}, err
	}
	if types.Missing(face.BBox) {
		return &Outcome{Detection: det}, fmt.Errorf("%w: bbox", ErrMissingField)
	}

	landmarks := face.Landmarks5
	if types.Missing(landmarks) {
		landmarks = json.RawMessage("[]")
	}

	out := &Outcome{Detection: det}
	out.Result, err = svc.Recognize(ctx, types.RecognizeRequest{
		Image:      image,
		BBox:       face.BBox,
		Landmarks5: landmarks,
	})
	if err != nil {
		return out, fmt.Errorf("recognition failed: %w", err)
	}
	return out, nil
}

// firstFace applies the success/non-empty gate and picks faces[0].
// A body that claims success but does not decode is an error, not a missing face.
func firstFace(det *types.Detection) (types.Face, error) {
	if det.Result == nil && det.OK() && det.Success() {
		return types.Face{}, fmt.Errorf("%w: %s", ErrMalformedDetection, strings.TrimSpace(string(det.Body)))
	}
	if !det.Result.HasFace() {
		return types.Face{}, &NoFaceError{Detection: det}
	}
	if extra := len(det.Result.Faces) - 1; extra > 0 {
		log.WithField("ignored", extra).Debug("Multiple faces detected, using the first one")
	}
	return det.Result.Faces[0], nil
}
