package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/andresmejia3/suri/internal/config"
	"github.com/andresmejia3/suri/internal/stub"
	"github.com/andresmejia3/suri/internal/suri"
	"github.com/andresmejia3/suri/internal/types"
	"github.com/andresmejia3/suri/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// startStub serves a fake face service and returns it with a client pointed at it.
func startStub(t *testing.T, opts stub.Options) (*stub.Server, *suri.Client) {
	t.Helper()
	fake := stub.New(opts)
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	client, err := suri.NewClient(suri.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return fake, client
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "face.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0xFF, 0xD9}, 0644))
	return path
}

func TestEnrollStudent_UsageGate(t *testing.T) {
	for _, args := range [][]string{nil, {}, {"45"}, {"", "face.jpg"}} {
		fake, client := startStub(t, stub.Options{})

		var out bytes.Buffer
		err := runEnrollStudent(context.Background(), &out, client, args)

		require.NoError(t, err, "usage is not an error")
		assert.Contains(t, out.String(), "Usage: suri enroll-student <student_id> <image_path>")
		assert.Equal(t, 0, fake.TotalHits(), "no request may be sent for args %v", args)
	}
}

func TestEnrollStudent_EndToEnd(t *testing.T) {
	fake, client := startStub(t, stub.Options{})

	var out bytes.Buffer
	err := runEnrollStudent(context.Background(), &out, client, []string{"45", writeImage(t)})
	require.NoError(t, err)

	assert.Equal(t, 2, fake.TotalHits())
	assert.Equal(t, 1, fake.Hits(suri.DetectPath))
	assert.Equal(t, 1, fake.Hits(suri.RegisterPath))
	assert.Equal(t, []string{"student_45"}, fake.Registered())

	assert.Contains(t, out.String(), `"success": true`)
	assert.Contains(t, out.String(), "users.suri_person_id = 'student_45'")
	assert.Contains(t, string(fake.LastBody(suri.RegisterPath)), `"enable_liveness_detection":false`)
}

// The service contract only promises {"success": true}; nothing else is required.
func TestEnrollStudent_MinimalService(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		switch r.URL.Path {
		case suri.DetectPath:
			w.Write([]byte(`{"success": true, "faces": [{"bbox": [1,2,3,4], "landmarks_5": [[0,0],[1,1],[2,2],[3,3],[4,4]]}]}`))
		case suri.RegisterPath:
			w.Write([]byte(`{"success": true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := suri.NewClient(suri.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runEnrollStudent(context.Background(), &out, client, []string{"45", writeImage(t)}))

	assert.Equal(t, []string{suri.DetectPath, suri.RegisterPath}, calls)
	assert.Contains(t, out.String(), "{\n  \"success\": true\n}")
}

func TestEnrollStudent_NoFace(t *testing.T) {
	fake, client := startStub(t, stub.Options{NoFaces: true})

	var out bytes.Buffer
	require.NoError(t, runEnrollStudent(context.Background(), &out, client, []string{"45", writeImage(t)}))

	assert.Contains(t, out.String(), "No face detected. Use a clearer photo.")
	assert.Equal(t, 0, fake.Hits(suri.RegisterPath))
}

func TestEnroll_AutoID(t *testing.T) {
	fake, client := startStub(t, stub.Options{})

	var out bytes.Buffer
	require.NoError(t, runEnroll(context.Background(), &out, client, writeImage(t)))

	assert.Contains(t, out.String(), "Register status: 200")
	registered := fake.Registered()
	require.Len(t, registered, 1)
	assert.Regexp(t, regexp.MustCompile(`^student_\d+$`), registered[0])
}

func TestEnroll_NoFace(t *testing.T) {
	fake, client := startStub(t, stub.Options{NoFaces: true})

	var out bytes.Buffer
	require.NoError(t, runEnroll(context.Background(), &out, client, writeImage(t)))

	assert.Contains(t, out.String(), "❌ No face detected")
	assert.Contains(t, out.String(), `"success": false`)
	assert.Equal(t, 0, fake.Hits(suri.RegisterPath))
}

func TestEnroll_RegisterFailureExitsOne(t *testing.T) {
	_, client := startStub(t, stub.Options{Status: map[string]int{suri.RegisterPath: http.StatusInternalServerError}})

	var out bytes.Buffer
	err := runEnroll(context.Background(), &out, client, writeImage(t))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)

	var httpErr *suri.HTTPError
	assert.True(t, errors.As(err, &httpErr), "the HTTP error stays reachable")
	assert.NotContains(t, out.String(), "Register status")
}

func TestRecognize(t *testing.T) {
	fake, client := startStub(t, stub.Options{})

	var out bytes.Buffer
	require.NoError(t, runRecognize(context.Background(), &out, client, writeImage(t)))

	assert.Contains(t, out.String(), "Detect status: 200")
	assert.Contains(t, out.String(), "Recognize status: 200")
	assert.NotContains(t, string(fake.LastBody(suri.RecognizePath)), "person_id")
}

func TestRecognize_NoFaceExitsOne(t *testing.T) {
	fake, client := startStub(t, stub.Options{NoFaces: true})

	var out bytes.Buffer
	err := runRecognize(context.Background(), &out, client, writeImage(t))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, out.String(), "Detect status: 200")
	assert.Contains(t, out.String(), "cannot recognize")
	assert.Equal(t, 0, fake.Hits(suri.RecognizePath))
}

func TestDetect(t *testing.T) {
	_, client := startStub(t, stub.Options{})

	var out bytes.Buffer
	require.NoError(t, runDetect(context.Background(), &out, client, writeImage(t)))

	assert.Contains(t, out.String(), "Status: 200")
	assert.Contains(t, out.String(), `"bbox": [`)
}

func TestDetect_MissingFile(t *testing.T) {
	fake, client := startStub(t, stub.Options{})

	err := runDetect(context.Background(), &bytes.Buffer{}, client, filepath.Join(t.TempDir(), "nope.jpg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 0, fake.TotalHits())
}

func TestImageArg(t *testing.T) {
	prev := Cfg
	t.Cleanup(func() { Cfg = prev })

	Cfg = nil
	assert.Equal(t, "face.jpg", imageArg(nil, 0))

	Cfg = &config.Config{Image: config.ImageConfig{Path: "me.jpg"}}
	assert.Equal(t, "me.jpg", imageArg(nil, 0))
	assert.Equal(t, "other.jpg", imageArg([]string{"other.jpg"}, 0))
}

func TestRecognize_FaceWithoutLandmarks(t *testing.T) {
	fake, client := startStub(t, stub.Options{Faces: []types.Face{{BBox: json.RawMessage(`[1,2,3,4]`)}}})

	var out bytes.Buffer
	require.NoError(t, runRecognize(context.Background(), &out, client, writeImage(t)))

	assert.Contains(t, out.String(), "Recognize status: 200")
	assert.Contains(t, string(fake.LastBody(suri.RecognizePath)), `"landmarks_5":[]`)
}

func TestRecognize_ServiceErrorExitsOne(t *testing.T) {
	_, client := startStub(t, stub.Options{Status: map[string]int{suri.RecognizePath: http.StatusServiceUnavailable}})

	var out bytes.Buffer
	err := runRecognize(context.Background(), &out, client, writeImage(t))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)

	var httpErr *suri.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.NotContains(t, out.String(), "Recognize status")
}

// Face fields the client does not model are still forwarded unchanged.
func TestEnroll_ForwardsObjectLandmarks(t *testing.T) {
	const landmarks = `[{"x":0,"y":0},{"x":1,"y":1},{"x":2,"y":2},{"x":3,"y":3},{"x":4,"y":4}]`
	var registered []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case suri.DetectPath:
			w.Write([]byte(`{"success":true,"faces":[{"bbox":[1,2,3,4],"landmarks_5":` + landmarks + `}]}`))
		case suri.RegisterPath:
			var body struct {
				Landmarks5 json.RawMessage `json:"landmarks_5"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			registered = body.Landmarks5
			w.Write([]byte(`{"success": true}`))
		}
	}))
	defer srv.Close()

	client, err := suri.NewClient(suri.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runEnroll(context.Background(), &out, client, writeImage(t)))

	assert.NotContains(t, out.String(), "No face detected")
	assert.Contains(t, out.String(), "Register status: 200")
	assert.JSONEq(t, landmarks, string(registered))
}

func TestEnroll_MalformedDetectionExitsOne(t *testing.T) {
	var registerHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == suri.RegisterPath {
			registerHits++
		}
		w.Write([]byte(`{"success":true,"faces":{"bbox":[1,2,3,4]}}`))
	}))
	defer srv.Close()

	client, err := suri.NewClient(suri.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	var out bytes.Buffer
	err = runEnroll(context.Background(), &out, client, writeImage(t))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.ErrorIs(t, err, workflow.ErrMalformedDetection)
	assert.NotContains(t, out.String(), "No face detected")
	assert.Equal(t, 0, registerHits)
}
