// Package stub is an in-process fake of the face service HTTP contract.
// It backs `suri stub` for offline runs and the package tests.
package stub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/andresmejia3/suri/internal/suri"
	"github.com/andresmejia3/suri/internal/types"
	"github.com/andresmejia3/suri/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Options tunes the canned behaviour of the fake service.
type Options struct {
	// Faces returned by /detect. Nil means DefaultFaces().
	Faces []types.Face
	// NoFaces makes /detect answer success=false with an empty face list.
	NoFaces bool
	// Status forces an HTTP status for an endpoint path (e.g. suri.RegisterPath: 500).
	Status map[string]int
	// Similarity reported by /face/recognize when someone is registered.
	Similarity float64
}

// Server records every call it receives.
type Server struct {
	engine *gin.Engine
	opts   Options

	mu         sync.Mutex
	hits       map[string]int
	bodies     map[string][]byte
	registered []string
}

type detectBody struct {
	Image string `json:"image" binding:"required"`
}

type registerBody struct {
	PersonID                string      `json:"person_id" binding:"required"`
	Image                   string      `json:"image" binding:"required"`
	BBox                    []float64   `json:"bbox" binding:"len=4"`
	EnableLivenessDetection *bool       `json:"enable_liveness_detection" binding:"required"`
	Landmarks5              [][]float64 `json:"landmarks_5" binding:"len=5,dive,len=2"`
}

type recognizeBody struct {
	Image      string      `json:"image" binding:"required"`
	BBox       []float64   `json:"bbox" binding:"len=4"`
	Landmarks5 [][]float64 `json:"landmarks_5" binding:"omitempty,dive,len=2"`
}

// DefaultFaces is a single face with the canonical bbox and 5-point landmarks.
func DefaultFaces() []types.Face {
	return []types.Face{{
		BBox:       json.RawMessage(`[1,2,3,4]`),
		Landmarks5: json.RawMessage(`[[0,0],[1,1],[2,2],[3,3],[4,4]]`),
	}}
}

// New builds the fake service.
func New(opts Options) *Server {
	if opts.Faces == nil {
		opts.Faces = DefaultFaces()
	}
	if opts.Similarity == 0 {
		opts.Similarity = 0.99
	}

	s := &Server{
		engine: gin.New(),
		opts:   opts,
		hits:   make(map[string]int),
		bodies: make(map[string][]byte),
	}

	s.engine.Use(gin.Recovery(), requestLogger())
	s.engine.POST(suri.DetectPath, s.record, s.handleDetect)
	s.engine.POST(suri.RegisterPath, s.record, s.handleRegister)
	s.engine.POST(suri.RecognizePath, s.record, s.handleRecognize)

	return s
}

// Handler exposes the gin engine, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled or the listener fails.
// Cancellation shuts the server down gracefully and returns nil.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.WithField("component", "stub").Debug("Shutting down stub service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down stub service: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests across all endpoints.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// LastBody returns the raw JSON body of the latest request to path.
func (s *Server) LastBody(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[path]
}

// Registered lists person ids in enrollment order.
func (s *Server) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.registered...)
}

// record counts the hit, keeps the body and applies any forced status.
func (s *Server) record(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.Set(gin.BodyBytesKey, raw)

	path := c.FullPath()
	s.mu.Lock()
	s.hits[path]++
	s.bodies[path] = raw
	s.mu.Unlock()

	if status, ok := s.opts.Status[path]; ok && status != http.StatusOK {
		c.AbortWithStatusJSON(status, gin.H{"success": false, "error": "injected failure"})
		return
	}
	c.Next()
}

func (s *Server) handleDetect(c *gin.Context) {
	start := time.Now()
	var req detectBody
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	img, err := utils.DecodeDataURL(req.Image)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "faces": []types.Face{}, "error": err.Error()})
		return
	}
	if len(img) == 0 || s.opts.NoFaces {
		c.JSON(http.StatusOK, gin.H{"success": false, "faces": []types.Face{}})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"faces":           s.opts.Faces,
		"processing_time": time.Since(start).Seconds(),
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerBody
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := checkImage(req.Image); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	s.mu.Lock()
	s.registered = append(s.registered, req.PersonID)
	total := len(s.registered)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"person_id":         req.PersonID,
		"total_persons":     total,
		"liveness_detected": *req.EnableLivenessDetection,
	})
}

func (s *Server) handleRecognize(c *gin.Context) {
	var req recognizeBody
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := checkImage(req.Image); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	// An empty landmark list is allowed, anything else must be five points
	if n := len(req.Landmarks5); n != 0 && n != 5 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("landmarks_5 must have 0 or 5 points, got %d", n)})
		return
	}

	s.mu.Lock()
	var personID any
	similarity := 0.0
	if n := len(s.registered); n > 0 {
		personID = s.registered[n-1]
		similarity = s.opts.Similarity
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"person_id":  personID,
		"similarity": similarity,
	})
}

func checkImage(image string) error {
	img, err := utils.DecodeDataURL(image)
	if err != nil {
		return err
	}
	if len(img) == 0 {
		return errors.New("image is empty")
	}
	return nil
}

// requestLogger logs each request through logrus at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"component":  "stub",
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetHeader("X-Request-ID"),
			"duration":   time.Since(start),
		}).Debug("Handled request")
	}
}
