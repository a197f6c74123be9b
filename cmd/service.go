package cmd

import (
	"context"

	"github.com/andresmejia3/suri/internal/types"
	"github.com/andresmejia3/suri/internal/utils"
	"github.com/andresmejia3/suri/internal/workflow"
)

// spinningService draws a stderr spinner around every call to the wrapped service.
type spinningService struct {
	workflow.Service
	enabled bool
}

func (s *spinningService) Detect(ctx context.Context, image string) (*types.Detection, error) {
	defer utils.Spin("🔍 Detecting faces", s.enabled)()
	return s.Service.Detect(ctx, image)
}

func (s *spinningService) Register(ctx context.Context, req types.RegisterRequest) (*types.Response, error) {
	defer utils.Spin("📝 Registering "+req.PersonID, s.enabled)()
	return s.Service.Register(ctx, req)
}

func (s *spinningService) Recognize(ctx context.Context, req types.RecognizeRequest) (*types.Response, error) {
	defer utils.Spin("🧠 Recognizing face", s.enabled)()
	return s.Service.Recognize(ctx, req)
}
