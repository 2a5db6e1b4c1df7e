package client

import (
	"context"

	"github.com/menta2k/texture-upscaler/pkg/types"
)

// VisionClient is implemented by every vision model backend
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	Classify(ctx context.Context, model, prompt, imgB64 string) (*types.Classification, error)
}
