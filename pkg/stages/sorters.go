package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/analyzer"
	"github.com/menta2k/texture-upscaler/pkg/classify"
	"github.com/menta2k/texture-upscaler/pkg/client"
	"github.com/menta2k/texture-upscaler/pkg/llamacpp"
	"github.com/menta2k/texture-upscaler/pkg/ollama"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/vision"
)

// ModeSorter routes by colour class: alpha, gray or color.
type ModeSorter struct {
	Tolerance float64 `yaml:"tolerance"`

	analyzer *analyzer.ImageAnalyzer
}

func newModeSorter(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	s := &ModeSorter{Tolerance: 0.02}
	if err := decode(spec, s); err != nil {
		return nil, err
	}
	if s.Tolerance < 0 {
		return nil, fmt.Errorf("tolerance must not be negative")
	}
	s.analyzer = analyzer.NewWithConfig(analyzer.Config{ChromaTolerance: s.Tolerance, MaxSamples: 1 << 16})
	return s, nil
}

func (s *ModeSorter) Outlets() []string {
	out := make([]string, len(analyzer.Modes))
	for i, m := range analyzer.Modes {
		out[i] = string(m)
	}
	return out
}

func (s *ModeSorter) Sort(ctx context.Context, obj *pipeline.Object) (string, error) {
	img, err := obj.Load()
	if err != nil {
		return "", err
	}
	return string(s.analyzer.Mode(img)), nil
}

// SizeSorter routes images whose longest side is at most Threshold to
// small and everything else to large.
type SizeSorter struct {
	Threshold int `yaml:"threshold"`
}

func newSizeSorter(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	s := &SizeSorter{Threshold: 256}
	if err := decode(spec, s); err != nil {
		return nil, err
	}
	if s.Threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive")
	}
	return s, nil
}

func (s *SizeSorter) Outlets() []string { return []string{"small", "large"} }

func (s *SizeSorter) Sort(ctx context.Context, obj *pipeline.Object) (string, error) {
	img, err := obj.Load()
	if err != nil {
		return "", err
	}
	b := img.Bounds()
	if max(b.Dx(), b.Dy()) <= s.Threshold {
		return "small", nil
	}
	return "large", nil
}

// VisionSorter asks a vision model which of Labels an image shows.
// Answers outside the set go to the "other" outlet.
type VisionSorter struct {
	Backend       string   `yaml:"backend"`
	URL           string   `yaml:"url"`
	Model         string   `yaml:"model"`
	Labels        []string `yaml:"labels"`
	MinConfidence float64  `yaml:"min_confidence"`
	MaxDim        int      `yaml:"max_dim"`

	classifier *classify.Classifier
	env        *pipeline.Context
}

func newVisionSorter(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	s := &VisionSorter{Backend: "ollama", URL: "http://localhost:11434", MaxDim: 512}
	if err := decode(spec, s); err != nil {
		return nil, err
	}
	if s.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var vc client.VisionClient
	var err error
	switch strings.ToLower(s.Backend) {
	case "ollama":
		vc, err = ollama.NewClient(s.URL)
	case "llamacpp", "llama.cpp":
		vc, err = llamacpp.NewClient(s.URL)
	default:
		return nil, fmt.Errorf("unknown backend %q (use ollama or llamacpp)", s.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s.withClient(env, vc)
}

func (s *VisionSorter) withClient(env *pipeline.Context, vc client.VisionClient) (*VisionSorter, error) {
	c, err := classify.NewClassifier(vc, s.Model, s.Labels,
		classify.WithMinConfidence(s.MinConfidence), classify.WithMaxDim(s.MaxDim))
	if err != nil {
		return nil, err
	}
	s.classifier = c
	s.env = env
	return s, nil
}

func (s *VisionSorter) Outlets() []string { return s.classifier.Outlets() }

func (s *VisionSorter) Sort(ctx context.Context, obj *pipeline.Object) (string, error) {
	img, err := obj.Load()
	if err != nil {
		return "", err
	}
	label, raw, err := s.classifier.Classify(ctx, img)
	if err != nil {
		return "", fmt.Errorf("classification failed: %w", err)
	}
	s.env.Logger.DebugContext(ctx, "classified", "object", obj.String(), "label", label,
		"answer", raw.Label, "confidence", raw.Confidence)
	return label, nil
}

// DetailSorter routes images whose share of edge pixels is at least
// Threshold to detailed and everything else to flat.
type DetailSorter struct {
	Threshold     float64 `yaml:"threshold"`
	EdgeThreshold float64 `yaml:"edge_threshold"`

	detail *vision.DetailAnalyzer
	env    *pipeline.Context
}

func newDetailSorter(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	s := &DetailSorter{Threshold: 0.1, EdgeThreshold: 0.05, env: env}
	if err := decode(spec, s); err != nil {
		return nil, err
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be within 0..1")
	}
	if s.EdgeThreshold <= 0 {
		return nil, fmt.Errorf("edge_threshold must be positive")
	}
	s.detail = vision.NewWithConfig(vision.DetailConfig{EdgeThreshold: s.EdgeThreshold})
	return s, nil
}

func (s *DetailSorter) Outlets() []string { return []string{"flat", "detailed"} }

func (s *DetailSorter) Sort(ctx context.Context, obj *pipeline.Object) (string, error) {
	img, err := obj.Load()
	if err != nil {
		return "", err
	}
	d := s.detail.Measure(img)
	s.env.Logger.DebugContext(ctx, "measured detail", "object", obj.String(),
		"edge_ratio", d.EdgeRatio, "energy", d.Energy)
	if d.Samples > 0 && d.EdgeRatio >= s.Threshold {
		return "detailed", nil
	}
	return "flat", nil
}
