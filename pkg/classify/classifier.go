package classify

import (
	"context"
	"fmt"
	"image"
	"slices"
	"strings"

	"github.com/menta2k/texture-upscaler/pkg/client"
	"github.com/menta2k/texture-upscaler/pkg/processing"
	"github.com/menta2k/texture-upscaler/pkg/types"
)

// Other is the label assigned when the model answer matches no configured label.
const Other = "other"

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

const promptTemplate = `You are a game texture classifier.

Return JSON only:
{
  "label": "one of: %s",
  "confidence": 0.0,
  "description": "short neutral sentence (<= 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- label MUST be exactly one of the listed values; use "%s" when none fits.
- Tags: lowercase, concise, no punctuation or duplicates.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Classifier sorts textures into a fixed label set using a vision model
type Classifier struct {
	client    client.VisionClient
	model     string
	labels    []string
	maxDim    int
	minConfid float64
}

// Option configures a Classifier
type Option func(*Classifier)

// WithMaxDim bounds the longest image side sent to the model.
func WithMaxDim(n int) Option { return func(c *Classifier) { c.maxDim = n } }

// WithMinConfidence routes answers below the threshold to Other.
func WithMinConfidence(v float64) Option { return func(c *Classifier) { c.minConfid = v } }

// NewClassifier creates a classifier for the given labels. Labels are
// lowercased; Other is always an accepted outcome.
func NewClassifier(vc client.VisionClient, model string, labels []string, opts ...Option) (*Classifier, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("classifier needs at least one label")
	}
	norm := make([]string, 0, len(labels))
	for _, l := range labels {
		l = normalizeLabel(l)
		if l == "" || l == Other {
			return nil, fmt.Errorf("invalid classifier label %q", l)
		}
		if !slices.Contains(norm, l) {
			norm = append(norm, l)
		}
	}
	c := &Classifier{client: vc, model: model, labels: norm, maxDim: 512}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Outlets returns the labels followed by Other
func (c *Classifier) Outlets() []string {
	return append(slices.Clone(c.labels), Other)
}

// Prompt returns the classification prompt sent with every image
func (c *Classifier) Prompt() string {
	return fmt.Sprintf(promptTemplate, strings.Join(c.labels, ", "), Other)
}

// Classify returns one of Outlets() for img along with the raw model answer.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (string, *types.Classification, error) {
	b64, err := processing.NewProcessor().PrepareImageForModel(img, "png", c.maxDim, 0)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode image: %w", err)
	}
	result, err := c.client.Classify(ctx, c.model, c.Prompt(), b64)
	if err != nil {
		return "", nil, err
	}
	result.Tags = normalizeTags(result.Tags)
	return c.Resolve(result), result, nil
}

// Resolve maps a model answer onto the label set
func (c *Classifier) Resolve(result *types.Classification) string {
	if result == nil || result.Confidence < c.minConfid {
		return Other
	}
	label := normalizeLabel(result.Label)
	if slices.Contains(c.labels, label) {
		return label
	}
	// Models like plurals and adjectives ("stone wall", "bricks")
	for _, l := range c.labels {
		if strings.Contains(label, l) {
			return l
		}
	}
	return Other
}

// TestVision tests if the model can actually see the image with a simple prompt
func (c *Classifier) TestVision(ctx context.Context, img image.Image) (string, error) {
	b64, err := processing.NewProcessor().PrepareImageForModel(img, "png", c.maxDim, 0)
	if err != nil {
		return "", err
	}
	return c.client.SimpleQuery(ctx, c.model, SimpleTestPrompt, b64)
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
