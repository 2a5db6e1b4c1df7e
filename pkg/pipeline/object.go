package pipeline

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"slices"
	"strings"

	"github.com/menta2k/texture-upscaler/internal/utils"
	"github.com/menta2k/texture-upscaler/pkg/processing"
)

// ErrInvalidObject is returned for objects that carry neither a payload
// nor an identity.
var ErrInvalidObject = errors.New("invalid pipe object")

// Object is one image flowing through the graph. Base is the identity of
// the original input; Chain lists the suffixes of the stages that derived
// this object from it.
type Object struct {
	Base    string
	Chain   []string
	Role    string
	Path    string
	Image   image.Image
	Parents []*Object
}

// NewObject wraps a file. The base name is the file name without extension.
func NewObject(path string) *Object {
	return &Object{Base: utils.StripExtension(filepath.Base(path)), Path: path}
}

// FromImage wraps an in-memory image under the given base name.
func FromImage(base string, img image.Image) *Object {
	return &Object{Base: base, Image: img}
}

// Name is the lineage name: the base followed by every suffix.
func (o *Object) Name() string {
	if len(o.Chain) == 0 {
		return o.Base
	}
	return o.Base + "_" + strings.Join(o.Chain, "_")
}

func (o *Object) String() string {
	if o.Role != "" {
		return o.Name() + "[" + o.Role + "]"
	}
	return o.Name()
}

// Derive returns a child object with suffix appended to the lineage. The
// child has no payload yet.
func (o *Object) Derive(suffix string) *Object {
	chain := slices.Clone(o.Chain)
	if suffix != "" {
		chain = append(chain, sanitizeSuffix(suffix))
	}
	return &Object{
		Base:    o.Base,
		Chain:   chain,
		Role:    o.Role,
		Parents: []*Object{o},
	}
}

// WithRole returns a copy of o tagged with role.
func (o *Object) WithRole(role string) *Object {
	c := *o
	c.Role = role
	return &c
}

// Root follows the first parent up to the original input.
func (o *Object) Root() *Object {
	r := o
	for len(r.Parents) > 0 {
		r = r.Parents[0]
	}
	return r
}

// Validate checks the payload and identity invariants.
func (o *Object) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: nil", ErrInvalidObject)
	}
	if o.Image == nil && o.Path == "" {
		return fmt.Errorf("%w: %q has neither image nor path", ErrInvalidObject, o.Name())
	}
	if o.Path == "" && o.Base == "" && len(o.Parents) == 0 {
		return fmt.Errorf("%w: anonymous in-memory image", ErrInvalidObject)
	}
	return nil
}

// Load returns the image, reading it from Path on first use.
func (o *Object) Load() (image.Image, error) {
	if o.Image != nil {
		return o.Image, nil
	}
	if o.Path == "" {
		return nil, fmt.Errorf("%w: %q has neither image nor path", ErrInvalidObject, o.Name())
	}
	img, err := processing.NewProcessor().LoadImage(o.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", o.Path, err)
	}
	o.Image = img
	return img, nil
}

func sanitizeSuffix(s string) string {
	s = utils.SanitizeFilename(s)
	return strings.ReplaceAll(s, " ", "-")
}
