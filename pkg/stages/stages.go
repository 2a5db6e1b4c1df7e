// Package stages holds the stage classes a pipeline document can name.
package stages

import (
	"fmt"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
)

// Register adds every built-in class to reg.
func Register(reg *pipeline.Registry) {
	reg.Register("Directory", newDirectory)

	reg.Register("ModeSorter", newModeSorter)
	reg.Register("SizeSorter", newSizeSorter)
	reg.Register("DetailSorter", newDetailSorter)
	reg.Register("VisionSorter", newVisionSorter)

	reg.Register("AlphaSplit", newAlphaSplit)
	reg.Register("AlphaMerge", newAlphaMerge)

	reg.Register("Resize", newResize)
	reg.Register("Crop", newCrop)
	reg.Register("Mode", newMode)
	reg.Register("Threshold", newThreshold)
	reg.Register("Sharpen", newSharpen)
	reg.Register("TiledScale", newTiledScale)
	reg.Register("Quantize", newQuantize)
	reg.Register("External", newExternal)
	reg.Register("Backup", newBackup)

	reg.Register("Output", newOutput)
	reg.Register("Discard", newDiscard)
}

// Default returns a registry holding every built-in class.
func Default() *pipeline.Registry {
	reg := pipeline.NewRegistry()
	Register(reg)
	return reg
}

// decode fills p from the stage parameters. p carries the defaults.
func decode[T any](spec config.StageSpec, p *T) error {
	if err := spec.Decode(p); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}
