package tile

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Operator transforms a single tile. Implementations must be safe for
// concurrent use unless Options.Workers is 1.
type Operator func(ctx context.Context, index int, tile image.Image) (image.Image, error)

// Options configures Apply.
type Options struct {
	Size    int
	Overlap int
	Workers int // <= 0 means runtime.NumCPU()
}

// Apply subdivides img, runs op over every tile and recomposes the result.
// The returned image is scaled by whatever factor op applies to the tiles.
func Apply(ctx context.Context, img image.Image, opts Options, op Operator) (*image.NRGBA, *SubdividedImage, error) {
	sub, err := Subdivide(img, opts.Size, opts.Overlap)
	if err != nil {
		return nil, nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	in := sub.Tiles()
	out := make([]image.Image, len(in))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, t := range in {
		g.Go(func() error {
			res, err := op(gctx, i, t)
			if err != nil {
				return fmt.Errorf("tile %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	scaled, err := sub.ReplaceTiles(out)
	if err != nil {
		return nil, nil, err
	}
	res, err := Recompose(ctx, scaled)
	if err != nil {
		return nil, nil, err
	}
	return res, scaled, nil
}
