package tile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRampMonotonic(t *testing.T) {
	for overlap := 2; overlap <= 64; overlap++ {
		r := Ramp(overlap)
		require.Len(t, r, overlap)
		for i := 1; i < len(r); i++ {
			require.GreaterOrEqual(t, r[i], r[i-1], "overlap=%d i=%d", overlap, i)
		}
		assert.Less(t, r[0], 0.01)
		assert.Greater(t, r[len(r)-1], 0.99)
		assert.Greater(t, r[0], 0.0)
		assert.Less(t, r[len(r)-1], 1.0)
	}
}

func TestRampSmallOverlaps(t *testing.T) {
	assert.Nil(t, Ramp(0))

	one := Ramp(1)
	require.Len(t, one, 1)
	assert.InDelta(t, (math.Erf(-2)+1)/2, one[0], 1e-12)

	two := Ramp(2)
	require.Len(t, two, 2)
	assert.InDelta(t, 1, two[0]+two[1], 1e-12)
}

func TestWeightMapBands(t *testing.T) {
	size, overlap := 12, 5
	wm := EdgeTapers(size, overlap)
	ramp := Ramp(overlap)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := y*size + x
			if x < overlap {
				assert.Equal(t, ramp[x], wm.Left[i])
			} else {
				assert.Equal(t, 1.0, wm.Left[i])
			}
			if x >= size-overlap {
				assert.Equal(t, ramp[size-1-x], wm.Right[i])
			} else {
				assert.Equal(t, 1.0, wm.Right[i])
			}
			if y < overlap {
				assert.Equal(t, ramp[y], wm.Top[i])
			} else {
				assert.Equal(t, 1.0, wm.Top[i])
			}
			if y >= size-overlap {
				assert.Equal(t, ramp[size-1-y], wm.Bottom[i])
			} else {
				assert.Equal(t, 1.0, wm.Bottom[i])
			}
		}
	}
}

func TestWeightMapMask(t *testing.T) {
	wm := NewWeightMap(8, 6, 3)
	for _, v := range wm.Mask(0) {
		require.Equal(t, 1.0, v)
	}

	m := wm.Mask(Left | Top)
	assert.InDelta(t, wm.Left[0]*wm.Top[0], m[0], 1e-15)
	assert.Equal(t, 1.0, m[5*8+7])

	all := wm.Mask(Left | Top | Right | Bottom)
	for _, v := range all {
		require.Greater(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
	}
}

func TestWeightMapClipsWideBand(t *testing.T) {
	wm := NewWeightMap(3, 3, 8)
	ramp := Ramp(8)
	assert.Equal(t, ramp[0], wm.Left[0])
	assert.Equal(t, ramp[2], wm.Left[2])
	assert.Equal(t, ramp[0], wm.Right[2])
}
