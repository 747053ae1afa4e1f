package monitor

import (
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/birdwatch/pkg/nn"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) *Monitor {
	m, err := NewMonitor(logs.NewTestingLog(t), &dummyDetector{}, nn.NewModelSetup(), Options{
		Labels:      []string{"bird"},
		ForgetAfter: time.Second,
	})
	require.NoError(t, err)
	return m
}

func TestPrepareImageEqualSize(t *testing.T) {
	m := newTestMonitor(t)
	src := cimg.NewImage(8, 8, cimg.PixelFormatRGB)
	for i := range src.Pixels {
		src.Pixels[i] = byte(i)
	}
	mem := make([]byte, 8*8*3)
	xform := m.prepareImageForNN(src, mem, 8, 8)
	require.Equal(t, float32(1), xform.ScaleX)
	require.Equal(t, float32(1), xform.ScaleY)
	require.Equal(t, src.Pixels[:8*8*3], mem)
}

func TestPrepareImagePadding(t *testing.T) {
	m := newTestMonitor(t)
	// 16x8 into 16x16: scale 1 on X, so the bottom half must be black padding
	src := cimg.NewImage(16, 8, cimg.PixelFormatRGB)
	for i := range src.Pixels {
		src.Pixels[i] = 0x7F
	}
	mem := make([]byte, 16*16*3)
	for i := range mem {
		mem[i] = 0xFF
	}
	xform := m.prepareImageForNN(src, mem, 16, 16)
	require.Equal(t, float32(1), xform.ScaleX)
	require.Equal(t, float32(1), xform.ScaleY)
	stride := 16 * 3
	for y := 0; y < 8; y++ {
		for x := 0; x < stride; x++ {
			require.Equal(t, byte(0x7F), mem[y*stride+x])
		}
	}
	for y := 8; y < 16; y++ {
		for x := 0; x < stride; x++ {
			require.Equal(t, byte(0), mem[y*stride+x])
		}
	}
}

func TestPrepareImageDownscale(t *testing.T) {
	m := newTestMonitor(t)
	// 32x24 into 16x16: scale 0.5, scaled size 16x12, bottom 4 rows padded
	src := cimg.NewImage(32, 24, cimg.PixelFormatRGB)
	for i := range src.Pixels {
		src.Pixels[i] = 0x40
	}
	mem := make([]byte, 16*16*3)
	for i := range mem {
		mem[i] = 0xFF
	}
	xform := m.prepareImageForNN(src, mem, 16, 16)
	require.Equal(t, float32(0.5), xform.ScaleX)
	require.Equal(t, float32(0.5), xform.ScaleY)
	stride := 16 * 3
	// Padded region is black
	for y := 12; y < 16; y++ {
		for x := 0; x < stride; x++ {
			require.Equal(t, byte(0), mem[y*stride+x])
		}
	}
	// Image region survived the resize (a flat grey image stays flat grey)
	for y := 0; y < 12; y++ {
		for x := 0; x < stride; x++ {
			require.InDelta(t, 0x40, mem[y*stride+x], 2)
		}
	}

	// The backward transform maps an NN box back to camera coordinates
	boxes := []nn.ObjectDetection{{Box: nn.Rect{X: 4, Y: 4, Width: 8, Height: 6}}}
	xform.ApplyBackward(boxes)
	require.Equal(t, nn.Rect{X: 8, Y: 8, Width: 16, Height: 12}, boxes[0].Box)
}
