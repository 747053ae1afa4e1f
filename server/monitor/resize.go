package monitor

import (
	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/birdwatch/pkg/nn"
)

// prepareImageForNN resizes rgb into rgbNNMemory at the NN's input size,
// preserving aspect ratio and padding the remainder with black. The returned
// transform maps NN coordinates back to camera coordinates.
func (m *Monitor) prepareImageForNN(rgb *cimg.Image, rgbNNMemory []byte, nnWidth, nnHeight int) nn.ResizeTransform {
	nnStride := nnWidth * 3
	xform := nn.IdentityResizeTransform()

	if rgb.Width == nnWidth && rgb.Height == nnHeight {
		// A camera configured to exactly the NN size. This is a memory copy
		// into the batch image buffer.
		if rgb.Stride == nnStride {
			copy(rgbNNMemory, rgb.Pixels[:nnHeight*nnStride])
		} else {
			for y := 0; y < nnHeight; y++ {
				copy(rgbNNMemory[y*nnStride:y*nnStride+nnStride], rgb.Pixels[y*rgb.Stride:])
			}
		}
		return xform
	}

	// Resize the image to the NN size.
	// We pad with blackness on the right or bottom edge if the aspect ratios
	// of camera and NN are different.
	scaleX := float32(nnWidth) / float32(rgb.Width)
	scaleY := float32(nnHeight) / float32(rgb.Height)
	scale := min(scaleX, scaleY)
	xform.ScaleX = scale
	xform.ScaleY = scale
	scaledWidth := int(float32(rgb.Width)*scale + 0.5)
	scaledHeight := int(float32(rgb.Height)*scale + 0.5)

	if scale == 1 {
		// The camera image is smaller than the NN input
		nnWrap := cimg.WrapImageStrided(nnWidth, nnHeight, cimg.PixelFormatRGB, rgbNNMemory, nnStride)
		nnWrap.CopyImageRect(rgb, 0, 0, rgb.Width, rgb.Height, 0, 0)
	} else {
		// Box is sharp and fast for downsampling; Triangle is bilinear
		// on upsampling.
		resizeParams := cimg.ResizeParams{CheapSRGBFilter: true}
		if scale < 1 {
			resizeParams.Filter = cimg.ResizeFilterBox
		} else {
			resizeParams.Filter = cimg.ResizeFilterTriangle
		}
		nnWrap := cimg.WrapImageStrided(scaledWidth, scaledHeight, cimg.PixelFormatRGB, rgbNNMemory, nnStride)
		cimg.Resize(rgb, nnWrap, &resizeParams)
	}

	if scaledWidth != nnWidth {
		// Fill the right edge with black
		for y := 0; y < nnHeight; y++ {
			clear(rgbNNMemory[y*nnStride+3*scaledWidth : y*nnStride+3*nnWidth])
		}
	}
	if scaledHeight != nnHeight {
		// Fill the bottom edge with black
		for y := scaledHeight; y < nnHeight; y++ {
			clear(rgbNNMemory[y*nnStride : y*nnStride+3*nnWidth])
		}
	}
	return xform
}
