package snapshot

import (
	"fmt"
	"image"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/birdwatch/server/monitor"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Annotate draws the detection boxes and labels onto a copy of the frame,
// and returns it compressed as JPEG.
func Annotate(det *monitor.Detection) ([]byte, error) {
	src := det.Frame
	if src.NChan() != 3 {
		return nil, fmt.Errorf("Expected RGB frame, got %v channels", src.NChan())
	}

	// gg wants RGBA
	rgba := image.NewRGBA(image.Rect(0, 0, src.Width, src.Height))
	for y := 0; y < src.Height; y++ {
		srcRow := src.Pixels[y*src.Stride:]
		dstRow := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < src.Width; x++ {
			dstRow[x*4] = srcRow[x*3]
			dstRow[x*4+1] = srcRow[x*3+1]
			dstRow[x*4+2] = srcRow[x*3+2]
			dstRow[x*4+3] = 255
		}
	}

	dc := gg.NewContextForRGBA(rgba)
	dc.SetFontFace(basicfont.Face7x13)
	for _, obj := range det.Objects {
		dc.SetRGB(0, 1, 0)
		dc.SetLineWidth(2)
		dc.DrawRectangle(float64(obj.Box.X), float64(obj.Box.Y), float64(obj.Box.Width), float64(obj.Box.Height))
		dc.Stroke()
		text := fmt.Sprintf("%v %.0f%%", obj.Label, obj.Confidence*100)
		textY := float64(obj.Box.Y) - 4
		if textY < 13 {
			textY = float64(obj.Box.Y+obj.Box.Height) + 13
		}
		dc.DrawString(text, float64(obj.Box.X), textY)
	}

	// Back to RGB for the JPEG encoder
	out := cimg.NewImage(src.Width, src.Height, cimg.PixelFormatRGB)
	for y := 0; y < src.Height; y++ {
		srcRow := rgba.Pix[y*rgba.Stride:]
		dstRow := out.Pixels[y*out.Stride:]
		for x := 0; x < src.Width; x++ {
			dstRow[x*3] = srcRow[x*4]
			dstRow[x*3+1] = srcRow[x*4+1]
			dstRow[x*3+2] = srcRow[x*4+2]
		}
	}
	return cimg.Compress(out, cimg.MakeCompressParams(cimg.Sampling(cimg.Sampling420), 95, cimg.Flags(0)))
}
