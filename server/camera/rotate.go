package camera

import (
	"fmt"

	"github.com/bmharper/cimg/v2"
)

// Rotate returns img rotated clockwise by the given number of degrees.
// A rotation of 0 returns img unchanged. Upside-down mounting is common
// for a camera taped to a balcony window, hence 180.
func Rotate(img *cimg.Image, degrees int) (*cimg.Image, error) {
	if degrees == 0 {
		return img, nil
	}
	w := img.Width
	h := img.Height
	nchan := img.NChan()
	var dst *cimg.Image
	switch degrees {
	case 90, 270:
		dst = cimg.NewImage(h, w, img.Format)
	case 180:
		dst = cimg.NewImage(w, h, img.Format)
	default:
		return nil, fmt.Errorf("Unsupported rotation %v (must be 0, 90, 180 or 270)", degrees)
	}
	for sy := 0; sy < h; sy++ {
		srcRow := img.Pixels[sy*img.Stride:]
		for sx := 0; sx < w; sx++ {
			var dx, dy int
			switch degrees {
			case 90:
				dx, dy = h-1-sy, sx
			case 180:
				dx, dy = w-1-sx, h-1-sy
			case 270:
				dx, dy = sy, w-1-sx
			}
			src := srcRow[sx*nchan : sx*nchan+nchan]
			out := dst.Pixels[dy*dst.Stride+dx*nchan:]
			copy(out, src)
		}
	}
	return dst, nil
}
