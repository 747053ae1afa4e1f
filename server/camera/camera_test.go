package camera

import (
	"bytes"
	"testing"

	"github.com/bmharper/cimg/v2"
	"github.com/stretchr/testify/require"
)

func TestSourceTypeOf(t *testing.T) {
	require.Equal(t, SourceTypeRpi, SourceTypeOf("rpi"))
	require.Equal(t, SourceTypeUSB, SourceTypeOf("/dev/video0"))
	require.Equal(t, SourceTypeUSB, SourceTypeOf("/dev/video2"))
	require.Equal(t, SourceTypeRTSP, SourceTypeOf("rtsp://192.168.1.5:554/stream"))
	require.Equal(t, SourceTypeFile, SourceTypeOf("clips/birds.mp4"))
	require.Equal(t, SourceTypeFile, SourceTypeOf("/home/user/video.mkv"))
}

func TestCommandLines(t *testing.T) {
	opt := Options{Width: 1920, Height: 1080, FPS: 30}

	rpi := rpicamArgs(opt)
	require.Contains(t, rpi, "--codec")
	require.Contains(t, rpi, "mjpeg")
	require.Contains(t, rpi, "1920")
	require.Contains(t, rpi, "1080")
	require.Contains(t, rpi, "--nopreview")
	require.Equal(t, "-", rpi[len(rpi)-1])

	dev := ffmpegDeviceArgs("/dev/video0", opt)
	require.Contains(t, dev, "v4l2")
	require.Contains(t, dev, "/dev/video0")
	require.Contains(t, dev, "1920x1080")
	require.Equal(t, "-", dev[len(dev)-1])

	file := ffmpegFileArgs("birds.mp4", opt)
	require.Contains(t, file, "-re")
	require.Contains(t, file, "birds.mp4")
	require.NotContains(t, file, "-stream_loop")

	opt.Loop = true
	file = ffmpegFileArgs("birds.mp4", opt)
	require.Contains(t, file, "-stream_loop")
}

// buildFakeJPEG constructs a structurally valid JPEG whose entropy data
// contains the byte patterns that defeat naive EOI scanning.
func buildFakeJPEG(entropy []byte) []byte {
	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8})                         // SOI
	b.Write([]byte{0xFF, 0xE0, 0x00, 0x04, 0x01, 0x02}) // APP0, 2 payload bytes
	b.Write([]byte{0xFF, 0xDA, 0x00, 0x04, 0x03, 0x04}) // SOS, 2 payload bytes
	b.Write(entropy)
	b.Write([]byte{0xFF, 0xD9}) // EOI
	return b.Bytes()
}

func TestMJPEGSplitter(t *testing.T) {
	// Entropy data with an escaped 0xFF and a restart marker
	img1 := buildFakeJPEG([]byte{0x11, 0xFF, 0x00, 0x22, 0xFF, 0xD0, 0x33})
	img2 := buildFakeJPEG([]byte{0x44, 0x55})

	var stream bytes.Buffer
	stream.Write([]byte{0xAB, 0xCD}) // garbage before the first image
	stream.Write(img1)
	stream.Write(img2)

	s := newMJPEGSplitter(&stream)

	out1, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, img1, out1)

	out2, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, img2, out2)

	_, err = s.Next()
	require.Error(t, err)
}

func setPixel(img *cimg.Image, x, y int, r, g, b byte) {
	p := img.Pixels[y*img.Stride+x*img.NChan():]
	p[0], p[1], p[2] = r, g, b
}

func getPixel(img *cimg.Image, x, y int) (byte, byte, byte) {
	p := img.Pixels[y*img.Stride+x*img.NChan():]
	return p[0], p[1], p[2]
}

func TestRotate(t *testing.T) {
	src := cimg.NewImage(2, 3, cimg.PixelFormatRGB)
	val := byte(0)
	for y := 0; y < 3; y++ {
		for x := 0; x < 2; x++ {
			setPixel(src, x, y, val, val+1, val+2)
			val += 10
		}
	}

	same, err := Rotate(src, 0)
	require.NoError(t, err)
	require.Equal(t, src, same)

	r90, err := Rotate(src, 90)
	require.NoError(t, err)
	require.Equal(t, 3, r90.Width)
	require.Equal(t, 2, r90.Height)
	for y := 0; y < 3; y++ {
		for x := 0; x < 2; x++ {
			sr, sg, sb := getPixel(src, x, y)
			dr, dg, db := getPixel(r90, 3-1-y, x)
			require.Equal(t, [3]byte{sr, sg, sb}, [3]byte{dr, dg, db})
		}
	}

	r180, err := Rotate(src, 180)
	require.NoError(t, err)
	require.Equal(t, 2, r180.Width)
	require.Equal(t, 3, r180.Height)
	for y := 0; y < 3; y++ {
		for x := 0; x < 2; x++ {
			sr, sg, sb := getPixel(src, x, y)
			dr, dg, db := getPixel(r180, 2-1-x, 3-1-y)
			require.Equal(t, [3]byte{sr, sg, sb}, [3]byte{dr, dg, db})
		}
	}

	r270, err := Rotate(src, 270)
	require.NoError(t, err)
	require.Equal(t, 3, r270.Width)
	require.Equal(t, 2, r270.Height)
	for y := 0; y < 3; y++ {
		for x := 0; x < 2; x++ {
			sr, sg, sb := getPixel(src, x, y)
			dr, dg, db := getPixel(r270, y, 2-1-x)
			require.Equal(t, [3]byte{sr, sg, sb}, [3]byte{dr, dg, db})
		}
	}

	_, err = Rotate(src, 45)
	require.Error(t, err)
}
