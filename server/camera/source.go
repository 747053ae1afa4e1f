// Package camera turns a video input (Rpi camera, USB webcam, RTSP stream,
// or a file on disk) into a channel of decoded RGB frames.
package camera

import (
	"fmt"
	"strings"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
)

type SourceType int

const (
	SourceTypeRpi  SourceType = iota // Raspberry Pi camera, via rpicam-vid
	SourceTypeUSB                    // V4L2 device, via ffmpeg
	SourceTypeFile                   // Video file, via ffmpeg (for development)
	SourceTypeRTSP                   // Network camera
)

// SourceTypeOf classifies an input string from the command line.
// "rpi" is the Pi camera, "/dev/video0" is a USB webcam, "rtsp://..." is a
// network camera, and anything else is assumed to be a file on disk.
func SourceTypeOf(input string) SourceType {
	switch {
	case input == "rpi":
		return SourceTypeRpi
	case strings.HasPrefix(input, "/dev/video"):
		return SourceTypeUSB
	case strings.HasPrefix(input, "rtsp://"), strings.HasPrefix(input, "rtsps://"):
		return SourceTypeRTSP
	default:
		return SourceTypeFile
	}
}

// Frame is one decoded video frame.
type Frame struct {
	Image *cimg.Image // RGB
	ID    int64       // Monotonic counter, starting at 1
	PTS   time.Time
}

// Source produces frames until it is closed, or the input ends.
type Source interface {
	// Start spawns whatever goroutines/processes the source needs.
	Start() error
	// Frames is the channel of decoded frames. It is closed when the input
	// ends (eg end of file) or the source is closed.
	Frames() <-chan Frame
	// Close stops the source. Safe to call more than once.
	Close()
}

type Options struct {
	Width    int
	Height   int
	FPS      int
	Rotation int  // 0, 90, 180, 270 degrees clockwise
	Loop     bool // File source only: restart from the beginning at EOF
}

// NewSource creates the appropriate source for the input string.
func NewSource(logger logs.Log, input string, opt Options) (Source, error) {
	switch SourceTypeOf(input) {
	case SourceTypeRpi:
		return newExecSource(logger, "rpicam-vid", rpicamArgs(opt), opt), nil
	case SourceTypeUSB:
		return newExecSource(logger, "ffmpeg", ffmpegDeviceArgs(input, opt), opt), nil
	case SourceTypeFile:
		return newExecSource(logger, "ffmpeg", ffmpegFileArgs(input, opt), opt), nil
	case SourceTypeRTSP:
		return newRTSPSource(logger, input, opt)
	}
	return nil, fmt.Errorf("Unrecognized input '%v'", input)
}
