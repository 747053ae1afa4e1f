package camera

import (
	"bufio"
	"fmt"
	"os/exec"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
)

// rpicamArgs builds the rpicam-vid command line that emits an endless MJPEG
// stream on stdout.
func rpicamArgs(opt Options) []string {
	args := []string{
		"--timeout", "0",
		"--nopreview",
		"--codec", "mjpeg",
		"--width", strconv.Itoa(opt.Width),
		"--height", strconv.Itoa(opt.Height),
		"--framerate", strconv.Itoa(opt.FPS),
		"--output", "-",
	}
	return args
}

// ffmpegDeviceArgs builds the ffmpeg command line for a V4L2 webcam.
func ffmpegDeviceArgs(device string, opt Options) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-framerate", strconv.Itoa(opt.FPS),
		"-video_size", fmt.Sprintf("%vx%v", opt.Width, opt.Height),
		"-i", device,
		"-c:v", "mjpeg",
		"-q:v", "4",
		"-f", "mjpeg", "-",
	}
}

// ffmpegFileArgs builds the ffmpeg command line for a video file on disk.
// The file is decoded at its native rate so that playback resembles a live
// camera.
func ffmpegFileArgs(filename string, opt Options) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-re",
	}
	if opt.Loop {
		args = append(args, "-stream_loop", "-1")
	}
	args = append(args,
		"-i", filename,
		"-c:v", "mjpeg",
		"-q:v", "4",
		"-f", "mjpeg", "-",
	)
	return args
}

// execSource runs an external process (rpicam-vid or ffmpeg) that writes an
// MJPEG stream to stdout, and decodes it into frames.
type execSource struct {
	log     logs.Log
	prog    string
	args    []string
	opt     Options
	cmd     *exec.Cmd
	frames  chan Frame
	closed  atomic.Bool
	nextID  int64
	dropped int64
}

func newExecSource(logger logs.Log, prog string, args []string, opt Options) *execSource {
	return &execSource{
		log:    logger,
		prog:   prog,
		args:   args,
		opt:    opt,
		frames: make(chan Frame, 2),
	}
}

func (s *execSource) Start() error {
	s.cmd = exec.Command(s.prog, s.args...)
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := s.cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("Failed to start %v: %w", s.prog, err)
	}
	s.log.Infof("Started %v %v", s.prog, s.args)

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.log.Warnf("%v: %v", s.prog, scanner.Text())
		}
	}()

	go func() {
		defer close(s.frames)
		splitter := newMJPEGSplitter(stdout)
		for {
			jpeg, err := splitter.Next()
			if err != nil {
				if !s.closed.Load() {
					s.log.Infof("%v stream ended: %v", s.prog, err)
				}
				s.cmd.Wait()
				return
			}
			s.emit(jpeg)
		}
	}()
	return nil
}

func (s *execSource) emit(jpeg []byte) {
	img, err := cimg.Decompress(jpeg)
	if err != nil {
		s.log.Warnf("Failed to decode frame: %v", err)
		return
	}
	if img, err = Rotate(img, s.opt.Rotation); err != nil {
		s.log.Warnf("%v", err)
		return
	}
	s.nextID++
	frame := Frame{
		Image: img,
		ID:    s.nextID,
		PTS:   time.Now(),
	}
	select {
	case s.frames <- frame:
	default:
		// Consumer is behind. Newer frames are worth more than old ones,
		// so we drop this one rather than stall the decoder.
		s.dropped++
		if s.dropped%100 == 1 {
			s.log.Warnf("Dropped %v frames so far (consumer too slow)", s.dropped)
		}
	}
}

func (s *execSource) Frames() <-chan Frame {
	return s.frames
}

func (s *execSource) Close() {
	if s.closed.Swap(true) {
		return
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}
