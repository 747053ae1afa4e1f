package camera

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/bluenviron/gortsplib/v4/pkg/url"
	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/pion/rtp"
)

// rtspSource reads an MJPEG stream from an RTSP camera.
type rtspSource struct {
	log     logs.Log
	rawURL  string
	opt     Options
	client  *gortsplib.Client
	frames  chan Frame
	closed  atomic.Bool
	nextID  int64
	dropped int64
}

func newRTSPSource(logger logs.Log, rawURL string, opt Options) (*rtspSource, error) {
	return &rtspSource{
		log:    logger,
		rawURL: rawURL,
		opt:    opt,
		frames: make(chan Frame, 2),
	}, nil
}

func (s *rtspSource) Start() error {
	u, err := url.Parse(s.rawURL)
	if err != nil {
		return err
	}
	s.client = &gortsplib.Client{}
	if err := s.client.Start(u.Scheme, u.Host); err != nil {
		return err
	}
	desc, _, err := s.client.Describe(u)
	if err != nil {
		s.client.Close()
		return err
	}
	var forma *format.MJPEG
	medi := desc.FindFormat(&forma)
	if medi == nil {
		s.client.Close()
		return fmt.Errorf("Camera %v does not publish an MJPEG track", s.rawURL)
	}
	decoder, err := forma.CreateDecoder()
	if err != nil {
		s.client.Close()
		return err
	}
	if _, err := s.client.Setup(desc.BaseURL, medi, 0, 0); err != nil {
		s.client.Close()
		return err
	}
	s.client.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
		jpeg, err := decoder.Decode(pkt)
		if err != nil {
			// Partial image, or we joined mid-frame. Wait for the next one.
			return
		}
		s.emit(jpeg)
	})
	if _, err := s.client.Play(nil); err != nil {
		s.client.Close()
		return err
	}
	s.log.Infof("Playing RTSP stream %v", s.rawURL)

	go func() {
		err := s.client.Wait()
		if !s.closed.Load() {
			s.log.Infof("RTSP stream ended: %v", err)
		}
		close(s.frames)
	}()
	return nil
}

func (s *rtspSource) emit(jpeg []byte) {
	img, err := cimg.Decompress(jpeg)
	if err != nil {
		s.log.Warnf("Failed to decode RTSP frame: %v", err)
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
		s.dropped++
		if s.dropped%100 == 1 {
			s.log.Warnf("Dropped %v RTSP frames so far (consumer too slow)", s.dropped)
		}
	}
}

func (s *rtspSource) Frames() <-chan Frame {
	return s.frames
}

func (s *rtspSource) Close() {
	if s.closed.Swap(true) {
		return
	}
	if s.client != nil {
		s.client.Close()
	}
}
