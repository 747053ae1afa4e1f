package camera

import (
	"bufio"
	"fmt"
	"io"
)

// JPEG marker codes (the byte following 0xFF)
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerRST0 = 0xD0
	markerRST7 = 0xD7
	markerTEM  = 0x01
)

// mjpegSplitter splits a raw MJPEG byte stream into individual JPEG images.
// We walk the JPEG segment structure rather than just scanning for the EOI
// bytes, so that markers embedded inside segment payloads (eg an EXIF
// thumbnail) can't fool us.
type mjpegSplitter struct {
	r   *bufio.Reader
	buf []byte
}

func newMJPEGSplitter(r io.Reader) *mjpegSplitter {
	return &mjpegSplitter{
		r: bufio.NewReaderSize(r, 1024*1024),
	}
}

// Next returns the next complete JPEG image in the stream.
func (s *mjpegSplitter) Next() ([]byte, error) {
	s.buf = s.buf[:0]
	if err := s.syncToSOI(); err != nil {
		return nil, err
	}
	code, err := s.readMarker()
	for {
		if err != nil {
			return nil, err
		}
		switch {
		case code == markerEOI:
			out := make([]byte, len(s.buf))
			copy(out, s.buf)
			return out, nil
		case code == markerSOS:
			if err = s.readSegmentBody(); err != nil {
				return nil, err
			}
			code, err = s.scanEntropy()
			continue
		case (code >= markerRST0 && code <= markerRST7) || code == markerTEM:
			// Standalone marker, no payload
		default:
			if err = s.readSegmentBody(); err != nil {
				return nil, err
			}
		}
		code, err = s.readMarker()
	}
}

// syncToSOI discards bytes until the start-of-image marker, which it
// appends to buf.
func (s *mjpegSplitter) syncToSOI() error {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		c, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if c == markerSOI {
			s.buf = append(s.buf, 0xFF, markerSOI)
			return nil
		}
	}
}

// readMarker reads the next 0xFF <code> pair, appending it to buf.
// Fill bytes (repeated 0xFF) are allowed before the code.
func (s *mjpegSplitter) readMarker() (byte, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != 0xFF {
		return 0, fmt.Errorf("Corrupt JPEG stream: expected marker, got 0x%02x", b)
	}
	s.buf = append(s.buf, b)
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			return 0, err
		}
		s.buf = append(s.buf, c)
		if c != 0xFF {
			return c, nil
		}
	}
}

// readSegmentBody reads a segment's two length bytes and its payload,
// appending them to buf.
func (s *mjpegSplitter) readSegmentBody() error {
	hi, err := s.r.ReadByte()
	if err != nil {
		return err
	}
	lo, err := s.r.ReadByte()
	if err != nil {
		return err
	}
	length := int(hi)<<8 | int(lo)
	if length < 2 {
		return fmt.Errorf("Corrupt JPEG stream: segment length %v", length)
	}
	s.buf = append(s.buf, hi, lo)
	start := len(s.buf)
	s.buf = append(s.buf, make([]byte, length-2)...)
	_, err = io.ReadFull(s.r, s.buf[start:])
	return err
}

// scanEntropy consumes entropy-coded data following an SOS segment, and
// returns the code of the marker that terminates it. Escaped 0xFF bytes
// (FF 00) and restart markers are part of the entropy data.
func (s *mjpegSplitter) scanEntropy() (byte, error) {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return 0, err
		}
		s.buf = append(s.buf, b)
		if b != 0xFF {
			continue
		}
		c, err := s.r.ReadByte()
		if err != nil {
			return 0, err
		}
		s.buf = append(s.buf, c)
		if c == 0x00 || (c >= markerRST0 && c <= markerRST7) {
			continue
		}
		if c == 0xFF {
			// Fill byte. Push back one 0xFF by treating this as the start
			// of the next scan iteration.
			s.buf = s.buf[:len(s.buf)-1]
			if err := s.r.UnreadByte(); err != nil {
				return 0, err
			}
			continue
		}
		return c, nil
	}
}
