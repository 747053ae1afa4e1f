// Package snapshot saves annotated detection frames to disk, one directory
// per day, and keeps the most recent frame in memory for the live preview.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cyclopcam/birdwatch/server/monitor"
	"github.com/cyclopcam/logs"
)

type Saver struct {
	log      logs.Log
	root     string
	interval time.Duration // Minimum time between saved frames

	lock       sync.Mutex
	lastSave   time.Time
	latestJPEG []byte
	latestPath string
}

func NewSaver(logger logs.Log, root string, interval time.Duration) *Saver {
	return &Saver{
		log:      logger,
		root:     root,
		interval: interval,
	}
}

// SaveDetection annotates and saves the frame of a detection.
// Frames are written at most once per interval, except that a first
// sighting is always written. Returns the path of the saved file, or ""
// if the frame was rate-limited away.
func (s *Saver) SaveDetection(det *monitor.Detection) (string, error) {
	jpeg, err := Annotate(det)
	if err != nil {
		return "", err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	// The latest frame always wins, even if we don't write it to disk
	s.latestJPEG = jpeg

	first := false
	for _, obj := range det.Objects {
		if obj.FirstSighting {
			first = true
			break
		}
	}
	if !first && det.Time.Sub(s.lastSave) < s.interval {
		return "", nil
	}

	dir := filepath.Join(s.root, det.Time.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	// Filenames have one-second resolution, so two first sightings in the
	// same second must not clobber each other
	base := filepath.Join(dir, det.Time.Format("15-04-05"))
	path := base + ".jpg"
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = fmt.Sprintf("%v-%v.jpg", base, n)
	}
	if err := os.WriteFile(path, jpeg, 0644); err != nil {
		return "", err
	}
	s.lastSave = det.Time
	s.latestPath = path
	return path, nil
}

// LatestJPEG returns the most recently annotated frame, or nil if no frame
// has been processed yet.
func (s *Saver) LatestJPEG() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.latestJPEG
}

// LatestPath returns the path of the most recently saved frame.
func (s *Saver) LatestPath() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.latestPath
}
