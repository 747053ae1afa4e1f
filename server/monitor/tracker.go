package monitor

import (
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/birdwatch/pkg/nn"
)

// Keep a ring buffer of the last N positions of each object.
// Must be a power of 2.
const positionHistorySize = 64

// A time and position where we saw an object
type timeAndPosition struct {
	time      time.Time
	detection nn.ObjectDetection
}

// Internal state of an object that we're tracking.
// A bird at a feeder barely moves, so unlike a security camera we do not
// demand movement before we believe a detection. The NN confidence filter
// has already run; every track is genuine from its first frame.
type trackedObject struct {
	id           int64 // every new tracked object gets a unique id
	class        int
	lastPosition nn.Rect
	history      ringbuffer.RingP[timeAndPosition]
	announced    bool // FirstSighting has been reported for this track
}

func (t *trackedObject) mostRecent() timeAndPosition {
	return t.history.Peek(t.history.Len() - 1)
}

// tracker associates detections across frames. It is owned by the analyzer
// goroutine, so no locking.
type tracker struct {
	forgetAfter time.Duration
	nextID      int64
	tracked     []*trackedObject
}

// update matches this frame's detections against the tracked objects, and
// returns one SightedObject per detection. FirstSighting is true for objects
// we have not seen before.
func (t *tracker) update(m *Monitor, objects []nn.ObjectDetection, now time.Time) []SightedObject {
	// Greedily find the closest tracked object, but if there is no match
	// with any overlap at all, then create a new tracked object.
	previousHasMatch := make([]bool, len(t.tracked))
	result := make([]SightedObject, 0, len(objects))
	for _, det := range objects {
		bestJ := -1
		bestIOU := float32(0)
		for j, tracked := range t.tracked {
			if !previousHasMatch[j] && det.Class == tracked.class {
				iou := det.Box.IOU(tracked.lastPosition)
				if iou > bestIOU {
					bestIOU = iou
					bestJ = j
				}
			}
		}
		first := false
		if bestJ != -1 {
			previousHasMatch[bestJ] = true
		} else {
			// Add a new object
			bestJ = len(t.tracked)
			previousHasMatch = append(previousHasMatch, true) // keep the slice lengths the same
			t.nextID++
			t.tracked = append(t.tracked, &trackedObject{
				id:      t.nextID,
				class:   det.Class,
				history: ringbuffer.NewRingP[timeAndPosition](positionHistorySize),
			})
			first = true
			m.Log.Infof("New '%v' at %v,%v (confidence %.2f)", m.label(det.Class), det.Box.Center().X, det.Box.Center().Y, det.Confidence)
		}
		tracked := t.tracked[bestJ]
		if first && !tracked.announced {
			tracked.announced = true
		} else {
			first = false
		}
		tracked.lastPosition = det.Box
		tracked.history.Add(timeAndPosition{
			time:      now,
			detection: det,
		})
		result = append(result, SightedObject{
			TrackID:       tracked.id,
			Label:         m.label(det.Class),
			Confidence:    det.Confidence,
			Box:           det.Box,
			FirstSighting: first,
		})
	}

	// Forget objects that we haven't seen in a while. If the same bird comes
	// back after that, it counts as a new sighting.
	remaining := t.tracked[:0]
	for _, tracked := range t.tracked {
		if tracked.history.Len() != 0 && now.Sub(tracked.mostRecent().time) > t.forgetAfter {
			m.Log.Infof("'%v' (track %v) has left", m.label(tracked.class), tracked.id)
		} else {
			remaining = append(remaining, tracked)
		}
	}
	t.tracked = remaining

	return result
}

// analyzer consumes NN results, runs tracking, and fans the final Detection
// out to watchers.
func (m *Monitor) analyzer() {
	for {
		item, ok := <-m.analyzerQueue
		if !ok {
			break
		}
		objects := m.track.update(m, item.objects, item.pts)
		detection := &Detection{
			Frame:       item.frame,
			FrameID:     item.frameID,
			Time:        item.pts,
			FrameWidth:  item.frameWidth,
			FrameHeight: item.frameHeight,
			Objects:     objects,
		}
		m.sendToWatchers(detection)
	}
	close(m.analyzerStopped)
}
