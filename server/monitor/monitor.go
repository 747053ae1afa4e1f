// Package monitor runs the neural network on camera frames, and tracks the
// objects it finds across frames, so that one bird hopping around the feeder
// is one sighting, not three hundred.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/birdwatch/pkg/nn"
	"github.com/cyclopcam/birdwatch/server/camera"
	"github.com/cyclopcam/logs"
)

// SightedObject is one tracked object in one frame.
type SightedObject struct {
	TrackID    int64   `json:"trackID"`
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
	Box        nn.Rect `json:"box"`
	// True the first time this track appears. Consumers that want one
	// event per visit (notifications, the sightings DB) key off this.
	FirstSighting bool `json:"firstSighting"`
}

// Detection is the analyzed result of one frame.
type Detection struct {
	Frame       *cimg.Image     `json:"-"` // The RGB frame the detections refer to
	FrameID     int64           `json:"frameID"`
	Time        time.Time       `json:"time"`
	FrameWidth  int             `json:"frameWidth"`
	FrameHeight int             `json:"frameHeight"`
	Objects     []SightedObject `json:"objects"`
}

type Options struct {
	Labels         []string      // Class names we act on, eg ["bird"]
	MinConfidence  float32
	MinBoxFraction float32       // Min box area as a fraction of the frame
	ForgetAfter    time.Duration // Forget a track after not seeing it for this long
}

const frameQueueSize = 10
const analyzerQueueSize = 100

// SYNC-WATCHER-CHANNEL-SIZE
const WatcherChannelSize = 100

type analyzerQueueItem struct {
	frame       *cimg.Image
	frameID     int64
	pts         time.Time
	frameWidth  int
	frameHeight int
	objects     []nn.ObjectDetection
}

type Monitor struct {
	Log        logs.Log
	detector   nn.ObjectDetector
	modelSetup *nn.ModelSetup
	filter     nn.FilterParams
	classes    []string // detector's class names, indexed by class ID

	frameQueue    chan camera.Frame
	analyzerQueue chan analyzerQueueItem

	nnThreadStopped chan bool
	analyzerStopped chan bool

	track tracker

	watchersLock sync.RWMutex
	watchers     []chan *Detection

	droppedFrames atomic.Int64
}

func NewMonitor(logger logs.Log, detector nn.ObjectDetector, setup *nn.ModelSetup, opt Options) (*Monitor, error) {
	classFilter, err := nn.BuildClassFilter(detector.Config().Classes, opt.Labels)
	if err != nil {
		return nil, err
	}
	forgetAfter := opt.ForgetAfter
	if forgetAfter <= 0 {
		forgetAfter = 30 * time.Second
	}
	m := &Monitor{
		Log:        logger,
		detector:   detector,
		modelSetup: setup,
		classes:    detector.Config().Classes,
		filter: nn.FilterParams{
			Classes:        classFilter,
			MinConfidence:  opt.MinConfidence,
			MinBoxFraction: opt.MinBoxFraction,
		},
		frameQueue:    make(chan camera.Frame, frameQueueSize),
		analyzerQueue: make(chan analyzerQueueItem, analyzerQueueSize),
		track: tracker{
			forgetAfter: forgetAfter,
		},
	}
	return m, nil
}

func (m *Monitor) Start() {
	m.nnThreadStopped = make(chan bool)
	m.analyzerStopped = make(chan bool)
	go m.nnThread()
	go m.analyzer()
}

// Close drains and stops the processing goroutines. It does not close the
// detector; whoever created it owns it.
func (m *Monitor) Close() {
	m.Log.Infof("Monitor shutting down")
	close(m.frameQueue)
	<-m.nnThreadStopped
	close(m.analyzerQueue)
	<-m.analyzerStopped
	m.Log.Infof("Monitor is closed")
}

// Submit hands a frame to the NN pipeline. If the pipeline is busy, the
// frame is dropped, and Submit returns false. The camera must never stall
// behind a slow network.
func (m *Monitor) Submit(frame camera.Frame) bool {
	if len(m.frameQueue) >= cap(m.frameQueue)*9/10 {
		n := m.droppedFrames.Add(1)
		if n%100 == 1 {
			m.Log.Warnf("NN pipeline is falling behind - dropping frames (%v so far)", n)
		}
		return false
	}
	m.frameQueue <- frame
	return true
}

func (m *Monitor) label(class int) string {
	if class >= 0 && class < len(m.classes) {
		return m.classes[class]
	}
	return "unknown"
}
