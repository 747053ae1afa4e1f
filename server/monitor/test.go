package monitor

import (
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/birdwatch/server/camera"
)

// Functions used by unit tests

// Inject a frame for NN analysis, for use by unit tests.
// Unlike Submit, this blocks until the pipeline accepts the frame.
func (m *Monitor) InjectTestFrame(id int64, pts time.Time, img *cimg.Image) {
	m.frameQueue <- camera.Frame{
		Image: img,
		ID:    id,
		PTS:   pts,
	}
}
