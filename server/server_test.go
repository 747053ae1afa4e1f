package server

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/birdwatch/pkg/nn"
	"github.com/cyclopcam/birdwatch/server/camera"
	"github.com/cyclopcam/birdwatch/server/config"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

// fakeSource is a camera that emits whatever frames the test pushes into it.
type fakeSource struct {
	frames chan camera.Frame
	closed atomic.Bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(chan camera.Frame, 16)}
}

func (f *fakeSource) Start() error {
	return nil
}

func (f *fakeSource) Frames() <-chan camera.Frame {
	return f.frames
}

func (f *fakeSource) Close() {
	if f.closed.CompareAndSwap(false, true) {
		close(f.frames)
	}
}

// fakeDetector returns the same canned detections (in NN coordinates) for
// every image in a batch.
type fakeDetector struct {
	objects []nn.ObjectDetection
}

func (d *fakeDetector) Close() {}

func (d *fakeDetector) DetectObjects(batch nn.ImageBatch, params *nn.DetectionParams) ([][]nn.ObjectDetection, error) {
	result := make([][]nn.ObjectDetection, batch.BatchSize)
	for i := range result {
		result[i] = append([]nn.ObjectDetection{}, d.objects...)
	}
	return result, nil
}

func (d *fakeDetector) Config() *nn.ModelConfig {
	return &nn.ModelConfig{
		Architecture: "yolov8",
		Width:        640,
		Height:       640,
		Classes:      nn.COCOClasses,
	}
}

// Run a frame through the whole pipeline, then shut down, and verify that
// the shutdown is clean: camera stopped, worker threads exited, DB closed.
func TestServerShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.SnapshotDir = t.TempDir()
	cfg.Model.BatchSize = 1

	source := newFakeSource()
	detector := &fakeDetector{
		objects: []nn.ObjectDetection{
			{Class: nn.COCOBird, Confidence: 0.9, Box: nn.Rect{X: 200, Y: 200, Width: 200, Height: 150}},
		},
	}

	srv, err := NewServer(logs.NewTestingLog(t), cfg, source, detector, nn.NewModelSetup())
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	source.frames <- camera.Frame{Image: cimg.NewImage(320, 240, cimg.PixelFormatRGB), ID: 1, PTS: time.Now()}

	// Wait for the sighting to come out the other end of the pipeline
	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := srv.events.Count()
		require.NoError(t, err)
		if n == 1 {
			break
		}
		require.True(t, time.Now().Before(deadline), "Sighting was never recorded")
		time.Sleep(5 * time.Millisecond)
	}

	recent, err := srv.events.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "bird", recent[0].Label)
	require.NotEqual(t, "", recent[0].SnapshotPath)
	_, err = os.Stat(recent[0].SnapshotPath)
	require.NoError(t, err)

	srv.Shutdown(nil)
	require.NoError(t, srv.Wait())

	// Camera stopped, pump and storage threads gone, DB closed
	require.True(t, source.closed.Load())
	<-srv.pumpClosed
	<-srv.storageClosed
	_, err = srv.events.Count()
	require.Error(t, err)
}

// Shutdown must be safe to call more than once, and from the pump itself
// when the camera ends on its own.
func TestServerShutdownOnSourceEnd(t *testing.T) {
	cfg := config.Default()
	cfg.SnapshotDir = t.TempDir()
	cfg.Model.BatchSize = 1

	source := newFakeSource()
	srv, err := NewServer(logs.NewTestingLog(t), cfg, source, &fakeDetector{}, nn.NewModelSetup())
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	// End of stream. The pump notices and initiates the shutdown.
	source.Close()
	require.NoError(t, srv.Wait())

	srv.Shutdown(nil)
	require.NoError(t, srv.Wait())
}
