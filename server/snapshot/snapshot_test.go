package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/birdwatch/pkg/nn"
	"github.com/cyclopcam/birdwatch/server/monitor"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func makeDetection(t time.Time, first bool) *monitor.Detection {
	frame := cimg.NewImage(64, 48, cimg.PixelFormatRGB)
	for i := range frame.Pixels {
		frame.Pixels[i] = 0x30
	}
	return &monitor.Detection{
		Frame:       frame,
		FrameID:     1,
		Time:        t,
		FrameWidth:  64,
		FrameHeight: 48,
		Objects: []monitor.SightedObject{
			{TrackID: 1, Label: "bird", Confidence: 0.87, Box: nn.Rect{X: 10, Y: 10, Width: 20, Height: 15}, FirstSighting: first},
		},
	}
}

func TestAnnotate(t *testing.T) {
	jpeg, err := Annotate(makeDetection(time.Now(), true))
	require.NoError(t, err)
	require.NotEmpty(t, jpeg)
	// JPEG magic
	require.Equal(t, byte(0xFF), jpeg[0])
	require.Equal(t, byte(0xD8), jpeg[1])

	img, err := cimg.Decompress(jpeg)
	require.NoError(t, err)
	require.Equal(t, 64, img.Width)
	require.Equal(t, 48, img.Height)
}

func TestSaveDetection(t *testing.T) {
	root := t.TempDir()
	saver := NewSaver(logs.NewTestingLog(t), root, time.Second)

	t0 := time.Date(2026, 5, 17, 9, 30, 15, 0, time.UTC)

	path, err := saver.SaveDetection(makeDetection(t0, true))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "2026-05-17", "09-30-15.jpg"), path)
	_, err = os.Stat(path)
	require.NoError(t, err)
	require.NotEmpty(t, saver.LatestJPEG())
	require.Equal(t, path, saver.LatestPath())

	// Within the rate-limit interval, and not a first sighting: not written
	path, err = saver.SaveDetection(makeDetection(t0.Add(200*time.Millisecond), false))
	require.NoError(t, err)
	require.Equal(t, "", path)

	// A first sighting is always written
	path, err = saver.SaveDetection(makeDetection(t0.Add(400*time.Millisecond), true))
	require.NoError(t, err)
	require.NotEqual(t, "", path)

	// After the interval has passed, ordinary frames are written again
	path, err = saver.SaveDetection(makeDetection(t0.Add(2*time.Second), false))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "2026-05-17", "09-30-17.jpg"), path)

	// A new day gets a new directory
	path, err = saver.SaveDetection(makeDetection(t0.Add(24*time.Hour), false))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "2026-05-18", "09-30-15.jpg"), path)
}

func TestSaveDetectionSameSecond(t *testing.T) {
	root := t.TempDir()
	saver := NewSaver(logs.NewTestingLog(t), root, time.Second)

	// Two first sightings in the same second must both survive on disk
	t0 := time.Date(2026, 5, 17, 9, 30, 15, 0, time.UTC)
	path1, err := saver.SaveDetection(makeDetection(t0, true))
	require.NoError(t, err)
	path2, err := saver.SaveDetection(makeDetection(t0.Add(300*time.Millisecond), true))
	require.NoError(t, err)

	require.Equal(t, filepath.Join(root, "2026-05-17", "09-30-15.jpg"), path1)
	require.Equal(t, filepath.Join(root, "2026-05-17", "09-30-15-1.jpg"), path2)
	_, err = os.Stat(path1)
	require.NoError(t, err)
	_, err = os.Stat(path2)
	require.NoError(t, err)

	path3, err := saver.SaveDetection(makeDetection(t0.Add(600*time.Millisecond), true))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "2026-05-17", "09-30-15-2.jpg"), path3)
}
