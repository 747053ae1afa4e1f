package monitor

import (
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/birdwatch/pkg/nn"
	"github.com/cyclopcam/birdwatch/pkg/nnaccel"
)

// An image that has been loaded into a batch
type nnBatchItem struct {
	frame        *cimg.Image
	frameID      int64
	pts          time.Time
	xformRgbToNN nn.ResizeTransform
}

// nnThread feeds frames to the NN in batches. There is exactly one of these,
// because the accelerator is a serial device.
//
// The camera produces frames continuously, but the batch might sit half full
// when the feeder is quiet, so whenever the queue runs dry we flush whatever
// we have rather than wait for the batch to fill.
func (m *Monitor) nnThread() {
	nnWidth := m.detector.Config().Width
	nnHeight := m.detector.Config().Height
	batchSize := m.modelSetup.BatchSize
	batchStride := nnBatchImageStride(nnWidth, nnHeight)

	// One big block of memory holds all of the images in a batch.
	// The Hailo runtime wants each image to start on a page boundary, and
	// cgo's pointer rules make a void** of separate blocks nasty, so a
	// single block with page-aligned strides serves both masters.
	wholeBatchImage := nnaccel.PageAlignedAlloc(batchSize * batchStride)

	detectionParams := nn.NewDetectionParams()
	detectionParams.ProbabilityThreshold = m.modelSetup.ProbabilityThreshold
	detectionParams.NmsIouThreshold = m.modelSetup.NmsIouThreshold

	lastErrAt := time.Time{}
	batch := make([]nnBatchItem, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		imageBatch := nn.MakeImageBatch(len(batch), batchStride, nnWidth, nnHeight, 3, nnWidth*3, wholeBatchImage)
		batchResult, err := m.detector.DetectObjects(imageBatch, detectionParams)
		if err != nil {
			if time.Since(lastErrAt) > 15*time.Second {
				m.Log.Errorf("Error detecting objects: %v", err)
				lastErrAt = time.Now()
			}
		} else {
			for i := range batch {
				input := &batch[i]
				objects := batchResult[i]
				input.xformRgbToNN.ApplyBackward(objects)
				// An object at the frame edge can map back to a box that
				// pokes out of the frame
				for i := range objects {
					objects[i].Box.Clip(input.frame.Width, input.frame.Height)
				}
				objects = nn.FilterDetections(objects, input.frame.Width, input.frame.Height, m.filter)
				if len(m.analyzerQueue) >= cap(m.analyzerQueue)*9/10 {
					// We do not expect this
					m.Log.Warnf("NN analyzer queue is falling behind - dropping frames")
				} else {
					m.analyzerQueue <- analyzerQueueItem{
						frame:       input.frame,
						frameID:     input.frameID,
						pts:         input.pts,
						frameWidth:  input.frame.Width,
						frameHeight: input.frame.Height,
						objects:     objects,
					}
				}
			}
		}
		batch = batch[:0]
	}

	for {
		frame, ok := <-m.frameQueue
		if !ok {
			break
		}
		batchEl := len(batch)
		nnBlock := wholeBatchImage[batchEl*batchStride : (batchEl+1)*batchStride]
		xform := m.prepareImageForNN(frame.Image, nnBlock, nnWidth, nnHeight)
		batch = append(batch, nnBatchItem{
			frame:        frame.Image,
			frameID:      frame.ID,
			pts:          frame.PTS,
			xformRgbToNN: xform,
		})
		if len(batch) >= batchSize || len(m.frameQueue) == 0 {
			flush()
		}
	}
	flush()

	close(m.nnThreadStopped)
}

// Return the number of bytes between each RGB image in a batch
func nnBatchImageStride(nnWidth, nnHeight int) int {
	return nnaccel.RoundUpToPageSize(nnWidth * nnHeight * 3)
}
