package nn

import (
	"encoding/json"
	"os"
)

// Package nn is the neural network interface layer.
// Concrete detectors (eg the Hailo accelerator in pkg/nnaccel) implement
// ObjectDetector. To resolve and load a model, use the nnload package.

const DefaultProbabilityThreshold = 0.5
const DefaultNmsIouThreshold = 0.45

// NN object detection parameters
type DetectionParams struct {
	ProbabilityThreshold float32 // Value between 0 and 1. Lower values will find more objects. Zero value will use the default.
	NmsIouThreshold      float32 // Value between 0 and 1. Lower values will merge more objects together into one. Zero value will use the default.
}

// Create a default DetectionParams object
func NewDetectionParams() *DetectionParams {
	return &DetectionParams{
		ProbabilityThreshold: DefaultProbabilityThreshold,
		NmsIouThreshold:      DefaultNmsIouThreshold,
	}
}

// ModelSetup is specified when loading a model. Accelerators bake these
// parameters into the compiled network at load time, which is why they exist
// here in addition to DetectionParams.
type ModelSetup struct {
	BatchSize            int
	ProbabilityThreshold float32
	NmsIouThreshold      float32
}

func NewModelSetup() *ModelSetup {
	return &ModelSetup{
		BatchSize:            1,
		ProbabilityThreshold: DefaultProbabilityThreshold,
		NmsIouThreshold:      DefaultNmsIouThreshold,
	}
}

// ImageBatch is one or more images, packed into a single memory buffer,
// ready to be sent to an NN for object detection.
// Accelerators want each image to start on a page boundary, so BatchStride
// is usually the page-aligned image size, not Height*Stride.
type ImageBatch struct {
	BatchSize   int    // Number of images in the batch
	BatchStride int    // Bytes between the start of each image
	Width       int    // Width of each image
	Height      int    // Height of each image
	NChan       int    // Number of channels (eg 3 for RGB)
	Stride      int    // Bytes between rows within an image
	Pixels      []byte // The batch memory block
}

func MakeImageBatch(batchSize, batchStride, width, height, nchan, stride int, pixels []byte) ImageBatch {
	return ImageBatch{
		BatchSize:   batchSize,
		BatchStride: batchStride,
		Width:       width,
		Height:      height,
		NChan:       nchan,
		Stride:      stride,
		Pixels:      pixels,
	}
}

// ObjectDetector is given a batch of images, and returns zero or more detected objects per image
type ObjectDetector interface {
	// Close closes the detector (you MUST call this when finished, because it's a C++ object underneath)
	Close()

	// DetectObjects returns a list of objects detected in each image of the batch.
	// Boxes are in NN input coordinates (ie Config().Width x Config().Height).
	DetectObjects(batch ImageBatch, params *DetectionParams) ([][]ObjectDetection, error)

	// Model Config.
	// Callers assume that ModelConfig will remain constant, so don't change it
	// once the detector has been created.
	Config() *ModelConfig
}

// ModelConfig is saved in a JSON file along with the compiled NN model
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "yolov8"
	Width        int      `json:"width"`        // eg 640
	Height       int      `json:"height"`       // eg 640
	Classes      []string `json:"classes"`      // eg ["person", "bicycle", "car", ...]
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, err
	}
	return config, nil
}
