package nnload

// Package nnload wraps up our 'nn' interface layer, and has concrete references to the
// accelerator shim, so that you can just call one function to load a model, and not
// need to know about the implementation details.
//
// This is also the place where we detect the Hailo accelerator and figure out which
// model from the zoo is appropriate for it.

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyclopcam/birdwatch/pkg/nn"
	"github.com/cyclopcam/birdwatch/pkg/nnaccel"
	"github.com/cyclopcam/birdwatch/pkg/shell"
	"github.com/cyclopcam/logs"
)

// If not nil, then we have successfully loaded the Hailo accelerator shim
var hailoAccel *nnaccel.Accelerator
var isLoaded bool

// Return true if we have a Hailo accelerator
func HaveHailo() bool {
	return hailoAccel != nil
}

// Return the NN accelerator that we choose to use (or nil if none was found)
func Accelerator() *nnaccel.Accelerator {
	// If we supported more accelerators, then they'd go here
	return hailoAccel
}

// LoadAccelerator loads the accelerator shim library. It is safe to call
// more than once.
func LoadAccelerator(logger logs.Log) {
	if isLoaded {
		return
	}
	isLoaded = true
	accel, err := nnaccel.Load("hailo")
	if err != nil {
		logger.Infof("Failed to load Hailo accelerator: %v", err)
		return
	}
	logger.Infof("Loaded Hailo accelerator")
	hailoAccel = accel
}

// DetectArch returns the architecture of the attached accelerator, eg
// "hailo8" or "hailo8l". The BIRDWATCH_ARCH environment variable, if set,
// overrides detection.
func DetectArch() (string, error) {
	if arch := os.Getenv("BIRDWATCH_ARCH"); arch != "" {
		return strings.ToLower(arch), nil
	}
	// hailortcli can wedge when the driver is in a bad state
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	out, err := shell.RunCtx(ctx, "hailortcli", "fw-control", "identify")
	if err != nil {
		return "", fmt.Errorf("hailortcli identify failed: %w", err)
	}
	return ParseArch(out)
}

// ParseArch extracts the device architecture from the output of
// "hailortcli fw-control identify".
func ParseArch(identifyOutput string) (string, error) {
	upper := strings.ToUpper(identifyOutput)
	// HAILO8L must be tested first, because HAILO8 is a prefix of it
	if strings.Contains(upper, "HAILO8L") || strings.Contains(upper, "HAILO-8L") {
		return "hailo8l", nil
	}
	if strings.Contains(upper, "HAILO8") || strings.Contains(upper, "HAILO-8") {
		return "hailo8", nil
	}
	return "", fmt.Errorf("Unrecognized device architecture in: %v", strings.TrimSpace(identifyOutput))
}

// ModelForArch returns the model name from the zoo that we run on the given
// architecture. The 8L has roughly half the compute of the full Hailo-8, so
// it gets the smaller network.
func ModelForArch(arch string) string {
	switch arch {
	case "hailo8":
		return "yolov8m"
	default:
		return "yolov8s"
	}
}

func downloadFile(srcUrl, targetFile string) error {
	tempFile := targetFile + ".tmp"
	if err := os.MkdirAll(filepath.Dir(targetFile), 0755); err != nil {
		return err
	}
	resp, err := http.DefaultClient.Get(srcUrl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP error %v", resp.Status)
	}
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(file, resp.Body)
	if err != nil {
		return err
	}
	file.Close()
	return os.Rename(tempFile, targetFile)
}

func ModelStub(modelName string, width, height int) string {
	// eg "yolov8m_640_640"
	return fmt.Sprintf("%v_%v_%v", modelName, width, height)
}

// ModelSpec identifies the model files on disk (and in the zoo).
type ModelSpec struct {
	BaseURL   string // Model zoo, eg "https://models.cyclopcam.org"
	ModelDir  string // Local cache directory
	ModelName string // eg "yolov8m"
	Width     int
	Height    int
	HefPath   string // If set, load this .hef directly and skip the zoo
}

// If the model files are not yet downloaded, then download them now.
// Returns immediately if the files are already downloaded.
func DownloadModel(logger logs.Log, device *nnaccel.Device, spec ModelSpec) error {
	subdir, ext := device.ModelFiles()
	extensions := append([]string{".json"}, ext...)
	modelStub := ModelStub(spec.ModelName, spec.Width, spec.Height)

	for _, ext := range extensions {
		diskPath := filepath.Join(spec.ModelDir, subdir, modelStub+ext)
		networkUrl := spec.BaseURL + "/" + subdir + "/" + modelStub + ext
		if _, err := os.Stat(diskPath); os.IsNotExist(err) {
			logger.Infof("Downloading %v to %v", networkUrl, diskPath)
			if err := downloadFile(networkUrl, diskPath); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}

	return nil
}

// LoadModel downloads the model files if necessary, and loads the model onto
// the device. There is no CPU fallback; if device is nil we fail.
func LoadModel(logger logs.Log, device *nnaccel.Device, spec ModelSpec, modelSetup *nn.ModelSetup) (nn.ObjectDetector, error) {
	if device == nil {
		return nil, fmt.Errorf("No NN accelerator device")
	}

	if spec.HefPath != "" {
		// User-supplied model. The config json must sit next to it.
		configPath := strings.TrimSuffix(spec.HefPath, filepath.Ext(spec.HefPath)) + ".json"
		config, err := nn.LoadModelConfig(configPath)
		if err != nil {
			return nil, err
		}
		return device.LoadModel(spec.HefPath, config, modelSetup)
	}

	if err := DownloadModel(logger, device, spec); err != nil {
		return nil, fmt.Errorf("Download failed: %w", err)
	}

	subdir, ext := device.ModelFiles()
	fullPathBase := filepath.Join(spec.ModelDir, subdir, ModelStub(spec.ModelName, spec.Width, spec.Height))
	config, err := nn.LoadModelConfig(fullPathBase + ".json")
	if err != nil {
		return nil, err
	}

	fullModelFilename := fullPathBase
	if len(ext) == 1 {
		// eg ext[0] = ".hef"
		fullModelFilename += ext[0]
	}
	return device.LoadModel(fullModelFilename, config, modelSetup)
}
