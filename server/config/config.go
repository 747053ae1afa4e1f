// Package config loads the birdwatch JSON config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LocationConfig is where the camera is. We need it to know when the sun
// is up. Defaults to Prague.
type LocationConfig struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type CameraConfig struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	FPS      int `json:"fps"`
	Rotation int `json:"rotation"` // 0, 90, 180, 270
}

type ModelConfig struct {
	Dir       string `json:"dir"`       // Local model cache, eg ~/.cache/birdwatch/models
	Name      string `json:"name"`      // eg "yolov8m". Empty = pick by device architecture.
	BatchSize int    `json:"batchSize"` // NN inference batch size
	ZooURL    string `json:"zooUrl"`    // Base URL for model downloads
}

type NotifyConfig struct {
	// Shoutrrr service URLs, eg "telegram://token@telegram?chats=@channel"
	URLs []string `json:"urls"`
	// Send a notification once this many sightings land inside IntervalSeconds
	Threshold       int `json:"threshold"`
	IntervalSeconds int `json:"intervalSeconds"`
	// Minimum seconds between notifications
	CooldownSeconds int `json:"cooldownSeconds"`
}

type Config struct {
	Location LocationConfig `json:"location"`

	// Class names we act on. Anything else the network detects is ignored.
	Labels []string `json:"labels"`

	MinConfidence  float32 `json:"minConfidence"`
	MinBoxFraction float32 `json:"minBoxFraction"` // Min box area as a fraction of the frame

	SnapshotDir             string `json:"snapshotDir"`
	SnapshotIntervalSeconds int    `json:"snapshotIntervalSeconds"`

	Camera CameraConfig `json:"camera"`
	Model  ModelConfig  `json:"model"`

	// HTTP listen address for the preview/API server, eg ":8095"
	HTTP string `json:"http"`

	Notify NotifyConfig `json:"notify"`
}

// Prague
const (
	DefaultLatitude  = 50.0755
	DefaultLongitude = 14.4378
)

func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Location:                LocationConfig{Latitude: DefaultLatitude, Longitude: DefaultLongitude},
		Labels:                  []string{"bird"},
		MinConfidence:           0.3,
		MinBoxFraction:          0.0025,
		SnapshotDir:             filepath.Join(home, "birdwatch", "snapshots"),
		SnapshotIntervalSeconds: 1,
		Camera: CameraConfig{
			Width:  1920,
			Height: 1080,
			FPS:    30,
		},
		Model: ModelConfig{
			Dir:       filepath.Join(home, ".cache", "birdwatch", "models"),
			BatchSize: 2,
			ZooURL:    "https://models.cyclopcam.org",
		},
		HTTP: ":8095",
		Notify: NotifyConfig{
			Threshold:       5,
			IntervalSeconds: 30,
			CooldownSeconds: 300,
		},
	}
}

// Load reads the config file at path, applying defaults for anything the
// file doesn't set. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("Failed to parse config file %v: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Labels) == 0 {
		return fmt.Errorf("labels must not be empty")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("minConfidence must be between 0 and 1")
	}
	if c.MinBoxFraction < 0 || c.MinBoxFraction > 1 {
		return fmt.Errorf("minBoxFraction must be between 0 and 1")
	}
	switch c.Camera.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("rotation must be 0, 90, 180 or 270 (not %v)", c.Camera.Rotation)
	}
	if c.Model.BatchSize < 1 {
		return fmt.Errorf("model batchSize must be at least 1")
	}
	if c.SnapshotIntervalSeconds < 0 {
		return fmt.Errorf("snapshotIntervalSeconds must not be negative")
	}
	return nil
}
