package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/birdwatch/pkg/lockfile"
	"github.com/cyclopcam/birdwatch/pkg/nn"
	"github.com/cyclopcam/birdwatch/pkg/nnload"
	"github.com/cyclopcam/birdwatch/pkg/suncalc"
	"github.com/cyclopcam/birdwatch/server"
	"github.com/cyclopcam/birdwatch/server/camera"
	"github.com/cyclopcam/birdwatch/server/config"
	"github.com/cyclopcam/logs"
)

func main() {
	parser := argparse.NewParser("birdwatch", "Balcony bird detector")
	input := parser.String("i", "input", &argparse.Options{Help: "Video input: 'rpi', a /dev/videoN device, an rtsp:// URL, or a video file", Default: "rpi"})
	configFile := parser.String("c", "config", &argparse.Options{Help: "Configuration file", Default: ""})
	timeout := parser.Int("t", "timeout", &argparse.Options{Help: "Stop after this many seconds (0 = run forever)", Default: 0})
	displayOff := parser.Flag("", "display-off", &argparse.Options{Help: "Disable the HTTP preview/API server", Default: false})
	arch := parser.String("", "arch", &argparse.Options{Help: "Force accelerator architecture (hailo8, hailo8l) instead of detecting it", Default: ""})
	hefPath := parser.String("", "hef", &argparse.Options{Help: "Load this model file instead of downloading from the model zoo", Default: ""})
	force := parser.Flag("", "force", &argparse.Options{Help: "Run even when the sun is down", Default: false})
	hailoMonitor := parser.Flag("", "hailo-monitor", &argparse.Options{Help: "Enable the Hailo monitor (hailortcli monitor)", Default: false})
	lockPath := parser.String("", "lockfile", &argparse.Options{Help: "Lock file path, to stop overlapping cron runs", Default: "/tmp/birdwatch.lock"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// We run from cron every hour. If the previous run is still going, that
	// is normal, not an error.
	lock, err := lockfile.Acquire(*lockPath)
	if errors.Is(err, lockfile.ErrLocked) {
		logger.Infof("Another instance is running (lock %v). Nothing to do.", *lockPath)
		os.Exit(0)
	} else if err != nil {
		logger.Errorf("Failed to acquire lock %v: %v", *lockPath, err)
		os.Exit(1)
	}

	// os.Exit skips deferred functions, so every exit from here on goes
	// through this, to release the lock.
	exit := func(code int) {
		if err := lock.Release(); err != nil {
			logger.Errorf("Failed to remove lock %v: %v", lock.Path(), err)
		}
		os.Exit(code)
	}

	// No birds at night
	if !*force {
		sun := suncalc.New(cfg.Location.Latitude, cfg.Location.Longitude)
		daylight, err := sun.IsDaylight(time.Now())
		if err != nil {
			logger.Errorf("Failed to compute daylight window: %v", err)
			exit(1)
		}
		if !daylight {
			logger.Infof("The sun is down. Nothing to do.")
			exit(0)
		}
	}

	if *hailoMonitor {
		os.Setenv("HAILO_MONITOR", "1")
	}

	detector, setup, err := loadDetector(logger, cfg, *arch, *hefPath)
	if err != nil {
		logger.Errorf("%v", err)
		exit(1)
	}

	source, err := camera.NewSource(logger, *input, camera.Options{
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		FPS:      cfg.Camera.FPS,
		Rotation: cfg.Camera.Rotation,
	})
	if err != nil {
		logger.Errorf("%v", err)
		exit(1)
	}

	srv, err := server.NewServer(logger, cfg, source, detector, setup)
	if err != nil {
		logger.Errorf("%v", err)
		exit(1)
	}
	if err := srv.Start(); err != nil {
		logger.Errorf("%v", err)
		exit(1)
	}
	if !*displayOff {
		srv.SetupHTTP(cfg.HTTP)
	}

	daemon.SdNotify(false, daemon.SdNotifyReady)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		received := <-sig
		logger.Infof("Received signal %v", received)
		srv.Shutdown(nil)
	}()

	if *timeout > 0 {
		time.AfterFunc(time.Duration(*timeout)*time.Second, func() {
			logger.Infof("Run timer expired (%v seconds)", *timeout)
			srv.Shutdown(nil)
		})
	}

	err = srv.Wait()
	detector.Close()
	if err != nil {
		logger.Errorf("%v", err)
		exit(1)
	}
	logger.Infof("Goodbye")
	exit(0)
}

// loadDetector finds the accelerator, picks the right model for its
// architecture, downloads it if necessary, and loads it onto the device.
func loadDetector(logger logs.Log, cfg config.Config, archOverride, hefPath string) (nn.ObjectDetector, *nn.ModelSetup, error) {
	nnload.LoadAccelerator(logger)
	if !nnload.HaveHailo() {
		return nil, nil, fmt.Errorf("No NN accelerator found")
	}

	arch := archOverride
	if arch == "" {
		detected, err := nnload.DetectArch()
		if err != nil {
			return nil, nil, err
		}
		arch = detected
	}
	logger.Infof("Accelerator architecture: %v", arch)

	device, err := nnload.Accelerator().OpenDevice(arch)
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to open accelerator device: %w", err)
	}

	modelName := cfg.Model.Name
	if modelName == "" {
		modelName = nnload.ModelForArch(device.Arch())
	}

	setup := nn.NewModelSetup()
	setup.BatchSize = cfg.Model.BatchSize
	detector, err := nnload.LoadModel(logger, device, nnload.ModelSpec{
		BaseURL:   cfg.Model.ZooURL,
		ModelDir:  cfg.Model.Dir,
		ModelName: modelName,
		Width:     640,
		Height:    640,
		HefPath:   hefPath,
	}, setup)
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to load model '%v': %w", modelName, err)
	}
	logger.Infof("Loaded model %v (%vx%v)", modelName, detector.Config().Width, detector.Config().Height)
	return detector, setup, nil
}
