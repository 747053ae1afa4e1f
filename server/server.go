// Package server wires the camera, the NN monitor, snapshot storage, the
// sightings DB, and notifications into one running system.
package server

import (
	"sync"
	"time"

	"github.com/cyclopcam/birdwatch/pkg/nn"
	"github.com/cyclopcam/birdwatch/server/camera"
	"github.com/cyclopcam/birdwatch/server/config"
	"github.com/cyclopcam/birdwatch/server/eventdb"
	"github.com/cyclopcam/birdwatch/server/monitor"
	"github.com/cyclopcam/birdwatch/server/notify"
	"github.com/cyclopcam/birdwatch/server/snapshot"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
)

type Server struct {
	Log logs.Log

	// ShutdownStarted is closed when a shutdown begins. Internal threads
	// watch it to know when to exit.
	ShutdownStarted chan bool

	cfg       config.Config
	source    camera.Source
	monitor   *monitor.Monitor
	snapshots *snapshot.Saver
	events    *eventdb.EventDB
	notifier  *notify.Notifier

	wsUpgrader websocket.Upgrader

	lock          sync.Mutex
	lastDetection *monitor.Detection

	shutdownOnce sync.Once
	shutdownDone chan bool
	shutdownErr  error

	storageClosed chan bool
	pumpClosed    chan bool
}

// NewServer assembles the pipeline. detector is the loaded NN model;
// source is the camera (or file) input.
func NewServer(logger logs.Log, cfg config.Config, source camera.Source, detector nn.ObjectDetector, setup *nn.ModelSetup) (*Server, error) {
	mon, err := monitor.NewMonitor(logger, detector, setup, monitor.Options{
		Labels:         cfg.Labels,
		MinConfidence:  cfg.MinConfidence,
		MinBoxFraction: cfg.MinBoxFraction,
	})
	if err != nil {
		return nil, err
	}
	events, err := eventdb.Open(logger, cfg.SnapshotDir)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Log:             logger,
		ShutdownStarted: make(chan bool),
		cfg:             cfg,
		source:          source,
		monitor:         mon,
		snapshots:       snapshot.NewSaver(logger, cfg.SnapshotDir, time.Duration(cfg.SnapshotIntervalSeconds)*time.Second),
		events:          events,
		shutdownDone:    make(chan bool),
		storageClosed:   make(chan bool),
		pumpClosed:      make(chan bool),
	}
	if len(cfg.Notify.URLs) != 0 {
		sender, err := notify.NewShoutrrrSender(cfg.Notify.URLs...)
		if err != nil {
			return nil, err
		}
		s.notifier = notify.NewNotifier(logger, sender, notify.Options{
			Threshold: cfg.Notify.Threshold,
			Interval:  time.Duration(cfg.Notify.IntervalSeconds) * time.Second,
			Cooldown:  time.Duration(cfg.Notify.CooldownSeconds) * time.Second,
		})
	}
	return s, nil
}

// Start spins up the pipeline: camera frames flow into the monitor, and
// detections flow out into storage.
func (s *Server) Start() error {
	s.monitor.Start()
	s.attachMonitorToStorage()
	if err := s.source.Start(); err != nil {
		s.monitor.Close()
		return err
	}
	go func() {
		for frame := range s.source.Frames() {
			s.monitor.Submit(frame)
		}
		close(s.pumpClosed)
		// The camera ended (end of file, or process died). Nothing more
		// will happen, so shut down.
		s.Shutdown(nil)
	}()
	return nil
}

// Shutdown stops the pipeline. Safe to call from any goroutine, more
// than once.
func (s *Server) Shutdown(err error) {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = err
		go func() {
			s.Log.Infof("Server shutting down")
			close(s.ShutdownStarted)
			s.source.Close()
			<-s.pumpClosed
			s.monitor.Close()
			<-s.storageClosed
			if err := s.events.Close(); err != nil {
				s.Log.Warnf("Failed to close sightings DB: %v", err)
			}
			close(s.shutdownDone)
		}()
	})
}

// Wait blocks until a shutdown has completed, and returns the error that
// caused it (nil for an orderly stop).
func (s *Server) Wait() error {
	<-s.shutdownDone
	return s.shutdownErr
}

// attachMonitorToStorage consumes detections and turns them into saved
// snapshots, DB records, and notifications.
func (s *Server) attachMonitorToStorage() {
	go func() {
		s.Log.Infof("Monitor -> storage thread starting")
		incoming := s.monitor.AddWatcher()
		keepRunning := true
		for keepRunning {
			select {
			case <-s.ShutdownStarted:
				keepRunning = false
			case det := <-incoming:
				s.handleDetection(det)
			}
		}
		s.monitor.RemoveWatcher(incoming)
		s.Log.Infof("Monitor -> storage thread exiting")
		close(s.storageClosed)
	}()
}

func (s *Server) handleDetection(det *monitor.Detection) {
	s.lock.Lock()
	s.lastDetection = det
	s.lock.Unlock()

	if len(det.Objects) == 0 {
		return
	}

	path, err := s.snapshots.SaveDetection(det)
	if err != nil {
		s.Log.Errorf("Failed to save snapshot: %v", err)
	}

	for _, obj := range det.Objects {
		if !obj.FirstSighting {
			continue
		}
		sighting := &eventdb.Sighting{
			Time:         dbh.MakeIntTime(det.Time),
			Label:        obj.Label,
			Confidence:   obj.Confidence,
			X:            obj.Box.X,
			Y:            obj.Box.Y,
			Width:        obj.Box.Width,
			Height:       obj.Box.Height,
			FrameWidth:   det.FrameWidth,
			FrameHeight:  det.FrameHeight,
			SnapshotPath: path,
		}
		if err := s.events.AddSighting(sighting); err != nil {
			s.Log.Errorf("Failed to record sighting: %v", err)
		}
		if s.notifier != nil {
			s.notifier.Sighting(obj.Label, det.Time)
		}
	}
}

// LastDetection returns the most recent analyzed frame, or nil.
func (s *Server) LastDetection() *monitor.Detection {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastDetection
}
