package server

import (
	"net/http"

	"github.com/cyclopcam/birdwatch/server/monitor"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// SetupHTTP starts the preview/API server. It serves the latest annotated
// frame, the sightings history, and a live websocket feed of detections.
// port example: ":8095"
func (s *Server) SetupHTTP(port string) {
	router := httprouter.New()
	www.Handle(s.Log, router, "GET", "/api/ping", s.httpPing)
	www.Handle(s.Log, router, "GET", "/api/sightings", s.httpSightings)
	www.Handle(s.Log, router, "GET", "/api/sightings/latest", s.httpSightingsLatest)
	www.Handle(s.Log, router, "GET", "/api/latest.jpg", s.httpLatestJPEG)
	www.Handle(s.Log, router, "GET", "/api/live", s.httpLive)

	go func() {
		s.Log.Infof("Listening on %v", port)
		if err := http.ListenAndServe(port, router); err != nil {
			s.Log.Errorf("HTTP server: %v", err)
		}
	}()
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) httpSightings(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	limit := www.QueryInt(r, "limit")
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	sightings, err := s.events.Recent(limit)
	www.Check(err)
	www.SendJSON(w, sightings)
}

func (s *Server) httpSightingsLatest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	latest, err := s.events.Latest()
	www.Check(err)
	if latest == nil {
		www.SendError(w, "No sightings yet", http.StatusNotFound)
		return
	}
	www.SendJSON(w, latest)
}

func (s *Server) httpLatestJPEG(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	jpeg := s.snapshots.LatestJPEG()
	if jpeg == nil {
		www.SendError(w, "No frame yet", http.StatusNotFound)
		return
	}
	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpeg)
}

// httpLive streams detection results over a websocket, one JSON message per
// analyzed frame. The frame image itself is not included; poll
// /api/latest.jpg for pixels.
func (s *Server) httpLive(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("live websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	incoming := s.monitor.AddWatcher()
	defer s.monitor.RemoveWatcher(incoming)

	for {
		var det *monitor.Detection
		select {
		case <-s.ShutdownStarted:
			return
		case det = <-incoming:
		}
		if err := c.WriteJSON(det); err != nil {
			// Client went away
			return
		}
	}
}
