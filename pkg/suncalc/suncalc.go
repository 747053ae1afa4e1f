// Package suncalc answers the question "is the sun up right now, here?"
package suncalc

import (
	"fmt"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// Window is the daylight window for one calendar day.
type Window struct {
	Sunrise time.Time
	Sunset  time.Time
}

// Calculator computes and caches daylight windows for a fixed location.
type Calculator struct {
	observer astral.Observer

	lock  sync.Mutex
	cache map[string]Window // keyed on "2006-01-02" of the query time
}

func New(latitude, longitude float64) *Calculator {
	return &Calculator{
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		cache:    map[string]Window{},
	}
}

// WindowFor returns the daylight window for the day containing t.
// Times are returned in t's location.
func (c *Calculator) WindowFor(t time.Time) (Window, error) {
	key := t.Format("2006-01-02")
	c.lock.Lock()
	cached, ok := c.cache[key]
	c.lock.Unlock()
	if ok {
		return cached, nil
	}

	sunrise, err := astral.Sunrise(c.observer, t)
	if err != nil {
		return Window{}, fmt.Errorf("sunrise: %w", err)
	}
	sunset, err := astral.Sunset(c.observer, t)
	if err != nil {
		return Window{}, fmt.Errorf("sunset: %w", err)
	}
	w := Window{
		Sunrise: sunrise.In(t.Location()),
		Sunset:  sunset.In(t.Location()),
	}

	c.lock.Lock()
	c.cache[key] = w
	c.lock.Unlock()
	return w, nil
}

// IsDaylight returns true if t falls between sunrise and sunset.
func (c *Calculator) IsDaylight(t time.Time) (bool, error) {
	w, err := c.WindowFor(t)
	if err != nil {
		return false, err
	}
	return !t.Before(w.Sunrise) && t.Before(w.Sunset), nil
}
