// Package notify pushes sighting notifications via shoutrrr (Telegram,
// Discord, generic webhooks, etc).
//
// One bird is not news. We notify when a burst of sightings lands inside a
// short interval (the feeder is busy), and then hold off for a cooldown so
// that a busy morning doesn't turn into a hundred messages.
package notify

import (
	"fmt"
	"io"
	stdlog "log"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// Sender delivers a message. Tests substitute their own.
type Sender interface {
	Send(title, body string) error
}

type shoutrrrSender struct {
	sender *router.ServiceRouter
}

// NewShoutrrrSender builds a sender from one or more shoutrrr service URLs.
func NewShoutrrrSender(urls ...string) (Sender, error) {
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, err
	}
	sender.SetLogger(stdlog.New(io.Discard, "", 0))
	return &shoutrrrSender{sender: sender}, nil
}

func (s *shoutrrrSender) Send(title, body string) error {
	params := stypes.Params{}
	params.SetTitle(title)
	errs := s.sender.Send(body, &params)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

type Options struct {
	Threshold int           // Notify once this many sightings land inside Interval
	Interval  time.Duration // Burst window
	Cooldown  time.Duration // Minimum time between notifications
}

type Notifier struct {
	log    logs.Log
	sender Sender
	opt    Options
	now    func() time.Time // overridable for tests

	lock     sync.Mutex
	events   []time.Time
	lastSent time.Time
}

func NewNotifier(logger logs.Log, sender Sender, opt Options) *Notifier {
	if opt.Threshold < 1 {
		opt.Threshold = 1
	}
	return &Notifier{
		log:    logger,
		sender: sender,
		opt:    opt,
		now:    time.Now,
	}
}

// Sighting records one sighting, and sends a notification if this pushes us
// over the burst threshold. Sending happens on the caller's goroutine.
func (n *Notifier) Sighting(label string, t time.Time) {
	n.lock.Lock()
	n.events = append(n.events, t)
	// Discard events that have fallen out of the burst window
	cutoff := t.Add(-n.opt.Interval)
	keep := n.events[:0]
	for _, ev := range n.events {
		if !ev.Before(cutoff) {
			keep = append(keep, ev)
		}
	}
	n.events = keep

	count := len(n.events)
	shouldSend := count >= n.opt.Threshold && n.now().Sub(n.lastSent) >= n.opt.Cooldown
	if shouldSend {
		n.lastSent = n.now()
		n.events = n.events[:0]
	}
	n.lock.Unlock()

	if !shouldSend {
		return
	}
	title := "Birdwatch"
	body := fmt.Sprintf("Busy feeder: %v %v sightings in the last %v", count, label, n.opt.Interval)
	if err := n.sender.Send(title, body); err != nil {
		n.log.Warnf("Failed to send notification: %v", err)
	} else {
		n.log.Infof("Sent notification (%v sightings)", count)
	}
}
