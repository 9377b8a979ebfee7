package services

import (
	"log"
	"time"
)

const reaperPollInterval = time.Minute

// SessionReaper periodically ends visits whose client stopped sending
// frames.
type SessionReaper struct {
	tracking *TrackingService
	timeout  time.Duration
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewSessionReaper(tracking *TrackingService, timeout time.Duration) *SessionReaper {
	return &SessionReaper{
		tracking: tracking,
		timeout:  timeout,
		interval: reaperPollInterval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

func (r *SessionReaper) Start() {
	if r.tracking == nil || r.timeout <= 0 {
		close(r.doneChan)
		return
	}
	go r.loop()
	log.Printf("Session reaper started (idle timeout %s)", r.timeout)
}

func (r *SessionReaper) Stop() {
	select {
	case <-r.stopChan:
	default:
		close(r.stopChan)
	}
	<-r.doneChan
}

func (r *SessionReaper) loop() {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case now := <-ticker.C:
			if n := r.tracking.ReapIdle(now, r.timeout); n > 0 {
				log.Printf("Session reaper ended %d idle sessions", n)
			}
		}
	}
}
