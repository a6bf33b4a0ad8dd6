package service

import (
	"context"
	"log"
	"time"
)

// Reaper periodically expires idle sessions through Service.ExpireIdle, so the
// background path and the on-demand status path share one transition function.
type Reaper struct {
	svc      *Service
	interval time.Duration
}

// NewReaper returns a Reaper that scans every interval.
func NewReaper(svc *Service, interval time.Duration) *Reaper {
	return &Reaper{svc: svc, interval: interval}
}

// Run blocks, scanning on each tick until ctx is cancelled. An in-flight pass
// observes ctx through the store calls, so shutdown aborts it cleanly without
// leaving a record half-updated (each per-record update is atomic).
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("reaper: scanning every %s", r.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("reaper: stopped")
			return
		case <-ticker.C:
			n, err := r.svc.ExpireIdle(ctx, "reaper")
			if err != nil {
				if ctx.Err() != nil {
					log.Println("reaper: stopped")
					return
				}
				log.Printf("reaper: pass failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("reaper: closed %d idle session(s)", n)
			}
		}
	}
}
