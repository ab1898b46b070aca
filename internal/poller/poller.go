package poller

import (
	"context"
	"log"
	"time"
)

// Task is one unit of periodic work: a single poll of an external resource.
type Task func(ctx context.Context) error

// Poller runs a task periodically with exponential backoff on consecutive
// failures. It never starts a new attempt before the previous one finishes,
// bounding concurrent load on each external API to one in-flight poll, and it
// never gives up: after MaxRetries consecutive failures the backoff resets to
// the base interval and polling continues.
type Poller struct {
	Name       string
	Interval   time.Duration
	MaxRetries int
	Task       Task

	failures int
	wait     time.Duration
}

// New creates a poller for the given task
func New(name string, interval time.Duration, maxRetries int, task Task) *Poller {
	return &Poller{
		Name:       name,
		Interval:   interval,
		MaxRetries: maxRetries,
		Task:       task,
	}
}

// Run polls until the context is cancelled. The first attempt happens
// immediately so caches warm up without waiting a full interval.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("%s poller started (interval %s)", p.Name, p.Interval)
	p.wait = p.Interval

	for {
		p.observe(p.Task(ctx))

		select {
		case <-ctx.Done():
			log.Printf("%s poller stopped", p.Name)
			return
		case <-time.After(p.wait):
		}
	}
}

// observe updates the backoff state after one attempt and returns the wait
// before the next attempt. Split out from Run so the backoff behavior is
// testable without real timers.
func (p *Poller) observe(err error) time.Duration {
	if err == nil {
		if p.failures > 0 {
			log.Printf("%s poll succeeded after %d failed attempt(s)", p.Name, p.failures)
		}
		p.failures = 0
		p.wait = p.Interval
		return p.wait
	}

	p.failures++
	p.wait *= 2
	log.Printf("%s poll failed (attempt %d/%d): %v", p.Name, p.failures, p.MaxRetries, err)

	if p.failures >= p.MaxRetries {
		log.Printf("%s poll failed %d times in a row, resuming at base interval %s",
			p.Name, p.MaxRetries, p.Interval)
		p.failures = 0
		p.wait = p.Interval
	}
	return p.wait
}
