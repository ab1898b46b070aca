package coordinator

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/cmkbridge/cmkbridge/internal/database"
	"github.com/cmkbridge/cmkbridge/internal/servicedesk"
)

// RequestLister exposes the polled ticket list and the browser URL builder
type RequestLister interface {
	Requests() []servicedesk.Request
	TicketURL(requestID string) string
}

// Acknowledger acknowledges problems in the monitoring system
type Acknowledger interface {
	AcknowledgeHost(ctx context.Context, hostName, comment string) error
	AcknowledgeService(ctx context.Context, hostName, serviceDescription, comment string) error
}

// AckStore persists acknowledgement state and request status audit rows
type AckStore interface {
	MarkAcknowledged(problemRowID uint) error
	UpsertRequest(requestID, status string) (uint, error)
}

// SnapshotReader resolves a ticket back to its linked problem
type SnapshotReader interface {
	ByRequestID(requestID string) *database.LinkSnapshot
}

// Coordinator walks the polled ticket list on a fixed interval and
// acknowledges the monitoring problem behind every ticket that has left the
// open state. One failed ticket never blocks the rest; anything skipped or
// failed is retried on the next tick.
type Coordinator struct {
	Tickets  RequestLister
	Monitor  Acknowledger
	Store    AckStore
	Cache    SnapshotReader
	Interval time.Duration
}

// Run processes ticks until the context is cancelled. Ticks never overlap.
func (c *Coordinator) Run(ctx context.Context) {
	log.Printf("Reconciliation loop started (interval %s)", c.Interval)
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	c.ProcessTick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Reconciliation loop stopped")
			return
		case <-ticker.C:
			c.ProcessTick(ctx)
		}
	}
}

// ProcessTick reconciles the current ticket snapshot once
func (c *Coordinator) ProcessTick(ctx context.Context) {
	acked := 0
	for _, req := range c.Tickets.Requests() {
		if ctx.Err() != nil {
			return
		}
		if c.reconcile(ctx, req) {
			acked++
		}
	}
	if acked > 0 {
		log.Printf("Reconciliation tick acknowledged %d problem(s)", acked)
	}
}

// reconcile handles one ticket and reports whether an acknowledgement was
// persisted.
func (c *Coordinator) reconcile(ctx context.Context, req servicedesk.Request) bool {
	status := strings.ToLower(req.Status.Name)
	if status == "" || status == "open" {
		return false
	}

	row := c.Cache.ByRequestID(req.ID)
	if row == nil {
		// Not one of ours, or the cache has not caught up yet
		log.Printf("Skipping request %s: no linked problem", req.ID)
		return false
	}
	if row.Acknowledged {
		return false
	}

	comment := c.Tickets.TicketURL(req.ID)
	var err error
	if row.IsService() {
		err = c.Monitor.AcknowledgeService(ctx, row.HostName, row.ServiceDescription, comment)
	} else {
		err = c.Monitor.AcknowledgeHost(ctx, row.HostName, comment)
	}
	if err != nil {
		log.Printf("Failed to acknowledge problem %s for request %s: %v", row.ProblemID, req.ID, err)
		return false
	}

	if err := c.Store.MarkAcknowledged(row.ProblemRowID); err != nil {
		// Retried next tick; the duplicate acknowledgement is harmless
		log.Printf("Failed to persist acknowledgement for problem %s: %v", row.ProblemID, err)
		return false
	}

	// Status audit trail, best effort
	if _, err := c.Store.UpsertRequest(req.ID, req.Status.Name); err != nil {
		log.Printf("Failed to update status for request %s: %v", req.ID, err)
	}

	log.Printf("Acknowledged problem %s for request %s (%s)", row.ProblemID, req.ID, req.Status.Name)
	return true
}
