package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cmkbridge/cmkbridge/internal/cache"
	"github.com/cmkbridge/cmkbridge/internal/database"
	"github.com/cmkbridge/cmkbridge/internal/servicedesk"
)

// ErrStorage wraps database failures on the ingestion path
var ErrStorage = errors.New("storage error")

// Outcome classifies what ingesting a notification did
type Outcome string

const (
	OutcomeCreated         Outcome = "created"
	OutcomeAlreadyExists   Outcome = "alreadyExists"
	OutcomeRecoveryIgnored Outcome = "recoveryIgnored"
)

// Result describes a successful ingestion
type Result struct {
	Outcome   Outcome
	RequestID string
	Request   *servicedesk.Request
}

// TicketOpener opens a ticket for a notification
type TicketOpener interface {
	OpenTicket(ctx context.Context, n *Notification) (*servicedesk.Request, error)
}

// Pipeline turns validated notifications into tracked problems and tickets.
// The cache is a fast duplicate filter; the store stays authoritative.
type Pipeline struct {
	Store   *database.Store
	Cache   *cache.ProblemCache
	Tickets TicketOpener
}

// Ingest processes one notification: recoveries are ignored, duplicates are
// detected via the link table, and everything else gets a ticket linked to
// its problem record.
func (p *Pipeline) Ingest(ctx context.Context, n *Notification) (*Result, error) {
	if n.IsRecovery() {
		log.Printf("Ignoring recovery notification for host %q", n.HostName)
		return &Result{Outcome: OutcomeRecoveryIgnored}, nil
	}

	problem := n.ToProblem()
	problemRowID, err := p.Store.UpsertProblem(problem)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to track problem %s: %v", ErrStorage, problem.ProblemID, err)
	}

	if p.Cache != nil && p.Cache.Exists(problem.ProblemID) {
		log.Printf("Problem %s found in cache, checking link table", problem.ProblemID)
	}
	requestID, linked, err := p.Store.LinkExists(problemRowID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check link for problem %s: %v", ErrStorage, problem.ProblemID, err)
	}
	if linked {
		log.Printf("Request %s already exists for problem %s", requestID, problem.ProblemID)
		return &Result{Outcome: OutcomeAlreadyExists, RequestID: requestID}, nil
	}

	req, err := p.Tickets.OpenTicket(ctx, n)
	if err != nil {
		return nil, err
	}

	requestRowID, err := p.Store.UpsertRequest(req.ID, req.Status.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to record request %s: %v", ErrStorage, req.ID, err)
	}

	if err := p.Store.CreateLink(problemRowID, requestRowID); err != nil {
		if errors.Is(err, database.ErrDuplicateLink) {
			// A concurrent ingest won the race after we created the ticket.
			// The ticket exists either way, so report success.
			log.Printf("Problem %s was linked concurrently, keeping request %s", problem.ProblemID, req.ID)
			return &Result{Outcome: OutcomeCreated, RequestID: req.ID, Request: req}, nil
		}
		return nil, fmt.Errorf("%w: failed to link problem %s with request %s: %v",
			ErrStorage, problem.ProblemID, req.ID, err)
	}

	log.Printf("Linked problem %s with request %s", problem.ProblemID, req.ID)
	return &Result{Outcome: OutcomeCreated, RequestID: req.ID, Request: req}, nil
}
