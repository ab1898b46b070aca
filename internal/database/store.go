package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateLink is returned by CreateLink when the problem already has a
// request linked to it. Callers treat this as a race, not a hard failure.
var ErrDuplicateLink = errors.New("a request is already linked to this problem")

// Store owns all durable state of the bridge: problems, requests and the
// links between them. Every write goes through a scoped transaction.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store on top of an existing GORM connection
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// UpsertProblem inserts the problem or, when a row with the same Checkmk
// problem id exists, updates its state and raw payload in place. Returns the
// internal row id. The acknowledged flag of an existing row is preserved.
func (s *Store) UpsertProblem(p *Problem) (uint, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "problem_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "raw_payload", "updated_at"}),
		}).Create(p).Error; err != nil {
			return err
		}
		if p.ID != 0 {
			return nil
		}
		// Conflict path on drivers that don't hand back the row id
		var existing Problem
		if err := tx.Where("problem_id = ?", p.ProblemID).First(&existing).Error; err != nil {
			return err
		}
		p.ID = existing.ID
		p.Acknowledged = existing.Acknowledged
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert problem %q: %w", p.ProblemID, err)
	}
	return p.ID, nil
}

// UpsertRequest records a ServiceDesk request, updating the stored status if
// the request is already known. Returns the internal row id.
func (s *Store) UpsertRequest(requestID, status string) (uint, error) {
	req := &Request{RequestID: requestID, Status: status}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).Create(req).Error; err != nil {
			return err
		}
		if req.ID != 0 {
			return nil
		}
		var existing Request
		if err := tx.Where("request_id = ?", requestID).First(&existing).Error; err != nil {
			return err
		}
		req.ID = existing.ID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert request %q: %w", requestID, err)
	}
	return req.ID, nil
}

// LinkExists reports whether a request has already been linked to the given
// problem row. Returns the remote request id when a link exists. This is the
// authoritative dedup check on the ingestion path.
func (s *Store) LinkExists(problemRowID uint) (string, bool, error) {
	var results []string
	err := s.db.Table("problem_request_links AS l").
		Select("r.request_id").
		Joins("JOIN servicedesk_requests r ON l.request_id = r.id").
		Where("l.problem_id = ?", problemRowID).
		Limit(1).
		Scan(&results).Error
	if err != nil {
		return "", false, fmt.Errorf("failed to check link for problem row %d: %w", problemRowID, err)
	}
	if len(results) == 0 {
		return "", false, nil
	}
	return results[0], true, nil
}

// CreateLink links a problem row to a request row. Returns ErrDuplicateLink
// if a link already exists for the problem, guarding the race between two
// concurrent ingestions of the same alert.
func (s *Store) CreateLink(problemRowID, requestRowID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ProblemRequestLink{}).
			Where("problem_id = ?", problemRowID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check existing link: %w", err)
		}
		if count > 0 {
			return ErrDuplicateLink
		}
		link := &ProblemRequestLink{ProblemID: problemRowID, RequestID: requestRowID}
		if err := tx.Create(link).Error; err != nil {
			return fmt.Errorf("failed to create link: %w", err)
		}
		return nil
	})
}

// MarkAcknowledged sets the acknowledged flag on a problem row. Marking an
// already-acknowledged problem is a no-op, not an error.
func (s *Store) MarkAcknowledged(problemRowID uint) error {
	err := s.db.Model(&Problem{}).
		Where("id = ?", problemRowID).
		Update("acknowledged", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark problem row %d acknowledged: %w", problemRowID, err)
	}
	return nil
}

const snapshotSelect = `p.id AS problem_row_id, p.problem_id, p.host_name,
	p.service_check_command, p.service_description, p.state, p.kind,
	p.acknowledged, r.id AS request_row_id, r.request_id,
	r.status AS request_status`

// SnapshotLinks joins problems, requests and links into denormalized rows
// for the problem cache. Ordered by link id so refreshes are deterministic.
func (s *Store) SnapshotLinks() ([]LinkSnapshot, error) {
	var rows []LinkSnapshot
	err := s.db.Table("problem_request_links AS l").
		Select(snapshotSelect).
		Joins("JOIN checkmk_problems p ON l.problem_id = p.id").
		Joins("JOIN servicedesk_requests r ON l.request_id = r.id").
		Order("l.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot links: %w", err)
	}
	return rows, nil
}

// ProblemForRequest resolves the problem linked to a remote request id.
// Returns nil when no link is known for that request.
func (s *Store) ProblemForRequest(requestID string) (*LinkSnapshot, error) {
	var rows []LinkSnapshot
	err := s.db.Table("problem_request_links AS l").
		Select(snapshotSelect).
		Joins("JOIN checkmk_problems p ON l.problem_id = p.id").
		Joins("JOIN servicedesk_requests r ON l.request_id = r.id").
		Where("r.request_id = ?", requestID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up problem for request %q: %w", requestID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
