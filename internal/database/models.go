package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// ProblemKind discriminates host-scoped from service-scoped problems
type ProblemKind string

const (
	ProblemKindHost    ProblemKind = "host"
	ProblemKindService ProblemKind = "service"
)

// Problem represents one Checkmk problem instance tracked by the bridge.
// ProblemID is the stable identifier Checkmk assigns to the problem and is
// the business key: re-ingesting the same problem updates the row in place.
type Problem struct {
	ID                  uint        `gorm:"primaryKey" json:"id"`
	ProblemID           string      `gorm:"uniqueIndex;size:64;not null" json:"problem_id"`
	HostName            string      `gorm:"type:varchar(255)" json:"host_name"`
	ServiceCheckCommand string      `gorm:"type:varchar(255)" json:"service_check_command"`
	ServiceDescription  string      `gorm:"type:varchar(255)" json:"service_description"`
	State               string      `gorm:"type:varchar(32)" json:"state"`
	Kind                ProblemKind `gorm:"type:varchar(16);not null" json:"kind"`
	Acknowledged        bool        `gorm:"default:false" json:"acknowledged"`
	RawPayload          JSONB       `gorm:"type:jsonb" json:"raw_payload"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func (Problem) TableName() string {
	return "checkmk_problems"
}

// IsService returns true for service-scoped problems
func (p *Problem) IsService() bool {
	return p.Kind == ProblemKindService
}

// Request represents one ServiceDesk incident request created for a problem.
// RequestID is assigned by ServiceDesk; Status is refreshed from polls.
type Request struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RequestID string    `gorm:"uniqueIndex;size:64;not null" json:"request_id"`
	Status    string    `gorm:"type:varchar(64)" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Request) TableName() string {
	return "servicedesk_requests"
}

// ProblemRequestLink associates a problem with the request opened for it.
// At most one link per problem; rows are created once and never mutated.
type ProblemRequestLink struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProblemID uint      `gorm:"uniqueIndex;not null" json:"problem_id"`
	RequestID uint      `gorm:"not null;index" json:"request_id"`
	CreatedAt time.Time `json:"created_at"`

	Problem Problem `gorm:"foreignKey:ProblemID" json:"-"`
	Request Request `gorm:"foreignKey:RequestID" json:"-"`
}

func (ProblemRequestLink) TableName() string {
	return "problem_request_links"
}

// LinkSnapshot is a denormalized read-only row joining a problem, its request
// and the link between them. The problem cache holds a slice of these.
type LinkSnapshot struct {
	ProblemRowID        uint        `json:"problem_row_id"`
	ProblemID           string      `json:"problem_id"`
	HostName            string      `json:"host_name"`
	ServiceCheckCommand string      `json:"service_check_command"`
	ServiceDescription  string      `json:"service_description"`
	State               string      `json:"state"`
	Kind                ProblemKind `json:"kind"`
	Acknowledged        bool        `json:"acknowledged"`
	RequestRowID        uint        `json:"request_row_id"`
	RequestID           string      `json:"request_id"`
	RequestStatus       string      `json:"request_status"`
}

// IsService returns true for service-scoped snapshot rows
func (s *LinkSnapshot) IsService() bool {
	return s.Kind == ProblemKindService
}
