package ingest

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/cmkbridge/cmkbridge/internal/database"
)

// recoveryProblemID is the sentinel Checkmk assigns to recovery notifications
const recoveryProblemID = "0"

var validate = validator.New()

// Notification is a Checkmk notification payload as posted by the notify
// script. Host and service notifications share one struct discriminated by
// Kind, which the HTTP layer sets from the endpoint that received the body.
type Notification struct {
	Kind database.ProblemKind `json:"-" validate:"required,oneof=host service"`

	HostName       string `json:"NOTIFY_HOSTNAME" validate:"required"`
	HostAlias      string `json:"NOTIFY_HOSTALIAS"`
	HostIPv4       string `json:"NOTIFY_HOST_ADDRESS_4"`
	HostState      string `json:"NOTIFY_HOSTSTATE"`
	HostStateShort string `json:"NOTIFY_HOSTSHORTSTATE"`
	HostOutput     string `json:"NOTIFY_HOSTOUTPUT"`
	HostLongOutput string `json:"NOTIFY_LONGHOSTOUTPUT"`
	HostURL        string `json:"NOTIFY_HOSTURL"`
	HostProblemID  string `json:"NOTIFY_HOSTPROBLEMID" validate:"required_if=Kind host"`

	ServiceProblemID    string `json:"NOTIFY_SERVICEPROBLEMID" validate:"required_if=Kind service"`
	ServiceDescription  string `json:"NOTIFY_SERVICEDESC" validate:"required_if=Kind service"`
	ServiceCheckCommand string `json:"NOTIFY_SERVICECHECKCOMMAND" validate:"required_if=Kind service"`
	ServiceState        string `json:"NOTIFY_SERVICESTATE"`
	ServiceOutput       string `json:"NOTIFY_SERVICEOUTPUT"`
	ServiceLongOutput   string `json:"NOTIFY_LONGSERVICEOUTPUT"`

	NotificationType string `json:"NOTIFY_NOTIFICATIONTYPE"`
	LongDateTime     string `json:"NOTIFY_LONGDATETIME"`
	Contacts         string `json:"NOTIFY_CONTACTS"`
	OMDSite          string `json:"OMD_SITE"`

	// Raw keeps the full payload for the problem record
	Raw database.JSONB `json:"-"`
}

// Decode parses and validates a notification body for the given kind
func Decode(kind database.ProblemKind, body io.Reader) (*Notification, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read notification body: %w", err)
	}

	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}
	n.Kind = kind

	raw := database.JSONB{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}
	n.Raw = raw

	if err := validate.Struct(&n); err != nil {
		return nil, err
	}
	return &n, nil
}

// IsService returns true for service notifications
func (n *Notification) IsService() bool {
	return n.Kind == database.ProblemKindService
}

// ProblemID returns the identity of the underlying problem: the service
// problem id for service notifications, the host problem id otherwise.
func (n *Notification) ProblemID() string {
	if n.IsService() {
		return n.ServiceProblemID
	}
	return n.HostProblemID
}

// IsRecovery reports whether this notification announces a recovery rather
// than a problem. Checkmk sends problem id "0" for recoveries.
func (n *Notification) IsRecovery() bool {
	return n.ProblemID() == recoveryProblemID
}

// State returns the monitoring state name carried by the notification
func (n *Notification) State() string {
	if n.IsService() {
		return n.ServiceState
	}
	return n.HostState
}

// Subject builds the ticket subject line
func (n *Notification) Subject() string {
	if n.IsService() {
		return fmt.Sprintf("Service Alert: %s - %s", n.ServiceDescription, n.ServiceState)
	}
	return fmt.Sprintf("Host Alert: %s - %s", n.HostName, n.HostState)
}

// ToProblem maps the notification onto a problem record
func (n *Notification) ToProblem() *database.Problem {
	return &database.Problem{
		ProblemID:           n.ProblemID(),
		HostName:            n.HostName,
		ServiceCheckCommand: n.ServiceCheckCommand,
		ServiceDescription:  n.ServiceDescription,
		State:               n.State(),
		Kind:                n.Kind,
		RawPayload:          n.Raw,
	}
}
