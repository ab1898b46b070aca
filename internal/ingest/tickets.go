package ingest

import (
	"context"

	"github.com/cmkbridge/cmkbridge/internal/servicedesk"
)

type requestCreator interface {
	CreateRequest(ctx context.Context, p servicedesk.CreateParams) (*servicedesk.Request, error)
}

// TicketService maps notifications onto ticket creation calls, picking the
// host or service template and filling the template's udf fields.
type TicketService struct {
	client            requestCreator
	serviceTemplateID int
	hostTemplateID    int
	description       string
}

// NewTicketService wires a ticketing client with the configured template ids
func NewTicketService(client requestCreator, serviceTemplateID, hostTemplateID int) *TicketService {
	return &TicketService{
		client:            client,
		serviceTemplateID: serviceTemplateID,
		hostTemplateID:    hostTemplateID,
		description:       "This request has been created by checkmk.",
	}
}

// OpenTicket creates a ticket for the notification
func (t *TicketService) OpenTicket(ctx context.Context, n *Notification) (*servicedesk.Request, error) {
	params := servicedesk.CreateParams{
		Subject:       n.Subject(),
		Description:   t.description,
		ImpactDetails: "None",
		UDFFields:     t.templateFields(n),
	}
	if n.IsService() {
		params.TemplateID = t.serviceTemplateID
	} else {
		params.TemplateID = t.hostTemplateID
	}
	return t.client.CreateRequest(ctx, params)
}

func (t *TicketService) templateFields(n *Notification) map[string]string {
	fields := map[string]string{
		"hostname":  n.HostName,
		"hostalias": n.HostAlias,
		"hostipv4":  n.HostIPv4,
		"hoststate": n.HostState,
		"hosturl":   n.HostURL,
		"contacts":  n.Contacts,
		"alarmdate": n.LongDateTime,
	}
	if n.IsService() {
		fields["servicename"] = n.ServiceDescription
		fields["servicecheckcommand"] = n.ServiceCheckCommand
		fields["servicestatus"] = n.ServiceState
		fields["serviceoutput"] = n.ServiceOutput
		fields["serviceoutputlong"] = n.ServiceLongOutput
	} else {
		fields["hostoutput"] = n.HostOutput
	}
	return fields
}
