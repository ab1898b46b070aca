package ingest

import (
	"strings"
	"testing"

	"github.com/cmkbridge/cmkbridge/internal/database"
)

const serviceBody = `{
	"NOTIFY_HOSTNAME": "web01",
	"NOTIFY_HOSTALIAS": "Web Server 01",
	"NOTIFY_HOST_ADDRESS_4": "10.0.0.5",
	"NOTIFY_HOSTSTATE": "UP",
	"NOTIFY_SERVICEPROBLEMID": "4711",
	"NOTIFY_SERVICEDESC": "HTTP",
	"NOTIFY_SERVICECHECKCOMMAND": "check_http",
	"NOTIFY_SERVICESTATE": "CRITICAL",
	"NOTIFY_SERVICEOUTPUT": "Connection refused"
}`

const hostBody = `{
	"NOTIFY_HOSTNAME": "db01",
	"NOTIFY_HOSTSTATE": "DOWN",
	"NOTIFY_HOSTOUTPUT": "CRITICAL - Host Unreachable",
	"NOTIFY_HOSTPROBLEMID": "93"
}`

func TestDecode_ServiceNotification(t *testing.T) {
	n, err := Decode(database.ProblemKindService, strings.NewReader(serviceBody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !n.IsService() {
		t.Error("expected a service notification")
	}
	if n.ProblemID() != "4711" {
		t.Errorf("expected problem id '4711', got '%s'", n.ProblemID())
	}
	if n.State() != "CRITICAL" {
		t.Errorf("expected state 'CRITICAL', got '%s'", n.State())
	}
	if n.IsRecovery() {
		t.Error("problem notification misclassified as recovery")
	}
	if got := n.Subject(); got != "Service Alert: HTTP - CRITICAL" {
		t.Errorf("unexpected subject: %q", got)
	}
	if n.Raw["NOTIFY_SERVICEDESC"] != "HTTP" {
		t.Error("expected raw payload to be preserved")
	}
}

func TestDecode_HostNotification(t *testing.T) {
	n, err := Decode(database.ProblemKindHost, strings.NewReader(hostBody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n.IsService() {
		t.Error("expected a host notification")
	}
	if n.ProblemID() != "93" {
		t.Errorf("expected problem id '93', got '%s'", n.ProblemID())
	}
	if got := n.Subject(); got != "Host Alert: db01 - DOWN" {
		t.Errorf("unexpected subject: %q", got)
	}
}

func TestDecode_MissingHostNameFails(t *testing.T) {
	body := `{"NOTIFY_HOSTPROBLEMID": "93"}`
	if _, err := Decode(database.ProblemKindHost, strings.NewReader(body)); err == nil {
		t.Fatal("expected validation error for missing host name")
	}
}

func TestDecode_ServiceWithoutIdentityFails(t *testing.T) {
	body := `{"NOTIFY_HOSTNAME": "web01", "NOTIFY_SERVICEPROBLEMID": "4711"}`
	if _, err := Decode(database.ProblemKindService, strings.NewReader(body)); err == nil {
		t.Fatal("expected validation error for missing service fields")
	}
}

func TestDecode_InvalidJSONFails(t *testing.T) {
	if _, err := Decode(database.ProblemKindHost, strings.NewReader("{not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNotification_Recovery(t *testing.T) {
	n := &Notification{Kind: database.ProblemKindHost, HostName: "db01", HostProblemID: "0"}
	if !n.IsRecovery() {
		t.Error("expected host problem id '0' to mean recovery")
	}

	n = &Notification{Kind: database.ProblemKindService, HostName: "web01", ServiceProblemID: "0"}
	if !n.IsRecovery() {
		t.Error("expected service problem id '0' to mean recovery")
	}
}

func TestNotification_ToProblem(t *testing.T) {
	n, err := Decode(database.ProblemKindService, strings.NewReader(serviceBody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := n.ToProblem()
	if p.ProblemID != "4711" {
		t.Errorf("expected problem id '4711', got '%s'", p.ProblemID)
	}
	if p.Kind != database.ProblemKindService {
		t.Errorf("expected service kind, got '%s'", p.Kind)
	}
	if p.HostName != "web01" || p.ServiceDescription != "HTTP" || p.ServiceCheckCommand != "check_http" {
		t.Errorf("unexpected identity fields: %+v", p)
	}
	if p.State != "CRITICAL" {
		t.Errorf("expected state 'CRITICAL', got '%s'", p.State)
	}
	if p.RawPayload["NOTIFY_HOSTNAME"] != "web01" {
		t.Error("expected raw payload on the problem record")
	}
}
