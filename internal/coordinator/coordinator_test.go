package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmkbridge/cmkbridge/internal/database"
	"github.com/cmkbridge/cmkbridge/internal/servicedesk"
)

type fakeTickets struct {
	requests []servicedesk.Request
}

func (f *fakeTickets) Requests() []servicedesk.Request { return f.requests }

func (f *fakeTickets) TicketURL(requestID string) string {
	return "https://sdp.example.com/WorkOrder.do?woMode=viewWO&woID=" + requestID
}

type ackCall struct {
	hostName           string
	serviceDescription string
	comment            string
}

type fakeMonitor struct {
	hostAcks    []ackCall
	serviceAcks []ackCall
	err         error
}

func (f *fakeMonitor) AcknowledgeHost(ctx context.Context, hostName, comment string) error {
	if f.err != nil {
		return f.err
	}
	f.hostAcks = append(f.hostAcks, ackCall{hostName: hostName, comment: comment})
	return nil
}

func (f *fakeMonitor) AcknowledgeService(ctx context.Context, hostName, serviceDescription, comment string) error {
	if f.err != nil {
		return f.err
	}
	f.serviceAcks = append(f.serviceAcks, ackCall{
		hostName:           hostName,
		serviceDescription: serviceDescription,
		comment:            comment,
	})
	return nil
}

type fakeStore struct {
	acked    []uint
	statuses map[string]string

	// failRows makes MarkAcknowledged fail for specific problem rows only
	failRows map[uint]error
}

func (f *fakeStore) MarkAcknowledged(problemRowID uint) error {
	if err := f.failRows[problemRowID]; err != nil {
		return err
	}
	f.acked = append(f.acked, problemRowID)
	return nil
}

func (f *fakeStore) UpsertRequest(requestID, status string) (uint, error) {
	if f.statuses == nil {
		f.statuses = map[string]string{}
	}
	f.statuses[requestID] = status
	return 1, nil
}

type fakeCache struct {
	rows map[string]*database.LinkSnapshot
}

func (f *fakeCache) ByRequestID(requestID string) *database.LinkSnapshot {
	return f.rows[requestID]
}

func serviceRow(requestID string) *database.LinkSnapshot {
	return &database.LinkSnapshot{
		ProblemRowID:       7,
		ProblemID:          "4711",
		HostName:           "web01",
		ServiceDescription: "HTTP",
		Kind:               database.ProblemKindService,
		RequestID:          requestID,
	}
}

func setup(requests []servicedesk.Request, rows map[string]*database.LinkSnapshot) (*Coordinator, *fakeMonitor, *fakeStore) {
	monitor := &fakeMonitor{}
	store := &fakeStore{}
	c := &Coordinator{
		Tickets: &fakeTickets{requests: requests},
		Monitor: monitor,
		Store:   store,
		Cache:   &fakeCache{rows: rows},
	}
	return c, monitor, store
}

func TestProcessTick_AcknowledgesClosedTicket(t *testing.T) {
	c, monitor, store := setup(
		[]servicedesk.Request{{ID: "1234", Status: servicedesk.Status{Name: "Closed"}}},
		map[string]*database.LinkSnapshot{"1234": serviceRow("1234")},
	)

	c.ProcessTick(context.Background())

	if len(monitor.serviceAcks) != 1 {
		t.Fatalf("expected 1 service acknowledgement, got %d", len(monitor.serviceAcks))
	}
	ack := monitor.serviceAcks[0]
	if ack.hostName != "web01" || ack.serviceDescription != "HTTP" {
		t.Errorf("unexpected acknowledgement target: %+v", ack)
	}
	if ack.comment != "https://sdp.example.com/WorkOrder.do?woMode=viewWO&woID=1234" {
		t.Errorf("expected the ticket URL as comment, got %q", ack.comment)
	}

	if len(store.acked) != 1 || store.acked[0] != 7 {
		t.Errorf("expected problem row 7 marked acknowledged, got %v", store.acked)
	}
	if store.statuses["1234"] != "Closed" {
		t.Errorf("expected status audit row 'Closed', got %q", store.statuses["1234"])
	}
}

func TestProcessTick_AcknowledgesHostProblem(t *testing.T) {
	row := &database.LinkSnapshot{
		ProblemRowID: 3,
		ProblemID:    "93",
		HostName:     "db01",
		Kind:         database.ProblemKindHost,
		RequestID:    "55",
	}
	c, monitor, _ := setup(
		[]servicedesk.Request{{ID: "55", Status: servicedesk.Status{Name: "Resolved"}}},
		map[string]*database.LinkSnapshot{"55": row},
	)

	c.ProcessTick(context.Background())

	if len(monitor.hostAcks) != 1 {
		t.Fatalf("expected 1 host acknowledgement, got %d", len(monitor.hostAcks))
	}
	if monitor.hostAcks[0].hostName != "db01" {
		t.Errorf("unexpected host: %+v", monitor.hostAcks[0])
	}
	if len(monitor.serviceAcks) != 0 {
		t.Error("host problem must not trigger a service acknowledgement")
	}
}

func TestProcessTick_SkipsOpenAndStatuslessTickets(t *testing.T) {
	c, monitor, store := setup(
		[]servicedesk.Request{
			{ID: "1", Status: servicedesk.Status{Name: "Open"}},
			{ID: "2", Status: servicedesk.Status{Name: "open"}},
			{ID: "3"},
		},
		map[string]*database.LinkSnapshot{
			"1": serviceRow("1"),
			"2": serviceRow("2"),
			"3": serviceRow("3"),
		},
	)

	c.ProcessTick(context.Background())

	if len(monitor.serviceAcks) != 0 || len(monitor.hostAcks) != 0 {
		t.Error("expected no acknowledgements for open tickets")
	}
	if len(store.acked) != 0 {
		t.Error("expected no persisted acknowledgements")
	}
}

func TestProcessTick_SkipsUnlinkedTicket(t *testing.T) {
	c, monitor, _ := setup(
		[]servicedesk.Request{{ID: "1234", Status: servicedesk.Status{Name: "Closed"}}},
		map[string]*database.LinkSnapshot{},
	)

	c.ProcessTick(context.Background())

	if len(monitor.serviceAcks) != 0 || len(monitor.hostAcks) != 0 {
		t.Error("expected no acknowledgement for a ticket without a linked problem")
	}
}

func TestProcessTick_SkipsAlreadyAcknowledged(t *testing.T) {
	row := serviceRow("1234")
	row.Acknowledged = true
	c, monitor, store := setup(
		[]servicedesk.Request{{ID: "1234", Status: servicedesk.Status{Name: "Closed"}}},
		map[string]*database.LinkSnapshot{"1234": row},
	)

	c.ProcessTick(context.Background())

	if len(monitor.serviceAcks) != 0 {
		t.Error("expected no repeat acknowledgement")
	}
	if len(store.acked) != 0 {
		t.Error("expected no repeat persistence")
	}
}

func TestProcessTick_AckFailureDoesNotPersist(t *testing.T) {
	c, monitor, store := setup(
		[]servicedesk.Request{{ID: "1234", Status: servicedesk.Status{Name: "Closed"}}},
		map[string]*database.LinkSnapshot{"1234": serviceRow("1234")},
	)
	monitor.err = errors.New("checkmk is unreachable")

	c.ProcessTick(context.Background())

	if len(store.acked) != 0 {
		t.Error("expected no persisted acknowledgement after an ack failure")
	}
	if len(store.statuses) != 0 {
		t.Error("expected no status audit row after an ack failure")
	}
}

func TestProcessTick_OneFailureDoesNotBlockOthers(t *testing.T) {
	rowA := serviceRow("1")
	rowB := &database.LinkSnapshot{
		ProblemRowID: 8,
		ProblemID:    "93",
		HostName:     "db01",
		Kind:         database.ProblemKindHost,
		RequestID:    "2",
	}
	c, monitor, store := setup(
		[]servicedesk.Request{
			{ID: "1", Status: servicedesk.Status{Name: "Closed"}},
			{ID: "2", Status: servicedesk.Status{Name: "Closed"}},
		},
		map[string]*database.LinkSnapshot{"1": rowA, "2": rowB},
	)

	// Persisting the first ticket's acknowledgement fails
	store.failRows = map[uint]error{rowA.ProblemRowID: errors.New("database is locked")}

	c.ProcessTick(context.Background())

	if len(store.acked) != 1 || store.acked[0] != 8 {
		t.Errorf("expected only problem row 8 acknowledged, got %v", store.acked)
	}
	if len(monitor.serviceAcks) != 1 || len(monitor.hostAcks) != 1 {
		t.Error("expected both tickets to be processed")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	c, _, _ := setup(nil, nil)
	c.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop after context cancellation")
	}
}

func TestProcessTick_StatusAuditFailureIsNonFatal(t *testing.T) {
	monitor := &fakeMonitor{}
	store := &failingStatusStore{}
	c := &Coordinator{
		Tickets: &fakeTickets{requests: []servicedesk.Request{
			{ID: "1234", Status: servicedesk.Status{Name: "Closed"}},
		}},
		Monitor: monitor,
		Store:   store,
		Cache:   &fakeCache{rows: map[string]*database.LinkSnapshot{"1234": serviceRow("1234")}},
	}

	c.ProcessTick(context.Background())

	if len(store.acked) != 1 {
		t.Errorf("expected acknowledgement persisted despite audit failure, got %v", store.acked)
	}
}

type failingStatusStore struct {
	acked []uint
}

func (f *failingStatusStore) MarkAcknowledged(problemRowID uint) error {
	f.acked = append(f.acked, problemRowID)
	return nil
}

func (f *failingStatusStore) UpsertRequest(requestID, status string) (uint, error) {
	return 0, errors.New("database is locked")
}
