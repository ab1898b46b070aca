package servicedesk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config holds the connection parameters for a ServiceDesk Plus instance
type Config struct {
	// BaseURL is the instance root, e.g. "https://sdp.example.com:8443"
	BaseURL       string
	APIVersion    string
	AuthToken     string
	RequesterName string
	RequesterID   int
	Priority      string
	Timeout       time.Duration
}

// Client talks to the ServiceDesk Plus REST API. Like the Checkmk client it
// keeps the latest polled request list in memory for the reconciliation loop.
type Client struct {
	apiURL     string
	ticketURL  string
	authToken  string
	requester  user
	priority   string
	httpClient *http.Client

	mu       sync.RWMutex
	requests []Request
}

// NewClient creates a ServiceDesk Plus API client
func NewClient(cfg Config) (*Client, error) {
	if cfg.AuthToken == "" {
		return nil, ErrNoCredentials
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "v3"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	requesterName := cfg.RequesterName
	if requesterName == "" {
		requesterName = "checkmk"
	}
	priority := cfg.Priority
	if priority == "" {
		priority = "High"
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		apiURL:     base + "/api/" + apiVersion,
		ticketURL:  base + "/WorkOrder.do?woMode=viewWO&woID=",
		authToken:  cfg.AuthToken,
		requester:  user{ID: cfg.RequesterID, Name: requesterName},
		priority:   priority,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// TicketURL returns the browser URL for a request id. The reconciliation
// loop uses it as the acknowledgement comment so operators can jump from the
// monitoring UI straight to the ticket.
func (c *Client) TicketURL(requestID string) string {
	return c.ticketURL + requestID
}

// CreateParams carries the per-ticket fields of a creation call. The
// requester, priority and initial status come from the client configuration.
type CreateParams struct {
	Subject       string
	Description   string
	Resolution    string
	ImpactDetails string
	TemplateID    int
	UDFFields     map[string]string
}

// CreateRequest opens a new incident request and returns the created request
func (c *Client) CreateRequest(ctx context.Context, p CreateParams) (*Request, error) {
	payload := creationEnvelope{Request: creationRequest{
		Subject:       p.Subject,
		Description:   p.Description,
		Requester:     c.requester,
		ImpactDetails: p.ImpactDetails,
		Status:        namedField{Name: "Open"},
		RequestType:   namedField{Name: "Incident"},
		Template:      templateRef{ID: p.TemplateID},
		Priority:      namedField{Name: c.priority},
		UDFFields:     p.UDFFields,
	}}
	if p.Resolution != "" {
		payload.Request.Resolution = &resolution{Content: p.Resolution}
	}

	var env requestEnvelope
	if err := c.doInputData(ctx, http.MethodPost, "/requests", payload, nil, &env); err != nil {
		return nil, err
	}
	log.Printf("Created servicedesk request %s for %q", env.Request.ID, p.Subject)
	return &env.Request, nil
}

// GetRequest fetches a single request by id
func (c *Client) GetRequest(ctx context.Context, requestID string) (*Request, error) {
	var env requestEnvelope
	if err := c.doInputData(ctx, http.MethodGet, "/requests/"+requestID, nil, nil, &env); err != nil {
		return nil, err
	}
	return &env.Request, nil
}

// CloseRequest closes a request by id. Returns ErrAlreadyClosed when the
// remote side reports the request is already closed.
func (c *Client) CloseRequest(ctx context.Context, requestID string) error {
	var payload closureEnvelope
	payload.Request.ClosureInfo = closureInfo{
		RequesterAckComments:   "Checkmk alarm has been resolved.",
		ClosureComments:        "Request closed by checkmk.",
		ClosureCode:            namedField{Name: "Success"},
		RequesterAckResolution: true,
	}

	err := c.doInputData(ctx, http.MethodPut, "/requests/"+requestID+"/close", payload, nil, nil)
	var badResp *BadResponseError
	if errors.As(err, &badResp) && strings.Contains(strings.ToLower(badResp.Body), "already closed") {
		log.Printf("Request %s is already closed", requestID)
		return ErrAlreadyClosed
	}
	return err
}

// ListRequestIDs pages through the request collection and returns all ids,
// newest updates first.
func (c *Client) ListRequestIDs(ctx context.Context) ([]string, error) {
	const rowCount = 100

	var ids []string
	startIndex := 0
	for {
		query := listRequest{ListInfo: listInfo{
			RowCount:      rowCount,
			StartIndex:    startIndex,
			SortField:     "last_updated_time",
			SortOrder:     "desc",
			GetTotalCount: true,
		}}

		var page listEnvelope
		if err := c.doInputData(ctx, http.MethodGet, "/requests", nil, query, &page); err != nil {
			return nil, err
		}
		if len(page.Requests) == 0 {
			break
		}
		for _, r := range page.Requests {
			ids = append(ids, r.ID)
		}
		if !page.ListInfo.HasMoreRows {
			break
		}
		startIndex += rowCount
	}
	return ids, nil
}

// AllRequests fetches the full detail of every request. Individual fetch
// failures are logged and skipped so one broken request does not starve the
// reconciliation loop.
func (c *Client) AllRequests(ctx context.Context) ([]Request, error) {
	ids, err := c.ListRequestIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list request ids: %w", err)
	}

	requests := make([]Request, 0, len(ids))
	for _, id := range ids {
		r, err := c.GetRequest(ctx, id)
		if err != nil {
			log.Printf("Error fetching request %s: %v", id, err)
			continue
		}
		requests = append(requests, *r)
	}
	return requests, nil
}

// RefreshRequests fetches all requests and replaces the cached list
func (c *Client) RefreshRequests(ctx context.Context) error {
	requests, err := c.AllRequests(ctx)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("received empty request list")
	}

	c.mu.Lock()
	c.requests = requests
	c.mu.Unlock()
	log.Printf("Fetched %d incident requests", len(requests))
	return nil
}

// Requests returns the most recently polled request list
func (c *Client) Requests() []Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requests
}

// doInputData performs an API call in the ServiceDesk Plus envelope style:
// the JSON payload travels as an "input_data" value, form-encoded for writes
// and as a query parameter for reads.
func (c *Client) doInputData(ctx context.Context, method, path string, body, query, out interface{}) error {
	var reader io.Reader
	params := url.Values{}

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode input_data: %w", err)
		}
		form := url.Values{"input_data": {string(data)}}
		reader = strings.NewReader(form.Encode())
	}
	if query != nil {
		data, err := json.Marshal(query)
		if err != nil {
			return fmt.Errorf("failed to encode input_data: %w", err)
		}
		params.Set("input_data", string(data))
	}

	target := c.apiURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("authtoken", c.authToken)
	req.Header.Set("Accept", "application/vnd.manageengine.sdp.v3+json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
			return &RequestRejectedError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return &BadResponseError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
