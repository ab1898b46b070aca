package checkmk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config holds the connection parameters for a Checkmk site
type Config struct {
	// BaseURL is the site root, e.g. "https://monitor.example.com/mysite/check_mk"
	BaseURL    string
	APIVersion string
	Username   string
	Secret     string
	Timeout    time.Duration
}

// Client talks to the Checkmk REST API. It keeps the latest polled host and
// service lists in memory; the reconciliation path consults those lists to
// skip acknowledging targets that already recovered on their own.
type Client struct {
	apiURL     string
	authHeader string
	httpClient *http.Client

	mu       sync.RWMutex
	hosts    []Host
	services []Service
}

// NewClient creates a Checkmk API client
func NewClient(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Secret == "" {
		return nil, ErrNoCredentials
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "1.0"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiURL:     strings.TrimSuffix(cfg.BaseURL, "/") + "/api/" + apiVersion,
		authHeader: fmt.Sprintf("Bearer %s %s", cfg.Username, cfg.Secret),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

var hostColumns = []string{
	"name", "state", "last_check", "acknowledged", "acknowledgement_type",
}

var serviceColumns = []string{
	"host_name", "description", "state", "last_check", "acknowledged",
	"check_command", "plugin_output",
}

// RefreshHosts fetches all hosts and replaces the cached list
func (c *Client) RefreshHosts(ctx context.Context) error {
	var resp collectionResponse[Host]
	err := c.doJSON(ctx, http.MethodPost, "/domain-types/host/collections/all",
		columnsRequest{Columns: hostColumns}, &resp)
	if err != nil {
		return err
	}
	if len(resp.Value) == 0 {
		return fmt.Errorf("received empty host list")
	}

	c.mu.Lock()
	c.hosts = resp.Value
	c.mu.Unlock()
	log.Printf("Fetched %d hosts from Checkmk", len(resp.Value))
	return nil
}

// RefreshServices fetches all services and replaces the cached list
func (c *Client) RefreshServices(ctx context.Context) error {
	var resp collectionResponse[Service]
	err := c.doJSON(ctx, http.MethodPost, "/domain-types/service/collections/all",
		columnsRequest{Columns: serviceColumns}, &resp)
	if err != nil {
		return err
	}
	if len(resp.Value) == 0 {
		return fmt.Errorf("received empty service list")
	}

	c.mu.Lock()
	c.services = resp.Value
	c.mu.Unlock()
	log.Printf("Fetched %d services from Checkmk", len(resp.Value))
	return nil
}

// Hosts returns the most recently polled host list
func (c *Client) Hosts() []Host {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hosts
}

// Services returns the most recently polled service list
func (c *Client) Services() []Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services
}

// AcknowledgeHost acknowledges a host problem. If the host is already UP in
// the live snapshot the call is skipped and treated as a success: some
// backends reject acknowledgements for recovered objects.
func (c *Client) AcknowledgeHost(ctx context.Context, hostName, comment string) error {
	if c.hostIsOK(hostName) {
		log.Printf("Host %q is already UP, skipping acknowledgement", hostName)
		return nil
	}
	payload := hostAcknowledgement{
		AcknowledgeType: "host",
		Comment:         comment,
		HostName:        hostName,
		Sticky:          true,
		Persistent:      false,
		Notify:          true,
	}
	return c.doJSON(ctx, http.MethodPost, "/domain-types/acknowledge/collections/host", payload, nil)
}

// AcknowledgeService acknowledges a service problem, with the same
// already-OK short-circuit as AcknowledgeHost.
func (c *Client) AcknowledgeService(ctx context.Context, hostName, serviceDescription, comment string) error {
	if c.serviceIsOK(hostName, serviceDescription) {
		log.Printf("Service %q on %q is already OK, skipping acknowledgement", serviceDescription, hostName)
		return nil
	}
	payload := serviceAcknowledgement{
		AcknowledgeType:    "service",
		Comment:            comment,
		HostName:           hostName,
		ServiceDescription: serviceDescription,
		Sticky:             true,
		Persistent:         false,
		Notify:             true,
	}
	return c.doJSON(ctx, http.MethodPost, "/domain-types/acknowledge/collections/service", payload, nil)
}

// AddHostComment attaches a comment to a host
func (c *Client) AddHostComment(ctx context.Context, hostName, comment string) error {
	payload := hostComment{
		CommentType: "host",
		Comment:     comment,
		HostName:    hostName,
		Persistent:  true,
	}
	return c.doJSON(ctx, http.MethodPost, "/domain-types/comment/collections/host", payload, nil)
}

// AddServiceComment attaches a comment to a service
func (c *Client) AddServiceComment(ctx context.Context, hostName, serviceDescription, comment string) error {
	payload := serviceComment{
		CommentType:        "service",
		Comment:            comment,
		HostName:           hostName,
		ServiceDescription: serviceDescription,
		Persistent:         true,
	}
	return c.doJSON(ctx, http.MethodPost, "/domain-types/comment/collections/service", payload, nil)
}

// hostIsOK checks the live snapshot; unknown hosts count as not OK so the
// acknowledgement is still attempted.
func (c *Client) hostIsOK(hostName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, h := range c.hosts {
		if h.Extensions.Name == hostName {
			return h.Extensions.State == stateOK
		}
	}
	return false
}

func (c *Client) serviceIsOK(hostName, serviceDescription string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.services {
		if s.Extensions.HostName == hostName && s.Extensions.Description == serviceDescription {
			return s.Extensions.State == stateOK
		}
	}
	return false
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusNoContent {
		raw, _ := io.ReadAll(resp.Body)
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
