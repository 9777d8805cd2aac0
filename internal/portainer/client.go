package portainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-logr/logr"

	"github.com/bcnelson/portainer-stack-deploy/internal/domain"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 20

// routedCreateVersion is the first Portainer release with kind-specific
// stack creation endpoints.
var routedCreateVersion = semver.MustParse("2.19.0")

// DirectoryClient defines the interface for interacting with Portainer stacks.
type DirectoryClient interface {
	ListStacks(ctx context.Context, endpointID int, swarmID string) ([]domain.Stack, error)
	GetStackFile(ctx context.Context, id int) (string, error)
	ResolveVersion(ctx context.Context) (string, error)
	CreateStack(ctx context.Context, kind domain.StackType, endpointID int, name, definition, swarmID string) (int, error)
	UpdateStack(ctx context.Context, id, endpointID int, env []domain.EnvEntry, definition string) error
}

// HTTPDoer performs a single request/response exchange.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Portainer HTTP API.
type Client struct {
	baseURL string
	token   string
	http    HTTPDoer
	log     logr.Logger
}

// Ensure Client implements DirectoryClient.
var _ DirectoryClient = (*Client)(nil)

// New creates a client for the Portainer instance at host. A nil doer
// falls back to http.DefaultClient.
func New(host, token string, doer HTTPDoer, log logr.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing host: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("host %q must be an absolute URL", host)
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL: u.String() + "/api",
		token:   token,
		http:    doer,
		log:     log,
	}, nil
}

type stackFile struct {
	StackFileContent string `json:"StackFileContent"`
}

type status struct {
	Version string `json:"Version"`
}

type createStackBody struct {
	Name             string `json:"name"`
	StackFileContent string `json:"stackFileContent"`
	SwarmID          string `json:"swarmID,omitempty"`
}

type updateStackBody struct {
	Env              []domain.EnvEntry `json:"env"`
	StackFileContent string            `json:"stackFileContent"`
	Prune            bool              `json:"prune"`
	PullImage        bool              `json:"pullImage"`
}

// ListStacks lists stacks, filtered by swarm when swarmID is set, else by
// endpoint when endpointID is set. Endpoint filters are unreliable in swarm
// mode, so the swarm filter wins.
func (c *Client) ListStacks(ctx context.Context, endpointID int, swarmID string) ([]domain.Stack, error) {
	var filter any
	switch {
	case swarmID != "":
		filter = map[string]string{"SwarmId": swarmID}
	case endpointID != 0:
		filter = map[string]int{"EndpointId": endpointID}
	}

	query := url.Values{}
	if filter != nil {
		b, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("encoding stack filter: %w", err)
		}
		query.Set("filters", string(b))
	}

	var stacks []domain.Stack
	if err := c.doJSON(ctx, http.MethodGet, "/stacks", query, nil, &stacks); err != nil {
		return nil, fmt.Errorf("listing stacks: %w", err)
	}
	return stacks, nil
}

// GetStackFile returns the stored definition of an existing stack.
func (c *Client) GetStackFile(ctx context.Context, id int) (string, error) {
	var file stackFile
	err := c.doJSON(ctx, http.MethodGet, "/stacks/"+strconv.Itoa(id)+"/file", nil, nil, &file)
	if err != nil {
		if code := domain.StatusCode(err); code >= 400 && code < 500 {
			return "", &domain.NotFoundError{Resource: "stack file", Name: strconv.Itoa(id), Err: err}
		}
		return "", fmt.Errorf("fetching stack file: %w", err)
	}
	return file.StackFileContent, nil
}

// ResolveVersion reports the Portainer version. Older releases lack
// /system/status, so a 404 there, and only a 404, falls back to /status.
func (c *Client) ResolveVersion(ctx context.Context) (string, error) {
	var st status
	err := c.doJSON(ctx, http.MethodGet, "/system/status", nil, nil, &st)
	if err == nil {
		return st.Version, nil
	}
	if domain.StatusCode(err) != http.StatusNotFound {
		return "", fmt.Errorf("fetching portainer version: %w", err)
	}

	c.log.V(1).Info("System status endpoint not available, falling back to legacy status endpoint")
	if err := c.doJSON(ctx, http.MethodGet, "/status", nil, nil, &st); err != nil {
		return "", fmt.Errorf("fetching portainer version: %w", err)
	}
	return st.Version, nil
}

// CreateStack creates a stack from definition text. Portainer 2.19.0
// replaced the single creation endpoint with kind-specific ones; the
// reported version decides which shape is used. The returned id is zero
// when the response does not carry one.
func (c *Client) CreateStack(ctx context.Context, kind domain.StackType, endpointID int, name, definition, swarmID string) (int, error) {
	raw, err := c.ResolveVersion(ctx)
	if err != nil {
		return 0, err
	}
	version, err := semver.NewVersion(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing portainer version %q: %w", raw, err)
	}

	body := createStackBody{
		Name:             name,
		StackFileContent: definition,
		SwarmID:          swarmID,
	}

	var (
		path  string
		query = url.Values{}
	)
	if version.LessThan(routedCreateVersion) {
		path = "/stacks"
		query.Set("type", strconv.Itoa(int(kind)))
		query.Set("method", "string")
		query.Set("endpointId", strconv.Itoa(endpointID))
	} else {
		path = "/stacks/create/" + kind.String() + "/string"
		query.Set("endpointId", strconv.Itoa(endpointID))
	}
	c.log.Info("Using stack creation endpoint", "path", path, "version", version.String())

	resp, err := c.do(ctx, http.MethodPost, path, query, body)
	if err != nil {
		return 0, fmt.Errorf("creating stack: %w", err)
	}

	var created struct {
		ID int `json:"Id"`
	}
	if len(resp) > 0 {
		if err := json.Unmarshal(resp, &created); err != nil {
			c.log.V(1).Info("Create response did not contain a stack id", "error", err.Error())
		}
	}
	return created.ID, nil
}

// UpdateStack replaces the definition of an existing stack. Removed
// services are always pruned and images always re-pulled.
func (c *Client) UpdateStack(ctx context.Context, id, endpointID int, env []domain.EnvEntry, definition string) error {
	if env == nil {
		env = []domain.EnvEntry{}
	}
	body := updateStackBody{
		Env:              env,
		StackFileContent: definition,
		Prune:            true,
		PullImage:        true,
	}

	query := url.Values{}
	query.Set("endpointId", strconv.Itoa(endpointID))

	if _, err := c.do(ctx, http.MethodPut, "/stacks/"+strconv.Itoa(id), query, body); err != nil {
		return fmt.Errorf("updating stack: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// do sends one request and returns the response body. Non-2xx responses
// and network faults come back as *domain.TransportError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-API-Key", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.V(1).Info("Portainer request", "method", method, "url", target)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.TransportError{Method: method, URL: target, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.TransportError{
			Method: method,
			URL:    target,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}
	return data, nil
}
