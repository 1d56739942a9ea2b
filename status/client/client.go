package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	fspath "path"
	"time"

	"github.com/andydunstall/rumor/pkg/broadcast"
	"github.com/andydunstall/rumor/server/api"
	"github.com/andydunstall/rumor/server/status"
)

// Client is a client for a node's admin status API.
type Client struct {
	httpClient *http.Client

	url *url.URL
}

func NewClient(url *url.URL) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Second * 15,
		},
		url: url,
	}
}

func (c *Client) Values(ctx context.Context) ([]broadcast.Value, error) {
	var values []broadcast.Value
	if err := request(ctx, c.httpClient, c.url, http.MethodGet, "/status/broadcast/values", nil, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *Client) Cursors(ctx context.Context) (map[string]int, error) {
	var cursors map[string]int
	if err := request(ctx, c.httpClient, c.url, http.MethodGet, "/status/broadcast/cursors", nil, &cursors); err != nil {
		return nil, err
	}
	return cursors, nil
}

func (c *Client) Topology(ctx context.Context) (*status.Topology, error) {
	var topology status.Topology
	if err := request(ctx, c.httpClient, c.url, http.MethodGet, "/status/broadcast/topology", nil, &topology); err != nil {
		return nil, err
	}
	return &topology, nil
}

func (c *Client) Generation(ctx context.Context) (uint64, error) {
	var generation status.Generation
	if err := request(ctx, c.httpClient, c.url, http.MethodGet, "/status/broadcast/generation", nil, &generation); err != nil {
		return 0, err
	}
	return generation.Generation, nil
}

func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// APIClient is a client for a node's client-facing API.
type APIClient struct {
	httpClient *http.Client

	url *url.URL
}

func NewAPIClient(url *url.URL) *APIClient {
	return &APIClient{
		httpClient: &http.Client{
			Timeout: time.Second * 15,
		},
		url: url,
	}
}

// Broadcast submits the value, returning once the node has completed a round
// since storing the value.
func (c *APIClient) Broadcast(ctx context.Context, v broadcast.Value) error {
	return request(ctx, c.httpClient, c.url, http.MethodPost, "/v1/broadcast", &api.BroadcastRequest{
		Message: &v,
	}, nil)
}

func (c *APIClient) Read(ctx context.Context) ([]broadcast.Value, error) {
	var resp api.ReadResponse
	if err := request(ctx, c.httpClient, c.url, http.MethodGet, "/v1/read", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SetTopology updates the node's neighbours, returning the neighbours
// assigned to the node.
func (c *APIClient) SetTopology(ctx context.Context, topology map[string][]string) ([]string, error) {
	var resp api.TopologyResponse
	if err := request(ctx, c.httpClient, c.url, http.MethodPost, "/v1/topology", &api.TopologyRequest{
		Topology: topology,
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Neighbours, nil
}

func (c *APIClient) Generate(ctx context.Context) (uint64, error) {
	var resp api.GenerateResponse
	if err := request(ctx, c.httpClient, c.url, http.MethodPost, "/v1/generate", nil, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *APIClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func request(
	ctx context.Context,
	httpClient *http.Client,
	base *url.URL,
	method string,
	path string,
	reqBody any,
	respBody any,
) error {
	url := new(url.URL)
	*url = *base
	url.Path = fspath.Join(url.Path, path)

	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url.String(), body)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("request: bad status: %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("request: bad status: %d", resp.StatusCode)
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
