package gfhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tv42/httpunix"

	"github.com/gordian-engine/gflood"
)

// unixLocation is the httpunix location name under which
// NewUnixClient registers the socket path.
const unixLocation = "gflood"

// Client queries a Server's endpoints.
type Client struct {
	hc   *http.Client
	base string
}

// NewClient returns a client querying a server listening
// on a TCP address of the form "host:port".
func NewClient(addr string) *Client {
	return &Client{
		hc:   new(http.Client),
		base: "http://" + addr,
	}
}

// NewUnixClient returns a client querying a server listening
// on the unix socket at socketPath.
func NewUnixClient(socketPath string) *Client {
	t := &httpunix.Transport{
		DialTimeout:           100 * time.Millisecond,
		RequestTimeout:        time.Second,
		ResponseHeaderTimeout: time.Second,
	}
	t.RegisterLocation(unixLocation, socketPath)

	return &Client{
		hc:   &http.Client{Transport: t},
		base: httpunix.Scheme + "://" + unixLocation,
	}
}

// Status fetches the node's current flood status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	if err := c.get(ctx, "/status", &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Stats fetches the node's statistics snapshot.
func (c *Client) Stats(ctx context.Context) (gflood.Stats, error) {
	var st gflood.Stats
	if err := c.get(ctx, "/stats", &st); err != nil {
		return gflood.Stats{}, err
	}
	return st, nil
}

// ResetStats clears the node's statistics.
func (c *Client) ResetStats(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/stats/reset", nil)
	if err != nil {
		return fmt.Errorf("failed to build stats reset request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reset stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected response %s to stats reset", resp.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response %s from %s", resp.Status, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
