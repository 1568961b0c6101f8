package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	v1 "flagstore/pkg/api/v1"
)

// Client is a thin HTTP client for the flag store admin API. Every call is a
// single round-trip; there is no local cache, so reads are as fresh as the
// store itself.
type Client struct {
	addr       string
	httpClient *http.Client
}

func New(addr string) *Client {
	return &Client{
		addr:       addr,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Get fetches the current row for name. A flag that was never set comes back
// as (nil, nil), which is not the same as value=false.
func (c *Client) Get(ctx context.Context, name string) (*v1.Flag, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.flagURL(name), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var flag v1.Flag
	if err := json.NewDecoder(resp.Body).Decode(&flag); err != nil {
		return nil, err
	}
	return &flag, nil
}

// Set upserts the flag and returns the stored row.
func (c *Client) Set(ctx context.Context, name string, value bool) (*v1.Flag, error) {
	body, _ := json.Marshal(map[string]bool{"value": value})
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.flagURL(name), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var flag v1.Flag
	if err := json.NewDecoder(resp.Body).Decode(&flag); err != nil {
		return nil, err
	}
	return &flag, nil
}

// Delete removes the flag and reports whether a row was actually removed.
func (c *Client) Delete(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.flagURL(name), nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, apiError(resp)
	}

	var res struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return false, err
	}
	return res.Deleted, nil
}

// List returns every flag, ordered by name.
func (c *Client) List(ctx context.Context) ([]v1.Flag, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+"/v1/flags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var flags []v1.Flag
	if err := json.NewDecoder(resp.Body).Decode(&flags); err != nil {
		return nil, err
	}
	return flags, nil
}

func (c *Client) flagURL(name string) string {
	return c.addr + "/v1/flag/" + url.PathEscape(name)
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("flagstore: %s (status %d)", body.Error, resp.StatusCode)
	}
	return fmt.Errorf("flagstore: unexpected status %d", resp.StatusCode)
}
