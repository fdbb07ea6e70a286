package spell

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client queries the HTTP spellchecker service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL. A zero timeout means none.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Check asks whether word is misspelled and, if so, fetches corrections.
func (c *Client) Check(ctx context.Context, word string) (Result, error) {
	if word == "" {
		return Result{Suggestions: []string{}}, nil
	}

	var mis struct {
		Misspelled bool `json:"misspelled"`
	}
	if err := c.get(ctx, "misspelled", word, &mis); err != nil {
		return Result{}, err
	}
	if !mis.Misspelled {
		return Result{Suggestions: []string{}}, nil
	}

	var corr struct {
		Corrections []string `json:"corrections"`
	}
	if err := c.get(ctx, "corrections", word, &corr); err != nil {
		return Result{}, err
	}

	return Result{Misspelled: true, Suggestions: truncate(corr.Corrections)}, nil
}

func (c *Client) get(ctx context.Context, endpoint, word string, out any) error {
	u := c.baseURL + "/" + endpoint + "?word=" + url.QueryEscape(word)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", ErrUnavailable, endpoint, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: invalid response: %v", ErrUnavailable, endpoint, err)
	}
	return nil
}
