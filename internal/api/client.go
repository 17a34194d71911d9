// Package api provides the HTTP client for the lecture backend.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lianbang999-crypto/foyue/internal/catalog"
	"github.com/rs/zerolog/log"
)

const (
	requestTimeout = 30 * time.Second
	catalogRetries = 3
	retryWaitUnit  = 1500 * time.Millisecond
)

// Client is the HTTP client for the catalog and the interaction endpoints.
type Client struct {
	client     *resty.Client
	catalogURL string
}

// NewClient creates a backend client. catalogURL is the full URL of the
// catalog document; baseURL is the root of the interaction API.
func NewClient(baseURL, catalogURL string) *Client {
	return &Client{
		catalogURL: catalogURL,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout).
			SetRetryCount(catalogRetries).
			SetRetryWaitTime(retryWaitUnit).
			SetRetryMaxWaitTime(catalogRetries * retryWaitUnit).
			AddRetryCondition(retryOnServerError),
	}
}

func retryOnServerError(r *resty.Response, err error) bool {
	return err != nil || r.StatusCode() >= http.StatusInternalServerError
}

// GetCatalog fetches the full lecture catalog. Transient failures are retried
// with an increasing wait before an error is returned.
func (c *Client) GetCatalog(ctx context.Context) (*catalog.Catalog, error) {
	resp, err := c.client.R().SetContext(ctx).Get(c.catalogURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var cat catalog.Catalog
	if err := json.Unmarshal(resp.Body(), &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	return &cat, nil
}

// RecordPlay reports a playback start. It never blocks the caller's flow:
// errors are logged at debug level and swallowed, a listener should not care
// whether the counter landed.
func (c *Client) RecordPlay(seriesID string, trackNumber int) {
	resp, err := c.client.R().
		SetBody(map[string]any{
			"seriesId": seriesID,
			"track":    trackNumber,
		}).
		Post("/plays")
	if err != nil {
		log.Debug().Err(err).Str("seriesId", seriesID).Msg("Failed to record play")
		return
	}
	if !resp.IsSuccess() {
		log.Debug().Int("status", resp.StatusCode()).Str("seriesId", seriesID).Msg("Play count not recorded")
	}
}

// GetPlayCount returns the total recorded plays for a series.
func (c *Client) GetPlayCount(ctx context.Context, seriesID string) (int, error) {
	resp, err := c.client.R().SetContext(ctx).Get(fmt.Sprintf("/plays/%s", seriesID))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch play count for %s: %w", seriesID, err)
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var response struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return 0, fmt.Errorf("failed to parse play count response: %w", err)
	}
	return response.Count, nil
}

// Appreciate registers a thank-you for a series and returns the new total.
func (c *Client) Appreciate(ctx context.Context, seriesID string) (int, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"seriesId": seriesID}).
		Post("/appreciate")
	if err != nil {
		return 0, fmt.Errorf("failed to send appreciation for %s: %w", seriesID, err)
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var response struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return 0, fmt.Errorf("failed to parse appreciation response: %w", err)
	}
	return response.Count, nil
}

// Answer is a response from the question endpoint, with the passages the
// answer was grounded on.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type Source struct {
	SeriesTitle string `json:"seriesTitle"`
	TrackTitle  string `json:"trackTitle"`
	Excerpt     string `json:"excerpt"`
}

// Ask submits a free-form question about the lectures. listeningTo names the
// series currently playing, or is empty; the backend may use it to anchor the
// answer.
func (c *Client) Ask(ctx context.Context, question, listeningTo string) (*Answer, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"question": question,
			"context":  listeningTo,
		}).
		Post("/ask")
	if err != nil {
		return nil, fmt.Errorf("failed to submit question: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var answer Answer
	if err := json.Unmarshal(resp.Body(), &answer); err != nil {
		return nil, fmt.Errorf("failed to parse answer: %w", err)
	}
	return &answer, nil
}
