// Package courtapi talks to the club booking backend for court availability and reservations.
package courtapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/ports"
)

const (
	maxResponseBytes      = 1 << 20
	defaultRequestTimeout = 30 * time.Second
	codeSuccess           = 1

	availabilityPath = "user/checkCourtAvailability"
	reservePath      = "user/dropin/reserve"
	cancelPath       = "user/dropin/cancel"
	releasePath      = "user/dropin/release"

	idempotencyHeader = "Idempotency-Key"
)

var ErrServer = errors.New("court api error")

type Client struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Secrets        ports.SecretStore
	TokenKey       string
}

var (
	_ ports.AvailabilityClient   = (*Client)(nil)
	_ ports.ReservationClient    = (*Client)(nil)
	_ ports.ReservationCanceller = (*Client)(nil)
	_ ports.ReservationReleaser  = (*Client)(nil)
)

// envelope is the response wrapper used by every backend endpoint.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
}

type reserveRequest struct {
	RequestKey string `json:"requestKey"`
	Date       string `json:"date"`
	SlotTime   string `json:"slotTime"`
	EndTime    string `json:"endTime"`
	Courts     int    `json:"courts"`
}

func (r reserveRequest) idempotencyKey() string { return r.RequestKey }

type reserveData struct {
	ReservationIDs []string `json:"reservationIds"`
}

type cancelRequest struct {
	ReservationIDs []string `json:"reservationIds"`
}

type releaseRequest struct {
	RequestKey string `json:"requestKey"`
}

func (r releaseRequest) idempotencyKey() string { return r.RequestKey }

// keyed request bodies are sent with an Idempotency-Key header.
type keyed interface {
	idempotencyKey() string
}

// Check returns the number of free courts for the window.
func (c *Client) Check(ctx context.Context, window domain.Window) (int, error) {
	query := url.Values{}
	query.Set("date", window.Date())
	query.Set("slotTime", window.SlotTime())

	resp, err := c.do(ctx, http.MethodGet, availabilityPath, query, nil)
	if err != nil {
		return 0, fmt.Errorf("check court availability: %w", err)
	}
	if resp.Count == nil {
		return 0, nil
	}

	return *resp.Count, nil
}

// Reserve books units courts for the window. The backend commits all or nothing
// and answers a repeated key with the original booking.
func (c *Client) Reserve(ctx context.Context, key string, window domain.Window, units int) (ports.Reservation, error) {
	resp, err := c.do(ctx, http.MethodPost, reservePath, nil, reserveRequest{
		RequestKey: key,
		Date:       window.Date(),
		SlotTime:   window.SlotTime(),
		EndTime:    window.EndTime(),
		Courts:     units,
	})
	if err != nil {
		return ports.Reservation{}, fmt.Errorf("reserve courts: %w", err)
	}

	var data reserveData
	if len(resp.Data) > 0 && string(resp.Data) != "null" {
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return ports.Reservation{}, fmt.Errorf("decode reservation data: %w", err)
		}
	}

	return ports.Reservation{
		Committed: len(data.ReservationIDs) > 0,
		Refs:      data.ReservationIDs,
	}, nil
}

func (c *Client) Cancel(ctx context.Context, refs []string) error {
	if len(refs) == 0 {
		return nil
	}
	if _, err := c.do(ctx, http.MethodPost, cancelPath, nil, cancelRequest{ReservationIDs: refs}); err != nil {
		return fmt.Errorf("cancel reservations: %w", err)
	}
	return nil
}

// Release drops whatever the backend booked under key.
func (c *Client) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if _, err := c.do(ctx, http.MethodPost, releasePath, nil, releaseRequest{RequestKey: key}); err != nil {
		return fmt.Errorf("release reservation %s: %w", key, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (envelope, error) {
	endpoint, err := buildAPIURL(c.BaseURL, path)
	if err != nil {
		return envelope{}, err
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "dropin/courtapi")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if k, ok := body.(keyed); ok && k.idempotencyKey() != "" {
		req.Header.Set(idempotencyHeader, k.idempotencyKey())
	}
	token, err := c.token(requestCtx)
	if err != nil {
		return envelope{}, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("perform request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return envelope{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return envelope{}, fmt.Errorf("%w: status %d: %s", ErrServer, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var payload envelope
	if err := json.Unmarshal(raw, &payload); err != nil {
		return envelope{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Code != codeSuccess {
		message := strings.TrimSpace(payload.Message)
		if message == "" {
			message = fmt.Sprintf("code %d", payload.Code)
		}
		return envelope{}, fmt.Errorf("%w: %s", ErrServer, message)
	}

	return payload, nil
}

// token returns the bearer token, or "" when none is stored.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.Secrets == nil || c.TokenKey == "" {
		return "", nil
	}

	token, err := c.Secrets.Get(ctx, c.TokenKey)
	if errors.Is(err, domain.ErrSecretNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load api token: %w", err)
	}

	return strings.TrimSpace(token), nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	// Keep any path prefix on the base, e.g. https://host:4000/api.
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return endpoint.String(), nil
}
