// Package analysis is the HTTP client of the external Analysis Service, which
// computes similarity scores, clusters and relationship graphs.
package analysis

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
)

const maxResponseBytes = 32 << 20

var ErrSessionNotFound = errors.New("no session found")

// TransportError is a network failure or a non-2xx reply.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("analysis %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("analysis %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP uses an existing http.Client, as tests do with httptest.
func NewClientWithHTTP(baseURL, apiKey string, client *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: client}
}

// Process submits ideas for analysis and returns the raw response payload.
func (c *Client) Process(ctx context.Context, req ProcessRequest) ([]byte, error) {
	return c.do(ctx, "process", http.MethodPost, "/process", req, false)
}

// RankIdeas submits ideas to the v2 endpoint, which answers with rankedIdeas.
func (c *Client) RankIdeas(ctx context.Context, req RankRequest) ([]byte, error) {
	return c.do(ctx, "rank ideas", http.MethodPost, "/v1/rank_ideas", req, true)
}

// Session returns the stored payload of a session for replay.
func (c *Client) Session(ctx context.Context, id string) ([]byte, error) {
	raw, err := c.do(ctx, "session", http.MethodGet, "/session/"+url.PathEscape(id), nil, false)
	var te *TransportError
	if errors.As(err, &te) && te.Status == http.StatusNotFound {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return raw, err
}

func (c *Client) UpdateRating(ctx context.Context, update RatingUpdate) (RatingAck, error) {
	raw, err := c.do(ctx, "update rating", http.MethodPost, "/update-rating", update, false)
	if err != nil {
		return RatingAck{}, err
	}
	var ack RatingAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return RatingAck{}, &TransportError{Op: "update rating", Err: fmt.Errorf("decode response: %w", err)}
	}
	if ack.Error != "" {
		return RatingAck{}, &TransportError{Op: "update rating", Err: errors.New(ack.Error)}
	}
	return ack, nil
}

// SubmitRanking stores a participant's ranking of a session.
func (c *Client) SubmitRanking(ctx context.Context, id string, submission RankingSubmission) error {
	_, err := c.do(ctx, "submit ranking", http.MethodPost, "/session/"+url.PathEscape(id), submission, false)
	return err
}

func (c *Client) ConsensusRanking(ctx context.Context, id string) ([]string, error) {
	raw, err := c.do(ctx, "consensus ranking", http.MethodGet, "/manage/"+url.PathEscape(id), nil, false)
	if err != nil {
		return nil, err
	}
	var resp consensusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &TransportError{Op: "consensus ranking", Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.ConsensusRanking != nil {
		return resp.ConsensusRanking, nil
	}
	if resp.SnakeRanking != nil {
		return resp.SnakeRanking, nil
	}
	return []string{}, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	raw, err := c.do(ctx, "list sessions", http.MethodGet, "/sessions", nil, false)
	if err != nil {
		return nil, err
	}
	var ids []json.Number
	if err := decodeIDs(raw, &ids); err != nil {
		return nil, &TransportError{Op: "list sessions", Err: fmt.Errorf("decode response: %w", err)}
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out, nil
}

// ValidateIdea asks the service to rate the quality of a single idea.
func (c *Client) ValidateIdea(ctx context.Context, idea string) (Quality, error) {
	raw, err := c.do(ctx, "validate", http.MethodPost, "/validate", validateRequest{Idea: idea}, false)
	if err != nil {
		return Quality{}, err
	}
	// The service has been seen to answer with the JSON document encoded as a string.
	var inner string
	if json.Unmarshal(raw, &inner) == nil {
		raw = []byte(inner)
	}
	var resp validateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Quality{}, &TransportError{Op: "validate", Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.Rating, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, auth bool) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("analysis %s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(snippet(raw))}
	}
	return raw, nil
}

func decodeIDs(raw []byte, ids *[]json.Number) error {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			Sessions []json.RawMessage `json:"sessions"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return err
		}
		items = wrapped.Sessions
	}
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			*ids = append(*ids, json.Number(s))
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return err
		}
		*ids = append(*ids, n)
	}
	return nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "empty response"
	}
	return s
}
