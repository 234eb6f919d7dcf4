package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Client is a small JSON client for the rating API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is the service's error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status int
	Code   string
	Msg    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d (%s): %s", e.Status, e.Code, e.Msg)
}

// do sends a request and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		_ = json.Unmarshal(data, &ae)
		return &StatusError{Status: resp.StatusCode, Code: ae.Code, Msg: ae.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

// Participant is the subset of a profile the load run reads.
type Participant struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Tier  string  `json:"tier"`
}

// RankedParticipant is a leaderboard row.
type RankedParticipant struct {
	Participant
	Rank int `json:"rank"`
}

// Match is a match as seen from one participant.
type Match struct {
	ID        string `json:"id"`
	PartnerID string `json:"partner_id"`
}

// RatingOutcome is the subset of a recorded rating the load run reads.
type RatingOutcome struct {
	InteractionID string `json:"interaction_id"`
	MutualMatch   bool   `json:"mutual_match"`
	MatchCreated  bool   `json:"match_created"`
	MatchID       string `json:"match_id"`
}

// Summary is the population summary.
type Summary struct {
	TotalParticipants int     `json:"total_participants"`
	HighestScore      float64 `json:"highest_score"`
	LowestScore       float64 `json:"lowest_score"`
	AverageScore      float64 `json:"average_score"`
}

type ratingBody struct {
	FromID     string `json:"from_id"`
	ToID       string `json:"to_id"`
	Value      int    `json:"value"`
	IsPositive bool   `json:"is_positive"`
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

// CreateParticipant creates one participant.
func (c *Client) CreateParticipant(ctx context.Context, name string, age int) (Participant, error) {
	var p Participant
	body := map[string]any{"name": name, "age": age}
	err := c.do(ctx, http.MethodPost, "/participants", body, nil, &p)
	return p, err
}

// Rate submits a rating, optionally under an idempotency key.
func (c *Client) Rate(ctx context.Context, j Job) (RatingOutcome, error) {
	var out RatingOutcome
	var headers map[string]string
	if j.Key != "" {
		headers = map[string]string{"Idempotency-Key": j.Key}
	}
	body := ratingBody{FromID: j.FromID, ToID: j.ToID, Value: j.Value, IsPositive: j.Positive}
	err := c.do(ctx, http.MethodPost, "/ratings", body, headers, &out)
	return out, err
}

// Participants lists all participants.
func (c *Client) Participants(ctx context.Context) ([]Participant, error) {
	var ps []Participant
	err := c.do(ctx, http.MethodGet, "/participants", nil, nil, &ps)
	return ps, err
}

// Leaderboard fetches the top n.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]RankedParticipant, error) {
	var rows []RankedParticipant
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leaderboard?limit=%d", n), nil, nil, &rows)
	return rows, err
}

// Matches lists the matches of id.
func (c *Client) Matches(ctx context.Context, id string) ([]Match, error) {
	var ms []Match
	err := c.do(ctx, http.MethodGet, "/participants/"+id+"/matches", nil, nil, &ms)
	return ms, err
}

// Summary fetches the population summary.
func (c *Client) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := c.do(ctx, http.MethodGet, "/stats", nil, nil, &s)
	return s, err
}
