package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"caspview/internal/config"
	"caspview/internal/survey"
	"caspview/internal/votes"

	"github.com/google/uuid"
)

// maxBody caps how much of a response is read.
const maxBody = 16 << 20

// TransportError is a network failure or a non-success status on a read.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP error! status: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// VoteRejectedError means the server refused a vote or answered with a
// non-success status.
type VoteRejectedError struct {
	Key        votes.Key
	StatusCode int
	Reason     string
}

func (e *VoteRejectedError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "Failed to record vote"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("vote %s rejected (status %d): %s", e.Key, e.StatusCode, reason)
	}
	return fmt.Sprintf("vote %s rejected: %s", e.Key, reason)
}

type Client struct {
	baseURL         string
	responsesAction string
	voteMethod      string
	client          *http.Client
	log             *slog.Logger
}

// NewClient validates cfg and builds a client. It returns an error wrapping
// config.ErrNotConfigured when the API URL is missing.
func NewClient(cfg *config.Config, log *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		baseURL:         strings.TrimSpace(cfg.APIURL),
		responsesAction: cfg.ResponsesAction,
		voteMethod:      cfg.VoteMethod,
		client: &http.Client{
			Timeout: cfg.RequestTimeout.Duration,
		},
		log: log,
	}, nil
}

func (c *Client) actionURL(params url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid API URL: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) doRequest(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "url", target, "request_id", requestID, "error", err)
		return nil, err
	}
	c.log.Debug("request done", "method", method, "url", target, "request_id", requestID,
		"status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// get fetches target and returns the body of a 2xx response
func (c *Client) get(ctx context.Context, op string, params url.Values) ([]byte, error) {
	target, err := c.actionURL(params)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	resp, err := c.doRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return data, nil
}

// FetchResponses loads and normalises the response payload
func (c *Client) FetchResponses(ctx context.Context) (*survey.Model, error) {
	var params url.Values
	if c.responsesAction != "" {
		params = url.Values{"action": {c.responsesAction}}
	}

	data, err := c.get(ctx, "fetch responses", params)
	if err != nil {
		return nil, err
	}

	model, err := survey.Normalize(data)
	if err != nil {
		return nil, fmt.Errorf("fetch responses: %w", err)
	}

	c.log.Info("responses loaded", "questions", model.QuestionCount(), "rows", len(model.Responses))
	return model, nil
}

// FetchVotes loads the server vote counts. A body in an unknown shape yields
// empty counts; only transport failures are returned as errors.
func (c *Client) FetchVotes(ctx context.Context) (votes.Counts, error) {
	data, err := c.get(ctx, "fetch votes", url.Values{"action": {"getVotes"}})
	if err != nil {
		return nil, err
	}

	counts := votes.LoadServerVotes(data)
	c.log.Info("votes loaded", "pairs", len(counts))
	return counts, nil
}

type voteRequest struct {
	Action          string `json:"action"`
	QuestionIndex   int    `json:"questionIndex"`
	StudentRowIndex int    `json:"studentRowIndex"`
}

type voteResult struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// SubmitVote records one vote. Depending on the configured vote method it
// POSTs a JSON body or issues a recordVote GET. The vote counts as accepted
// when the reply carries no error and success is absent or true.
func (c *Client) SubmitVote(ctx context.Context, k votes.Key) error {
	var (
		resp *http.Response
		err  error
	)

	switch c.voteMethod {
	case "get":
		var target string
		target, err = c.actionURL(url.Values{
			"action":          {"recordVote"},
			"questionIndex":   {strconv.Itoa(k.Question)},
			"studentRowIndex": {strconv.Itoa(k.Row)},
		})
		if err != nil {
			return &TransportError{Op: "submit vote", Err: err}
		}
		resp, err = c.doRequest(ctx, http.MethodGet, target, nil)
	default:
		body, _ := json.Marshal(voteRequest{
			Action:          "vote",
			QuestionIndex:   k.Question,
			StudentRowIndex: k.Row,
		})
		resp, err = c.doRequest(ctx, http.MethodPost, c.baseURL, body)
	}
	if err != nil {
		return &TransportError{Op: "submit vote", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &VoteRejectedError{Key: k, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &TransportError{Op: "submit vote", Err: err}
	}

	var result voteResult
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			return &VoteRejectedError{Key: k, Reason: "unreadable reply"}
		}
	}

	if result.Error != "" {
		return &VoteRejectedError{Key: k, Reason: result.Error}
	}
	if result.Success != nil && !*result.Success {
		return &VoteRejectedError{Key: k}
	}

	c.log.Info("vote recorded", "key", k.String())
	return nil
}
