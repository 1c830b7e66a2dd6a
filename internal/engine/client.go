package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"proctorly/internal/model"
)

// Client is the HTTP implementation of Backend against the attempt API. It
// also carries the grading operations, so a grading session can share it.
// No operation retries automatically: event recording is fire-and-forget and
// submission failures are surfaced for an explicit user retry.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the attempt API rooted at baseURL (e.g.
// "https://host/v1"). token is the bearer token for the authenticated user.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError is the error envelope the attempt API returns.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil {
			switch apiErr.Code {
			case model.CodeNeedTestPassword:
				return nil, ErrNeedTestPassword
			case model.CodeMaxAttemptsReached:
				return nil, ErrMaxAttemptsReached
			}
			if apiErr.Error != "" {
				return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, apiErr.Error)
			}
		}
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *Client) StartAttempt(ctx context.Context, testID string, req model.StartAttemptRequest) (*model.Attempt, error) {
	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/tests/%s/attempts", testID), req)
	if err != nil {
		return nil, err
	}
	var attempt model.Attempt
	if err := json.Unmarshal(body, &attempt); err != nil {
		return nil, fmt.Errorf("parse attempt: %w", err)
	}
	return &attempt, nil
}

func (c *Client) RecordEvent(ctx context.Context, attemptID string, req model.RecordEventRequest) error {
	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/attempts/%s/events", attemptID), req)
	return err
}

func (c *Client) PushCounters(ctx context.Context, attemptID string, req model.PushCountersRequest) error {
	_, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/attempts/%s/counters", attemptID), req)
	return err
}

func (c *Client) UpsertAnswer(ctx context.Context, attemptID string, req model.UpsertAnswerRequest) error {
	_, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/attempts/%s/answers", attemptID), req)
	return err
}

func (c *Client) SubmitAttempt(ctx context.Context, attemptID string, req model.SubmitAttemptRequest) (*model.Attempt, error) {
	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/attempts/%s/submit", attemptID), req)
	if err != nil {
		return nil, err
	}
	var attempt model.Attempt
	if err := json.Unmarshal(body, &attempt); err != nil {
		return nil, fmt.Errorf("parse attempt: %w", err)
	}
	return &attempt, nil
}

// ListAnswers fetches all answers of an attempt for grading.
func (c *Client) ListAnswers(ctx context.Context, attemptID string) ([]model.Answer, error) {
	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/attempts/%s/answers", attemptID), nil)
	if err != nil {
		return nil, err
	}
	var answers []model.Answer
	if err := json.Unmarshal(body, &answers); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	return answers, nil
}

// SuggestGrades fetches AI grade suggestions for an attempt.
func (c *Client) SuggestGrades(ctx context.Context, attemptID string, req model.SuggestGradesRequest) ([]model.GradeSuggestion, error) {
	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/attempts/%s/suggestions", attemptID), req)
	if err != nil {
		return nil, err
	}
	var result struct {
		Suggestions []model.GradeSuggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	return result.Suggestions, nil
}

// SaveGrades commits grader edits.
func (c *Client) SaveGrades(ctx context.Context, attemptID string, req model.SaveGradesRequest) error {
	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/attempts/%s/grades", attemptID), req)
	return err
}
