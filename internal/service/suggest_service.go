package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"proctorly/internal/config"
	"proctorly/internal/model"
)

// SuggestService generates AI grade suggestions for free-response answers
// via the Gemini API. Suggestions are never persisted: they are returned to
// the grading session and become durable only through an explicit grade save.
type SuggestService struct {
	config *config.AIConfig
	client *http.Client
}

// NewSuggestService creates a new suggestion service
func NewSuggestService() *SuggestService {
	cfg := config.DefaultAIConfig()
	return &SuggestService{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
	}
}

// SuggestOne generates a suggestion for a single free-response answer
func (s *SuggestService) SuggestOne(ctx context.Context, question *model.Question, answer *model.Answer) (*model.GradeSuggestion, error) {
	if !s.config.IsEnabled() {
		return s.mockSuggest(question, answer), nil
	}

	prompt := s.buildSuggestPrompt(question, answer)
	response, err := s.callGemini(ctx, s.config.Models.Suggest, prompt)
	if err != nil {
		// Fallback to mock on error
		return s.mockSuggest(question, answer), nil
	}

	var suggestion model.GradeSuggestion
	if err := json.Unmarshal([]byte(response), &suggestion); err != nil {
		return s.mockSuggest(question, answer), nil
	}

	suggestion.AnswerID = answer.ID
	suggestion.MaxPoints = question.Points
	if suggestion.SuggestedPoints < 0 {
		suggestion.SuggestedPoints = 0
	}
	if suggestion.SuggestedPoints > question.Points {
		suggestion.SuggestedPoints = question.Points
	}

	return &suggestion, nil
}

// SuggestAll generates suggestions for every ungraded free-response answer
// of an attempt using the batch model.
func (s *SuggestService) SuggestAll(ctx context.Context, test *model.Test, answers []*model.Answer) ([]model.GradeSuggestion, error) {
	var suggestions []model.GradeSuggestion
	for _, answer := range answers {
		q := test.QuestionByID(answer.QuestionID)
		if q == nil || q.Type.IsObjective() || answer.Graded() {
			continue
		}

		if !s.config.IsEnabled() {
			suggestions = append(suggestions, *s.mockSuggest(q, answer))
			continue
		}

		prompt := s.buildSuggestPrompt(q, answer)
		response, err := s.callGemini(ctx, s.config.Models.BatchSuggest, prompt)
		if err != nil {
			suggestions = append(suggestions, *s.mockSuggest(q, answer))
			continue
		}

		var suggestion model.GradeSuggestion
		if err := json.Unmarshal([]byte(response), &suggestion); err != nil {
			suggestions = append(suggestions, *s.mockSuggest(q, answer))
			continue
		}
		suggestion.AnswerID = answer.ID
		suggestion.MaxPoints = q.Points
		suggestions = append(suggestions, suggestion)
	}

	return suggestions, nil
}

// callGemini makes a request to the Gemini API
func (s *SuggestService) callGemini(ctx context.Context, modelName, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]string{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s?key=%s", s.config.ModelEndpoint(modelName), s.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	// Parse Gemini response structure
	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", err
	}

	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		return geminiResp.Candidates[0].Content.Parts[0].Text, nil
	}

	return "", fmt.Errorf("empty response from Gemini")
}

func (s *SuggestService) buildSuggestPrompt(question *model.Question, answer *model.Answer) string {
	return fmt.Sprintf(`You are grading a timed-test free-response answer. Return ONLY valid JSON matching this schema:
{
  "suggestedPoints": 0.0 to %.1f,
  "explanation": "2-3 sentence justification a human grader can review",
  "strengths": ["what the answer does well"],
  "gaps": ["what the answer is missing"]
}

Question: %s
Rubric: %s
Maximum points: %.1f
Candidate's answer: %s

Grade strictly against the rubric. Suggest partial credit where the rubric
supports it. The suggestion will be reviewed by a human grader.`,
		question.Points, question.Prompt, question.Rubric, question.Points, answer.AnswerText)
}

// mockSuggest produces a deterministic suggestion when no API key is set,
// so local development and tests run without network access.
func (s *SuggestService) mockSuggest(question *model.Question, answer *model.Answer) *model.GradeSuggestion {
	wordCount := len(strings.Fields(answer.AnswerText))
	ratio := float64(wordCount) / 50.0
	if ratio > 1.0 {
		ratio = 1.0
	}

	return &model.GradeSuggestion{
		AnswerID:        answer.ID,
		SuggestedPoints: ratio * question.Points,
		MaxPoints:       question.Points,
		Explanation:     "Mock suggestion based on response length.",
		Strengths:       []string{"response provided"},
		Gaps:            []string{"specifics", "examples"},
	}
}
