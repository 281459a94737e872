package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPromptTemplate = `You are an expert at writing study notes.
Turn the given text into a structured, practical note a student can learn from.

Reply format:
### [A clear title capturing the core topic]

#### Summary
- **Key concepts**: the 3-5 most important ideas
- **Main content**: what matters for exams and practice, explained concretely
- **Remember**: tips and pitfalls worth memorising
- **Related knowledge**: background and applications

Explain complex material step by step, use examples, and order information by importance.
Write the entire reply in %s at a level a university student can follow.`

const userPromptTemplate = `Convert the following text into an effective study note:

%s

Extract the information that matters most for learning and structure it for quick review.`

// Summarize turns text into a titled study note.
func (c *Client) Summarize(ctx context.Context, text string) (Summary, error) {
	language := c.cfg.SummaryLanguage
	if language == "" {
		language = "English"
	}

	payload := chatRequest{
		Model: c.cfg.SummaryModel,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, language)},
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, text)},
		},
		Temperature:      c.cfg.SummaryTemperature,
		MaxTokens:        c.cfg.SummaryMaxTokens,
		TopP:             0.8,
		FrequencyPenalty: 0.2,
		PresencePenalty:  0.1,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Summary{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return Summary{}, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	reply, _, err := c.do(ctx, ServiceSummarize, req)
	if err != nil {
		return Summary{}, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(reply, &parsed); err != nil {
		return Summary{}, &UpstreamError{Service: ServiceSummarize, StatusCode: http.StatusOK, Message: "malformed completion: " + err.Error(), Err: err}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return Summary{}, &UpstreamError{Service: ServiceSummarize, StatusCode: http.StatusOK, Message: "empty completion", Err: ErrEmptyResponse}
	}

	return ParseSummary(parsed.Choices[0].Message.Content), nil
}
