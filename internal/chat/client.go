package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/user/catalog-chat/internal/gateway"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invocationRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Client calls a model-serving endpoint over the invocations API and pulls
// the reply text out of whatever response shape the endpoint produces.
type Client struct {
	sender   gateway.Sender
	host     string
	endpoint string
}

func NewClient(sender gateway.Sender, host, endpoint string) *Client {
	return &Client{
		sender:   sender,
		host:     strings.TrimRight(host, "/"),
		endpoint: endpoint,
	}
}

func (c *Client) invocationsURL() string {
	return fmt.Sprintf("%s/serving-endpoints/%s/invocations", c.host, c.endpoint)
}

// Complete sends the conversation to the serving endpoint and returns the
// extracted reply text.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	payload, err := json.Marshal(invocationRequest{
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat payload: %w", err)
	}

	res, err := c.sender.Send(ctx, &gateway.Request{
		Op:     "chat_completion",
		Method: http.MethodPost,
		URL:    c.invocationsURL(),
		Body:   payload,
	})
	if err != nil {
		return "", err
	}

	return ExtractText(res.Body), nil
}

// ExtractText pulls reply text out of a serving response. Providers disagree
// on the shape, so the common ones are tried in order; the raw JSON is the
// last resort.
func ExtractText(body []byte) string {
	// Plain string response
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}

	// OpenAI-compatible: choices[0].message.content or choices[0].text
	var choices struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &choices); err == nil && len(choices.Choices) > 0 {
		if choices.Choices[0].Message.Content != "" {
			return choices.Choices[0].Message.Content
		}
		if choices.Choices[0].Text != "" {
			return choices.Choices[0].Text
		}
	}

	// Gemini-style: candidates[0].content.parts[].text
	var candidates struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &candidates); err == nil && len(candidates.Candidates) > 0 {
		var b strings.Builder
		for _, part := range candidates.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			return b.String()
		}
	}

	// Flat string fields used by various providers
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(body, &flat); err == nil {
		for _, key := range []string{"output_text", "generated_text", "text", "response"} {
			if raw, ok := flat[key]; ok {
				var val string
				if err := json.Unmarshal(raw, &val); err == nil {
					return val
				}
			}
		}
	}

	// Last resort: hand back the body itself, indented when possible
	var pretty any
	if err := json.Unmarshal(body, &pretty); err == nil {
		if dump, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			return string(dump)
		}
	}
	return string(body)
}
