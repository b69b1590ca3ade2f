package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/internal/adapters/config"
	"github.com/selivandex/crypto-pulse/pkg/logger"
)

// OpenAIClassifier implements zero-shot coin classification via the
// chat completions API
type OpenAIClassifier struct {
	apiKey  string
	model   string
	baseURL string
	enabled bool
	client  *http.Client
}

// NewOpenAIClassifier creates new OpenAI classifier
func NewOpenAIClassifier(cfg *config.ClassifierConfig) *OpenAIClassifier {
	return &OpenAIClassifier{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		enabled: cfg.Enabled && cfg.APIKey != "",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (o *OpenAIClassifier) GetName() string {
	return "openai"
}

func (o *OpenAIClassifier) IsEnabled() bool {
	return o.enabled
}

// ClassifyCoin asks the model to pick one candidate label for the text
func (o *OpenAIClassifier) ClassifyCoin(ctx context.Context, text string) (string, float64, error) {
	systemPrompt := fmt.Sprintf(
		"You classify social media posts about cryptocurrencies. "+
			"Pick exactly one label from this list: %s. "+
			"Respond with strict JSON: {\"label\": \"<label>\", \"confidence\": <0..1>}. "+
			"Use \"Other\" when no listed coin fits.",
		strings.Join(CandidateCoins, ", "),
	)

	reqBody := map[string]interface{}{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": text},
		},
		"temperature": 0.0,
		"max_tokens":  50,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", o.apiKey))

	startTime := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", 0, fmt.Errorf("no choices in response")
	}

	content := result.Choices[0].Message.Content

	logger.Debug("classifier response",
		zap.Duration("latency", time.Since(startTime)),
		zap.String("response", content),
	)

	label, confidence, err := parseClassification(content)
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse classifier response: %w", err)
	}

	return label, confidence, nil
}

// parseClassification extracts the label/confidence JSON from model output,
// tolerating surrounding prose or markdown fences
func parseClassification(content string) (string, float64, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", 0, fmt.Errorf("no JSON object in response")
	}

	var parsed struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return "", 0, err
	}

	if parsed.Label == "" {
		return "", 0, fmt.Errorf("empty label in response")
	}

	// Unlisted labels collapse to Other rather than inventing new coins
	valid := false
	for _, c := range CandidateCoins {
		if strings.EqualFold(parsed.Label, c) {
			parsed.Label = c
			valid = true
			break
		}
	}
	if !valid {
		parsed.Label = "Other"
	}

	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	} else if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}

	return parsed.Label, parsed.Confidence, nil
}
