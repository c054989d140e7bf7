package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaService implements TaskIntelligence using a local Ollama LLM.
// Ollama models are text-only here, so the audio operations report
// ErrAudioUnsupported and the fallback router keeps those on Gemini.
type OllamaService struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	// Use static values (for backward compatibility when no runtime config)
	return &OllamaService{
		getBaseURL: func() string { return baseURL },
		getModel:   func() string { return model },
	}
}

// NewOllamaServiceWithGetters creates a new Ollama service with dynamic getters
func NewOllamaServiceWithGetters(getBaseURL, getModel func() string) *OllamaService {
	return &OllamaService{
		getBaseURL: getBaseURL,
		getModel:   getModel,
	}
}

func (o *OllamaService) ExtractTask(ctx context.Context, audioB64, mimeType string) (*ExtractedTask, error) {
	return nil, ErrAudioUnsupported
}

func (o *OllamaService) UpdateTask(ctx context.Context, snapshot TaskSnapshot, audioB64, mimeType string) (*TaskUpdate, error) {
	return nil, ErrAudioUnsupported
}

func (o *OllamaService) Transcribe(ctx context.Context, audioB64, mimeType string) (string, error) {
	return "", ErrAudioUnsupported
}

// GenerateSubtasks implements TaskIntelligence for text decomposition
func (o *OllamaService) GenerateSubtasks(ctx context.Context, title, description, instruction string) ([]string, error) {
	prompt := fmt.Sprintf(`You are a task planning assistant. Decompose the task below into 3-6 concrete, actionable steps.

Task title: %s
Task description: %s

Rules:
1. Each step is a short imperative sentence.
2. ONLY return a JSON array of strings, no other text.`, title, description)
	if instruction != "" {
		prompt += fmt.Sprintf("\n3. Follow this instruction from the user: %s", instruction)
	}

	responseText, err := o.generate(ctx, prompt, 500)
	if err != nil {
		return nil, err
	}

	// Extract JSON from response
	responseText = stripCodeFence(responseText)
	jsonStart := strings.Index(responseText, "[")
	jsonEnd := strings.LastIndex(responseText, "]")
	if jsonStart != -1 && jsonEnd != -1 && jsonEnd > jsonStart {
		responseText = responseText[jsonStart : jsonEnd+1]
	}

	var steps []string
	if err := json.Unmarshal([]byte(responseText), &steps); err != nil {
		// Fall back to line-based parsing for models that ignore the format
		lines := strings.Split(responseText, "\n")
		for _, line := range lines {
			line = strings.TrimSpace(line)
			line = strings.TrimPrefix(line, "- ")
			line = strings.TrimPrefix(line, "* ")
			if line != "" {
				steps = append(steps, line)
			}
		}
		if len(steps) == 0 {
			return nil, fmt.Errorf("failed to parse subtask JSON: %v", err)
		}
	}

	return steps, nil
}

// generate performs one non-streaming /api/generate call.
func (o *OllamaService) generate(ctx context.Context, prompt string, numPredict int) (string, error) {
	url := o.getBaseURL() + "/api/generate"

	payload := map[string]interface{}{
		"model":  o.getModel(),
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": 0.2,
			"num_predict": numPredict,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return strings.TrimSpace(result.Response), nil
}

// stripCodeFence removes markdown code blocks some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(s, "```")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
