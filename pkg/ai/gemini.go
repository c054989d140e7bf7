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

const geminiModel = "gemini-2.5-flash"

// GeminiService implements TaskIntelligence using the Gemini REST API.
// Gemini takes the audio clip directly as an inline part, so no separate
// transcription pass is needed before extraction.
type GeminiService struct {
	ApiKey string
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{ApiKey: apiKey}
}

const extractPrompt = `You are an expert task management assistant. Your goal is to extract structured information from short audio recordings. You MUST return ONLY a valid JSON object with the specified structure.

Structure:
{
  "title": "string (3-8 words, actionable verb)",
  "project": "string (project name or 'Inbox')",
  "priority": "'high' | 'medium' | 'low'",
  "context": "string (additional details)",
  "due_date": "'YYYY-MM-DD' or null",
  "tags": "string[]",
  "needs_clarification": "boolean",
  "clarification_question": "string or null",
  "confidence_score": "float 0.0-1.0",
  "subtasks_text": "string[] (3-6 concrete, actionable steps)"
}

Extraction Rules:
1. **title**: Extract the main action. Be concise. Example: "Call Juan about the budget" NOT "I need to call Juan".
2. **priority**:
   - HIGH: for "urgent", "asap", "critical", "immediately", "today".
   - LOW: for "someday", "maybe", "eventually".
   - DEFAULT: "medium".
3. **due_date**:
   - "tomorrow" -> calculate tomorrow's date.
   - "next week" -> calculate next Monday's date.
   - "in 3 days" -> calculate the date in 3 days.
4. **project**: Infer from context or use "Inbox" if none is mentioned.
5. **needs_clarification**: Only true if the action is ambiguous or critical information is missing.
6. **confidence_score**: Your confidence in the extraction accuracy from 0.0 to 1.0.
7. **subtasks_text**: Break the task into 3-6 actionable steps, each a short imperative sentence.

Now, analyze the following audio recording and extract the task information:`

const updatePrompt = `You are an expert task management assistant. The user already has the task below and recorded a follow-up note about it. Return ONLY a valid JSON object containing the fields the user asked to change. OMIT every field the recording does not mention.

Possible fields:
{
  "title": "string",
  "description": "string",
  "priority": "'high' | 'medium' | 'low'",
  "subtasks_text": "string[] (a complete replacement checklist)"
}

Rules:
1. Only include a field if the recording clearly changes it.
2. If the recording reworks the plan or steps, return the FULL new checklist in subtasks_text.
3. Never invent fields that were not mentioned.

Current task:
%s

Now, analyze the following audio recording and extract the requested changes:`

func (g *GeminiService) ExtractTask(ctx context.Context, audioB64, mimeType string) (*ExtractedTask, error) {
	schema := map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"title":                  map[string]interface{}{"type": "STRING"},
			"project":                map[string]interface{}{"type": "STRING"},
			"priority":               map[string]interface{}{"type": "STRING", "enum": []string{"high", "medium", "low"}},
			"context":                map[string]interface{}{"type": "STRING"},
			"due_date":               map[string]interface{}{"type": "STRING", "nullable": true},
			"tags":                   map[string]interface{}{"type": "ARRAY", "items": map[string]interface{}{"type": "STRING"}},
			"needs_clarification":    map[string]interface{}{"type": "BOOLEAN"},
			"clarification_question": map[string]interface{}{"type": "STRING", "nullable": true},
			"confidence_score":       map[string]interface{}{"type": "NUMBER"},
			"subtasks_text":          map[string]interface{}{"type": "ARRAY", "items": map[string]interface{}{"type": "STRING"}},
		},
		"required": []string{"title", "project", "priority", "context", "needs_clarification", "confidence_score"},
	}

	parts := []map[string]interface{}{
		{"text": extractPrompt},
		{"inlineData": map[string]string{"data": audioB64, "mimeType": mimeType}},
	}

	text, err := g.generate(ctx, parts, schema)
	if err != nil {
		return nil, err
	}

	var extracted ExtractedTask
	if err := json.Unmarshal([]byte(text), &extracted); err != nil {
		return nil, fmt.Errorf("failed to parse extraction JSON: %w", err)
	}
	if extracted.Title == "" {
		return nil, fmt.Errorf("extraction returned no title")
	}
	return &extracted, nil
}

func (g *GeminiService) UpdateTask(ctx context.Context, snapshot TaskSnapshot, audioB64, mimeType string) (*TaskUpdate, error) {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task snapshot: %w", err)
	}

	schema := map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"title":         map[string]interface{}{"type": "STRING", "nullable": true},
			"description":   map[string]interface{}{"type": "STRING", "nullable": true},
			"priority":      map[string]interface{}{"type": "STRING", "enum": []string{"high", "medium", "low"}, "nullable": true},
			"subtasks_text": map[string]interface{}{"type": "ARRAY", "items": map[string]interface{}{"type": "STRING"}, "nullable": true},
		},
	}

	parts := []map[string]interface{}{
		{"text": fmt.Sprintf(updatePrompt, snapshotJSON)},
		{"inlineData": map[string]string{"data": audioB64, "mimeType": mimeType}},
	}

	text, err := g.generate(ctx, parts, schema)
	if err != nil {
		return nil, err
	}

	var update TaskUpdate
	if err := json.Unmarshal([]byte(text), &update); err != nil {
		return nil, fmt.Errorf("failed to parse update JSON: %w", err)
	}
	return &update, nil
}

func (g *GeminiService) GenerateSubtasks(ctx context.Context, title, description, instruction string) ([]string, error) {
	prompt := fmt.Sprintf(`You are an expert task management assistant. Decompose the task below into 3-6 concrete, actionable steps. Return ONLY a JSON array of strings, each a short imperative sentence.

Task title: %s
Task description: %s`, title, description)
	if instruction != "" {
		prompt += fmt.Sprintf("\n\nAdditional instruction from the user: %s", instruction)
	}

	schema := map[string]interface{}{
		"type":  "ARRAY",
		"items": map[string]interface{}{"type": "STRING"},
	}

	parts := []map[string]interface{}{{"text": prompt}}

	text, err := g.generate(ctx, parts, schema)
	if err != nil {
		return nil, err
	}

	var steps []string
	if err := json.Unmarshal([]byte(text), &steps); err != nil {
		return nil, fmt.Errorf("failed to parse subtask JSON: %w", err)
	}
	return steps, nil
}

func (g *GeminiService) Transcribe(ctx context.Context, audioB64, mimeType string) (string, error) {
	parts := []map[string]interface{}{
		{"text": "Transcribe the following audio recording verbatim. Return only the transcript text, no commentary."},
		{"inlineData": map[string]string{"data": audioB64, "mimeType": mimeType}},
	}

	text, err := g.generate(ctx, parts, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// generate performs one generateContent call and returns the first
// candidate's text. A non-nil schema constrains the response to JSON.
func (g *GeminiService) generate(ctx context.Context, parts []map[string]interface{}, schema map[string]interface{}) (string, error) {
	url := "https://generativelanguage.googleapis.com/v1beta/models/" + geminiModel + ":generateContent?key=" + g.ApiKey

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": parts},
		},
	}
	if schema != nil {
		payload["generationConfig"] = map[string]interface{}{
			"responseMimeType": "application/json",
			"responseSchema":   schema,
		}
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
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}
	return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text), nil
}
