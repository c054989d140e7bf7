package ai

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
)

// FallbackService implements smart AI provider routing with fallback
// - Audio operations (extract, update, transcribe): Gemini only, Ollama cannot take audio
// - Subtask generation: Gemini first (better quality), fallback to Ollama on quota/connection errors
type FallbackService struct {
	gemini TaskIntelligence
	ollama *OllamaService
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(gemini TaskIntelligence, ollama *OllamaService) *FallbackService {
	return &FallbackService{
		gemini: gemini,
		ollama: ollama,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// Check for network errors
	if _, ok := err.(net.Error); ok {
		return true
	}

	// Check for common connection error messages
	errStr := err.Error()
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"EOF",
	}

	for _, indicator := range connectionIndicators {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(indicator)) {
			return true
		}
	}

	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"RESOURCE_EXHAUSTED",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(indicator)) {
			return true
		}
	}

	return false
}

// ExtractTask routes to Gemini, the only provider that accepts audio input
func (f *FallbackService) ExtractTask(ctx context.Context, audioB64, mimeType string) (*ExtractedTask, error) {
	if f.gemini == nil {
		return nil, fmt.Errorf("no audio-capable AI provider available for task extraction")
	}
	result, err := f.gemini.ExtractTask(ctx, audioB64, mimeType)
	if err != nil {
		return nil, fmt.Errorf("gemini task extraction failed: %w", err)
	}
	return result, nil
}

// UpdateTask routes to Gemini, the only provider that accepts audio input
func (f *FallbackService) UpdateTask(ctx context.Context, snapshot TaskSnapshot, audioB64, mimeType string) (*TaskUpdate, error) {
	if f.gemini == nil {
		return nil, fmt.Errorf("no audio-capable AI provider available for task update")
	}
	result, err := f.gemini.UpdateTask(ctx, snapshot, audioB64, mimeType)
	if err != nil {
		return nil, fmt.Errorf("gemini task update failed: %w", err)
	}
	return result, nil
}

// Transcribe routes to Gemini, the only provider that accepts audio input
func (f *FallbackService) Transcribe(ctx context.Context, audioB64, mimeType string) (string, error) {
	if f.gemini == nil {
		return "", fmt.Errorf("no audio-capable AI provider available for transcription")
	}
	result, err := f.gemini.Transcribe(ctx, audioB64, mimeType)
	if err != nil {
		return "", fmt.Errorf("gemini transcription failed: %w", err)
	}
	return result, nil
}

// GenerateSubtasks tries Gemini first (better quality), falls back to Ollama on quota error
func (f *FallbackService) GenerateSubtasks(ctx context.Context, title, description, instruction string) ([]string, error) {
	// Try Gemini first for decomposition (better quality)
	if f.gemini != nil {
		log.Println("[AI] Trying Gemini for subtask generation...")
		result, err := f.gemini.GenerateSubtasks(ctx, title, description, instruction)
		if err == nil {
			log.Println("[AI] Gemini subtask generation successful")
			return result, nil
		}

		// If quota error, try Ollama
		if isQuotaError(err) {
			log.Printf("[AI] Gemini quota exhausted: %v, falling back to Ollama", err)
		} else {
			// Other errors, still try Ollama but log
			log.Printf("[AI] Gemini error: %v, falling back to Ollama", err)
		}
	}

	// Fallback to Ollama
	if f.ollama != nil {
		log.Println("[AI] Using Ollama for subtask generation...")
		result, err := f.ollama.GenerateSubtasks(ctx, title, description, instruction)
		if err == nil {
			log.Println("[AI] Ollama subtask generation successful")
			return result, nil
		}

		// If Ollama also fails with connection error, try Gemini again
		if isConnectionError(err) && f.gemini != nil {
			log.Printf("[AI] Ollama connection failed: %v, retrying Gemini", err)
			return f.gemini.GenerateSubtasks(ctx, title, description, instruction)
		}

		return nil, fmt.Errorf("ollama subtask generation failed: %w", err)
	}

	return nil, fmt.Errorf("no AI provider available for subtask generation")
}
