// Package llm implements the response orchestrator: a sequential cascade of
// hosted text-generation providers that collapses to a static keyword-matched
// knowledge base when every networked attempt fails. Generate never returns
// an error; the caller always receives exactly one outcome.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thc1006/robotics-rag/internal/llm/providers"
	"github.com/thc1006/robotics-rag/pkg/config"
)

// ModelFallback is the sentinel model identifier for responses produced by
// the offline knowledge base.
const ModelFallback = "(Fallback)"

// SucceededVia values recorded on a GenerationOutcome.
const (
	SucceededViaProvider = "configured_provider"
	SucceededViaFallback = "fallback"
)

// Document is one retrieved context chunk handed to the orchestrator.
type Document struct {
	Source string
	Text   string
}

// GenerationRequest carries the inputs for one orchestrated generation.
// It is immutable once constructed; the orchestrator never modifies it.
type GenerationRequest struct {
	Query            string
	ContextDocuments []Document
	History          []providers.Message
}

// GenerationOutcome is the single result of a generation. ModelUsed always
// names the provider that actually produced the text, never the configured
// provider when that provider failed over.
type GenerationOutcome struct {
	ResponseText string
	ModelUsed    string
	SucceededVia string
}

// MetricsRecorder receives cascade observations. A nil recorder is valid.
type MetricsRecorder interface {
	RecordLLMAttempt(provider, outcome string)
	RecordFallbackResponse()
}

// attempt is one entry in the ordered provider strategy list.
type attempt struct {
	name     string
	provider providers.Provider
}

// ChatService orchestrates the provider cascade. The attempt order is fixed
// at construction: the configured active provider first (when it is Gemini or
// Claude), then OpenAI unconditionally whenever its client exists. The
// asymmetry is deliberate: OpenAI is the default networked fallback even when
// it is not the configured provider.
type ChatService struct {
	cfg      *config.Config
	logger   *slog.Logger
	gemini   providers.Provider
	claude   providers.Provider
	openai   providers.Provider
	fallback *FallbackKB
	metrics  MetricsRecorder
}

// NewChatService builds the orchestrator from configuration. Providers whose
// credential is absent are skipped with a log line rather than failing
// construction; the service can always answer from the fallback KB.
func NewChatService(cfg *config.Config, factory providers.Factory, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}

	s := &ChatService{
		cfg:    cfg,
		logger: logger,
	}

	// Gemini and Claude clients exist only when selected as the active
	// provider, mirroring the configuration gating of the cascade. The
	// selector is matched case-insensitively; config normalizes it but a
	// directly constructed Config may not.
	if strings.EqualFold(cfg.LLMProvider, providers.ProviderTypeGoogle.String()) {
		s.gemini = s.buildProvider(factory, &providers.Config{
			Type:        providers.ProviderTypeGoogle,
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.LLMTimeout,
		})
	}

	if strings.EqualFold(cfg.LLMProvider, providers.ProviderTypeClaude.String()) {
		s.claude = s.buildProvider(factory, &providers.Config{
			Type:        providers.ProviderTypeClaude,
			APIKey:      cfg.ClaudeAPIKey,
			Model:       cfg.ClaudeModel,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.LLMTimeout,
		})
	}

	// OpenAI is always constructed when credentialed; it backs the cascade
	// regardless of the active provider selection.
	s.openai = s.buildProvider(factory, &providers.Config{
		Type:        providers.ProviderTypeOpenAI,
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.ChatModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.LLMTimeout,
	})

	s.fallback = NewFallbackKB(nil)
	if cfg.FallbackKBFile != "" {
		kb, err := LoadFallbackKB(cfg.FallbackKBFile)
		if err != nil {
			logger.Warn("Failed to load fallback KB file, using built-in entries",
				slog.String("file", cfg.FallbackKBFile),
				slog.String("error", err.Error()))
		} else {
			s.fallback = kb
			logger.Info("Loaded fallback KB override",
				slog.String("file", cfg.FallbackKBFile),
				slog.Int("entries", len(kb.entries)))
		}
	}

	return s
}

// SetMetrics attaches a metrics recorder. Must be called before serving.
func (s *ChatService) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

func (s *ChatService) buildProvider(factory providers.Factory, cfg *providers.Config) providers.Provider {
	provider, err := factory.CreateProvider(cfg)
	if err != nil {
		if providers.IsUnavailableError(err) {
			s.logger.Info("Provider unavailable, skipping",
				slog.String("provider", cfg.Type.String()))
		} else {
			s.logger.Warn("Failed to construct provider",
				slog.String("provider", cfg.Type.String()),
				slog.String("error", err.Error()))
		}
		return nil
	}
	return provider
}

// attempts assembles the ordered strategy list for one request. Unavailable
// providers are absent from the list entirely.
func (s *ChatService) attempts() []attempt {
	list := make([]attempt, 0, 2)
	if s.gemini != nil {
		list = append(list, attempt{name: providers.ProviderTypeGoogle.String(), provider: s.gemini})
	}
	if s.claude != nil {
		list = append(list, attempt{name: providers.ProviderTypeClaude.String(), provider: s.claude})
	}
	if s.openai != nil {
		list = append(list, attempt{name: providers.ProviderTypeOpenAI.String(), provider: s.openai})
	}
	return list
}

// Generate runs the provider cascade for a retrieval-augmented query. It
// never returns an error: when every provider fails or none is available the
// outcome comes from the static fallback knowledge base.
func (s *ChatService) Generate(ctx context.Context, req *GenerationRequest) *GenerationOutcome {
	contextBlock := buildContextBlock(req.ContextDocuments)
	system := buildSystemPrompt(contextBlock)

	if outcome := s.runCascade(ctx, system, req.Query, req.History); outcome != nil {
		return outcome
	}

	if s.metrics != nil {
		s.metrics.RecordFallbackResponse()
	}
	s.logger.Info("All providers exhausted, answering from fallback KB",
		slog.String("query", req.Query))

	return &GenerationOutcome{
		ResponseText: s.fallback.Respond(req.Query),
		ModelUsed:    ModelFallback,
		SucceededVia: SucceededViaFallback,
	}
}

// GenerateWithSelection runs the identical cascade with a system prompt that
// embeds the user-selected passage verbatim. Its terminal fallback is a
// selection-specific template rather than the keyword KB.
func (s *ChatService) GenerateWithSelection(ctx context.Context, query, selectedText string) *GenerationOutcome {
	system := buildSelectionPrompt(selectedText)

	if outcome := s.runCascade(ctx, system, query, nil); outcome != nil {
		return outcome
	}

	if s.metrics != nil {
		s.metrics.RecordFallbackResponse()
	}
	s.logger.Info("All providers exhausted for selection query",
		slog.String("query", query))

	return &GenerationOutcome{
		ResponseText: fmt.Sprintf("Based on the selected text:\n%s\n\nYour question: %s\n\n(Fallback response)", selectedText, query),
		ModelUsed:    ModelFallback,
		SucceededVia: SucceededViaFallback,
	}
}

// runCascade tries each provider exactly once in order and returns the first
// successful outcome, or nil when every attempt failed.
func (s *ChatService) runCascade(ctx context.Context, system, query string, history []providers.Message) *GenerationOutcome {
	req := &providers.Request{
		System:  system,
		Query:   query,
		History: history,
	}

	for _, att := range s.attempts() {
		result, err := s.tryProvider(ctx, att, req)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordLLMAttempt(att.name, "failure")
			}
			s.logger.Warn("Provider attempt failed, continuing cascade",
				slog.String("provider", att.name),
				slog.String("error", err.Error()))
			continue
		}

		if s.metrics != nil {
			s.metrics.RecordLLMAttempt(att.name, "success")
		}
		return &GenerationOutcome{
			ResponseText: result.Text,
			ModelUsed:    result.Model,
			SucceededVia: SucceededViaProvider,
		}
	}

	return nil
}

// tryProvider makes the single allowed call for one provider attempt under a
// per-attempt timeout.
func (s *ChatService) tryProvider(ctx context.Context, att attempt, req *providers.Request) (*providers.Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
	defer cancel()

	result, err := att.provider.Generate(attemptCtx, req)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Text == "" {
		return nil, providers.ErrEmptyResponse
	}
	return result, nil
}

// Close releases all provider clients.
func (s *ChatService) Close() error {
	for _, att := range s.attempts() {
		if err := att.provider.Close(); err != nil {
			s.logger.Warn("Failed to close provider",
				slog.String("provider", att.name),
				slog.String("error", err.Error()))
		}
	}
	return nil
}
