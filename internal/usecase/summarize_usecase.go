package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"legal-rag/internal/domain"
)

// SummaryPromptVersion tags the prompt layout sent to the generator.
const SummaryPromptVersion = "legal-summary/v1"

// SummarizeInput defines the input parameters for SummarizeUsecase.
type SummarizeInput struct {
	Analyze   AnalyzeInput
	Focus     string
	MaxTokens int
}

// SummarizeOutput is the generated summary with the context it was built from.
type SummarizeOutput struct {
	Summary string                   `json:"summary"`
	Context *domain.AnnotatedContext `json:"context"`
}

// SummarizeUsecase analyzes a text and summarizes the assembled context.
type SummarizeUsecase interface {
	domain.Summarizer
	Execute(ctx context.Context, input SummarizeInput) (*SummarizeOutput, error)
}

type summarizeUsecase struct {
	analyze   AnalyzeUsecase
	llm       domain.LLMClient
	prompts   PromptBuilder
	maxTokens int
	logger    *slog.Logger
}

// NewSummarizeUsecase creates a new SummarizeUsecase.
func NewSummarizeUsecase(analyze AnalyzeUsecase, llm domain.LLMClient, prompts PromptBuilder, maxTokens int, logger *slog.Logger) SummarizeUsecase {
	return &summarizeUsecase{
		analyze:   analyze,
		llm:       llm,
		prompts:   prompts,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

func (u *summarizeUsecase) Execute(ctx context.Context, input SummarizeInput) (*SummarizeOutput, error) {
	annotated, err := u.analyze.Execute(ctx, input.Analyze)
	if err != nil {
		return nil, err
	}

	maxTokens := input.MaxTokens
	if maxTokens <= 0 {
		maxTokens = u.maxTokens
	}
	summary, err := u.generate(ctx, annotated.AssembledText, input.Focus, maxTokens)
	if err != nil {
		return nil, err
	}

	u.logger.InfoContext(ctx, "summary_generated",
		slog.String("request_id", annotated.RequestID),
		slog.Int("summary_length", len(summary)))

	return &SummarizeOutput{Summary: summary, Context: annotated}, nil
}

// Summarize summarizes an already assembled context.
func (u *summarizeUsecase) Summarize(ctx context.Context, contextText string) (string, error) {
	return u.generate(ctx, contextText, "", u.maxTokens)
}

func (u *summarizeUsecase) generate(ctx context.Context, contextText, focus string, maxTokens int) (string, error) {
	prompt, err := u.prompts.Build(SummaryPromptInput{
		PromptVersion: SummaryPromptVersion,
		Context:       contextText,
		Focus:         focus,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	resp, err := u.llm.Generate(ctx, prompt, maxTokens)
	if err != nil {
		return "", domain.NewCollaboratorError("generator", err)
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return "", domain.NewCollaboratorError("generator", fmt.Errorf("empty summary from %s", u.llm.Version()))
	}
	return summary, nil
}
