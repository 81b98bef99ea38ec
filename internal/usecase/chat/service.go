// Package chat answers caregiver questions about a patient's treatment,
// grounded in the ingested guideline corpus and bounded by guardrails.
package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/evidence"
)

const systemPrompt = `You are a support assistant for the caregivers of
pediatric patients. Answer questions about medications and treatment
plans using ONLY the guideline excerpts provided with each question.

Hard rules:
- Never diagnose, never suggest changing a dose or schedule, and never
  recommend starting or stopping a medication.
- If the excerpts do not cover the question, say so and recommend
  asking the treating clinician.
- For anything that sounds urgent or like an emergency, tell the
  caregiver to contact emergency services or their clinician immediately.
- Cite the excerpt source when you use one.`

// Emergency language skips retrieval and the model entirely; the only
// correct answer is an escalation. Questions arrive in Spanish or English.
var emergencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bemergenc`),
	regexp.MustCompile(`(?i)\burgencia`),
	regexp.MustCompile(`(?i)(cannot|can't|can not) breathe`),
	regexp.MustCompile(`(?i)no (puede respirar|respira)`),
	regexp.MustCompile(`(?i)\b(unconscious|inconsciente|seizure|convulsi)`),
	regexp.MustCompile(`(?i)\b(overdose|sobredosis)`),
}

const escalationAnswer = "This sounds like it could be an emergency. " +
	"Please contact emergency services or the treating clinician right now. " +
	"I cannot help with urgent medical situations."

// Reply is a grounded chatbot answer with the excerpts it drew from.
type Reply struct {
	Answer  string
	Sources []evidence.Item
}

type retriever interface {
	Retrieve(ctx context.Context, query, drugName string) ([]evidence.Item, error)
}

// Service is the guardrailed patient chatbot.
type Service struct {
	completer domain.Completer
	retriever retriever
	logger    *zap.Logger
}

func New(completer domain.Completer, r retriever, logger *zap.Logger) *Service {
	return &Service{completer: completer, retriever: r, logger: logger}
}

// Answer replies to one caregiver question. Retrieval failures are
// absorbed; the model is then told it has no excerpts to work from.
func (s *Service) Answer(ctx context.Context, question string) (Reply, error) {
	if strings.TrimSpace(question) == "" {
		return Reply{}, fmt.Errorf("empty question")
	}

	if isEmergency(question) {
		s.logger.Info("chat question escalated", zap.String("question", question))
		return Reply{Answer: escalationAnswer}, nil
	}

	items, err := s.retriever.Retrieve(ctx, question, "")
	if err != nil {
		s.logger.Warn("chat retrieval failed, answering without excerpts", zap.Error(err))
		items = nil
	}

	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	if len(items) == 0 {
		sb.WriteString("No guideline excerpts are available for this question.\n")
	} else {
		sb.WriteString("Guideline excerpts:\n")
		for i, item := range items {
			fmt.Fprintf(&sb, "%d. [%s, page %d] %s\n", i+1, item.Source, item.Page, item.Excerpt)
		}
	}

	res, err := s.completer.Complete(ctx, domain.CompletionRequest{
		System: systemPrompt,
		Prompt: sb.String(),
		Stage:  domain.StageChat,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	answer := strings.TrimSpace(res.Content)
	if answer == "" {
		return Reply{}, fmt.Errorf("chat completion: %w", domain.ErrMalformedOutput)
	}
	return Reply{Answer: answer, Sources: items}, nil
}

func isEmergency(question string) bool {
	for _, p := range emergencyPatterns {
		if p.MatchString(question) {
			return true
		}
	}
	return false
}
