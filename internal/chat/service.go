// Package chat backs the website chat widget: skills CRUD, prompt assembly,
// and the completion call, with a handoff flag when the model cannot help.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/pkg/logger"
	"github.com/mact/ops-server/internal/service/outreach"
)

// SkillRepository persists chat skills.
type SkillRepository interface {
	Get(ctx context.Context, id string) (*domain.Skill, error)
	List(ctx context.Context, tenantID string, enabledOnly bool) ([]domain.Skill, error)
	Create(ctx context.Context, s *domain.Skill) (string, error)
	Update(ctx context.Context, s *domain.Skill) error
	Delete(ctx context.Context, tenantID, id string) error
}

// Request is one user message plus the prior conversation.
type Request struct {
	Message string    `json:"message"`
	History []Message `json:"history,omitempty"`
}

// Reply is the assistant's answer. Handoff means the model could not answer
// from its skills and a human should take over.
type Reply struct {
	Message string `json:"message"`
	Handoff bool   `json:"handoff"`
}

// Config tunes the chat service.
type Config struct {
	BusinessName string
}

// Service answers chat-widget messages using the tenant's enabled skills.
type Service struct {
	skills    SkillRepository
	completer Completer
	cfg       Config
}

func NewService(skills SkillRepository, completer Completer, cfg Config) *Service {
	return &Service{skills: skills, completer: completer, cfg: cfg}
}

// Chat validates the request, assembles the prompt from enabled skills, and
// returns the model's reply.
func (s *Service) Chat(ctx context.Context, tenantID string, req Request) (*Reply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", outreach.ErrValidation)
	}

	skills, err := s.skills.List(ctx, tenantID, true)
	if err != nil {
		return nil, fmt.Errorf("listing skills: %w", err)
	}

	system, err := renderSystemPrompt(s.cfg.BusinessName, skills)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(req.History)+2)
	messages = append(messages, Message{Role: "system", Content: system})
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: "user", Content: req.Message})

	answer, err := s.completer.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	reply := &Reply{Message: strings.TrimSpace(answer)}
	if strings.HasPrefix(reply.Message, handoffMarker) {
		reply.Handoff = true
		reply.Message = strings.TrimSpace(strings.TrimPrefix(reply.Message, handoffMarker))
		logger.Info("chat handoff requested", "tenant_id", tenantID, "skills", len(skills))
	}
	return reply, nil
}
