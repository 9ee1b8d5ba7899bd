package answer

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/config"
	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
)

const systemPrompt = "You are a helpful discussion assistant in a classroom chat room. " +
	"Students ask you questions about the topic under discussion. " +
	"Answer briefly and clearly, in a tone suitable for a classroom. " +
	"If the question is unrelated to studying, gently steer the student back to the topic."

const fallbackReply = "I can't reach the language model right now. " +
	"Please ask your teacher, or try again later."

// Service generates replies for questions directed at the automated
// participant. Without Ark credentials it stays in fallback mode and
// returns a canned reply, so the reference server works offline.
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	log   zerolog.Logger
}

// NewService builds the reply chain when credentials are configured.
func NewService(ctx context.Context, cfg config.AIConfig, log zerolog.Logger) (*Service, error) {
	svc := &Service{log: log}
	if !cfg.Enabled() {
		return svc, nil
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile answer chain: %w", err)
	}

	svc.chain = runnable
	return svc, nil
}

// Enabled reports whether a real model backs the service.
func (s *Service) Enabled() bool {
	return s.chain != nil
}

// Answer produces a reply to one student question, given the recent room
// transcript for context.
func (s *Service) Answer(ctx context.Context, question string, history []chat.Message) (string, error) {
	if !s.Enabled() {
		return fallbackReply, nil
	}

	input := map[string]any{
		"system":  systemPrompt,
		"history": buildHistory(history),
		"query":   question,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run answer chain: %w", err)
	}

	s.log.Debug().Int("length", len(response.Content)).Msg("generated answer")
	return response.Content, nil
}

func buildHistory(messages []chat.Message) []*schema.Message {
	const historyLimit = 10

	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch {
		case msg.IsSystem():
			continue
		case msg.SenderID == chat.SenderGPT:
			history = append(history, schema.AssistantMessage(msg.Message, nil))
		default:
			name := msg.Name
			if name == "" {
				name = msg.SenderID
			}
			history = append(history, schema.UserMessage(fmt.Sprintf("%s: %s", name, msg.Message)))
		}
	}

	return history
}
