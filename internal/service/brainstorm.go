package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
)

// ReadyReply is the assistant's reply once the parent is happy with the ideas.
const ReadyReply = "Ok, getting your paints ready!"

// ErrChatUnavailable is shown to the parent when the assistant cannot be reached.
var ErrChatUnavailable = errors.New("oops! I couldn't reach the magic cloud, please try again")

// BrainstormReply is the outcome of one chat exchange.
type BrainstormReply struct {
	Turn  model.ConversationTurn
	Ready bool
}

// Brainstorm runs the scene-ideas chat for the current adventure.
type Brainstorm struct {
	adv  *Adventure
	text TextGenerator
	log  *zap.Logger
}

// NewBrainstorm constructs the chat service.
func NewBrainstorm(adv *Adventure, text TextGenerator, log *zap.Logger) *Brainstorm {
	return &Brainstorm{adv: adv, text: text, log: log}
}

// Send appends the parent's message and the assistant's reply to the transcript.
// On failure the parent's message stays in the transcript.
func (b *Brainstorm) Send(ctx context.Context, message string) (BrainstormReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return BrainstormReply{}, fmt.Errorf("%w: empty message", errs.ErrValidation)
	}
	st := b.adv.State()
	history := st.Transcript
	b.adv.AddTurn(model.ConversationTurn{Role: model.RoleUser, Text: message})

	prompt := brainstormPrompt(st.ChildName, st.Theme, st.Reference != nil)
	history = append(history, model.ConversationTurn{Role: model.RoleUser, Text: message})
	reply, err := b.text.Generate(ctx, prompt, history)
	if err != nil {
		b.log.Warn("brainstorm reply failed", zap.Error(err))
		if errors.Is(err, errs.ErrPermissionDenied) {
			return BrainstormReply{}, err
		}
		return BrainstormReply{}, fmt.Errorf("%w: %v", ErrChatUnavailable, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return BrainstormReply{}, nil
	}
	turn := model.ConversationTurn{Role: model.RoleAssistant, Text: reply}
	b.adv.AddTurn(turn)
	return BrainstormReply{Turn: turn, Ready: strings.Contains(reply, ReadyReply)}, nil
}

func brainstormPrompt(child, theme string, hasPhoto bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a magical creative partner for a parent making a 5-page coloring book for their child, %s.\n", child)
	fmt.Fprintf(&sb, "The current theme is %s.\n", theme)
	if hasPhoto {
		sb.WriteString("The user provided a photo of the child, which will be used for generation.\n")
	}
	sb.WriteString("Your goal is to brainstorm 5 distinct, fun scene ideas.\n")
	sb.WriteString("Do NOT just ask generic questions like \"What else?\".\n")
	sb.WriteString("Instead, proactively suggest creative visual details for each page (e.g., \"For page 2, should the dinosaur be eating a giant ice cream?\").\n")
	sb.WriteString("Ask about specific props, characters, and their expressions.\n")
	sb.WriteString("Keep your responses short (under 40 words), enthusiastic, and inspiring.\n")
	fmt.Fprintf(&sb, "When the user indicates they are happy with the ideas or says \"generate\", strictly reply with %q to signal completion.", ReadyReply)
	return sb.String()
}
