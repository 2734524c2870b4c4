package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
)

type fakeText struct {
	inPrompt  string
	inHistory []model.ConversationTurn
	reply     string
	err       error
}

func (f *fakeText) Generate(_ context.Context, systemPrompt string, history []model.ConversationTurn) (string, error) {
	f.inPrompt, f.inHistory = systemPrompt, append([]model.ConversationTurn(nil), history...)
	return f.reply, f.err
}

func (f *fakeText) GenerateJSON(context.Context, string) (string, error) { return "", nil }

func TestBrainstorm_Send(t *testing.T) {
	t.Parallel()
	adv := newAdventure(t, &fakeStateRepo{profile: &model.Profile{ChildName: "Mia"}})
	adv.SetTheme("Dinosaurs")
	text := &fakeText{reply: "Should the T-rex wear a party hat?"}
	b := NewBrainstorm(adv, text, zaptest.NewLogger(t))

	r, err := b.Send(context.Background(), " a dino party ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if r.Ready || r.Turn.Role != model.RoleAssistant {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if !strings.Contains(text.inPrompt, "child, Mia.") || !strings.Contains(text.inPrompt, "theme is Dinosaurs") {
		t.Fatalf("prompt missing context: %s", text.inPrompt)
	}
	if strings.Contains(text.inPrompt, "photo of the child") {
		t.Fatalf("photo hint without a reference image")
	}
	if len(text.inHistory) != 1 || text.inHistory[0].Text != "a dino party" {
		t.Fatalf("history: %+v", text.inHistory)
	}
	if got := adv.State().Transcript; len(got) != 2 || got[1].Role != model.RoleAssistant {
		t.Fatalf("transcript: %+v", got)
	}

	text.reply = ReadyReply
	r, err = b.Send(context.Background(), "generate")
	if err != nil || !r.Ready {
		t.Fatalf("want ready reply, got %+v %v", r, err)
	}
	if len(text.inHistory) != 3 {
		t.Fatalf("history must include the earlier exchange, got %d turns", len(text.inHistory))
	}
}

func TestBrainstorm_FailureKeepsUserTurn(t *testing.T) {
	t.Parallel()
	adv := newAdventure(t, &fakeStateRepo{})
	b := NewBrainstorm(adv, &fakeText{err: errBoom}, zaptest.NewLogger(t))

	if _, err := b.Send(context.Background(), "hello"); !errors.Is(err, ErrChatUnavailable) {
		t.Fatalf("want friendly error, got %v", err)
	}
	if got := adv.State().Transcript; len(got) != 1 || got[0].Role != model.RoleUser {
		t.Fatalf("user turn must stay: %+v", got)
	}
	if _, err := b.Send(context.Background(), "   "); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}
