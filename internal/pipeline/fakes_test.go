package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/repository"
	"github.com/bekovrafik/DreamColor/internal/repository/memory"
	"github.com/bekovrafik/DreamColor/internal/service"
)

// scriptedText answers planning requests from a queue; the last answer repeats.
type scriptedText struct {
	mu      sync.Mutex
	plans   []string
	errs    []error
	prompts []string
}

func (f *scriptedText) Generate(context.Context, string, []model.ConversationTurn) (string, error) {
	return "", nil
}

func (f *scriptedText) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i >= len(f.plans) {
		i = len(f.plans) - 1
	}
	return f.plans[i], nil
}

func (f *scriptedText) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type imageResult struct {
	imgs []model.Image
	err  error
}

// scriptedImages answers from a queue, then with a default page. hook runs before each answer.
type scriptedImages struct {
	mu      sync.Mutex
	results []imageResult
	prompts []string
	refs    []*model.Image
	hook    func(call int)
}

func (f *scriptedImages) GenerateImage(_ context.Context, prompt string, ref *model.Image) ([]model.Image, error) {
	f.mu.Lock()
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	f.refs = append(f.refs, ref)
	hook := f.hook
	var r imageResult
	if i < len(f.results) {
		r = f.results[i]
	} else {
		r = imageResult{imgs: []model.Image{page(byte(i))}}
	}
	f.mu.Unlock()
	if hook != nil {
		hook(i)
	}
	return r.imgs, r.err
}

func (f *scriptedImages) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeCredentials struct {
	mu      sync.Mutex
	prompts int
	err     error
}

func (f *fakeCredentials) HasValidCredential(context.Context) bool { return true }

func (f *fakeCredentials) PromptForCredential(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts++
	return f.err
}

func page(b byte) model.Image { return model.Image{Data: []byte{0x89, b}, MIMEType: "image/png"} }

func plan(n int) string {
	s := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%q", fmt.Sprintf("scene %d", i+1))
	}
	return s + "]"
}

var denied = fmt.Errorf("status 403: %w", errs.ErrPermissionDenied)

type fixture struct {
	text   *scriptedText
	images *scriptedImages
	creds  *fakeCredentials
	ledger *service.LedgerServiceImpl
	kv     *memory.KV
	orch   *Orchestrator
}

func newFixture(t *testing.T, st model.EntitlementState) *fixture {
	t.Helper()
	kv := memory.New()
	repo := repository.NewStateRepo(kv)
	require.NoError(t, repo.SaveEntitlement(context.Background(), st))
	ledger, err := service.NewLedgerService(context.Background(), repo, zaptest.NewLogger(t))
	require.NoError(t, err)

	f := &fixture{
		text:   &scriptedText{},
		images: &scriptedImages{},
		creds:  &fakeCredentials{},
		ledger: ledger,
		kv:     kv,
	}
	f.orch = NewOrchestrator(Collaborators{Text: f.text, Images: f.images, Credentials: f.creds}, ledger, 2, zaptest.NewLogger(t))
	return f
}
