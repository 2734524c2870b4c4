package grpcserver

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/bekovrafik/DreamColor/internal/api"
	"github.com/bekovrafik/DreamColor/internal/credential"
	"github.com/bekovrafik/DreamColor/internal/document"
	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/limiter"
	"github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/pipeline"
	"github.com/bekovrafik/DreamColor/internal/repository"
	"github.com/bekovrafik/DreamColor/internal/repository/memory"
	"github.com/bekovrafik/DreamColor/internal/service"
)

type stubText struct {
	reply string
}

func (f *stubText) Generate(context.Context, string, []model.ConversationTurn) (string, error) {
	return f.reply, nil
}

// GenerateJSON always plans six scenes; free runs keep the first.
func (f *stubText) GenerateJSON(context.Context, string) (string, error) {
	scenes := make([]string, pipeline.PaidRunSize)
	for i := range scenes {
		scenes[i] = fmt.Sprintf("%q", fmt.Sprintf("scene %d", i+1))
	}
	return "[" + strings.Join(scenes, ",") + "]", nil
}

// stubImages draws real PNG pages; the first deny calls are rejected.
type stubImages struct {
	mu    sync.Mutex
	calls int
	deny  int
}

func (f *stubImages) GenerateImage(context.Context, string, *model.Image) ([]model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.deny {
		return nil, fmt.Errorf("status 403: %w", errs.ErrPermissionDenied)
	}
	return []model.Image{{Data: pagePNG(uint8(f.calls)), MIMEType: "image/png"}}, nil
}

type stubTTS struct{}

func (stubTTS) Synthesize(context.Context, string) ([]byte, error) { return make([]byte, 480), nil }

func pagePNG(shade uint8) []byte {
	img := image.NewGray(image.Rect(0, 0, 8, 12))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	img.SetGray(0, 0, color.Gray{Y: 255 - shade})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

type harness struct {
	cl     *api.Client
	jobs   *pipeline.Manager
	images *stubImages
	auth   *service.AuthServiceImpl
	token  string
}

const bufSize = 1 << 20

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	repo := repository.NewStateRepo(memory.New())

	ledger, err := service.NewLedgerService(ctx, repo, log)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	books, err := service.NewBookService(ctx, repo, log)
	if err != nil {
		t.Fatalf("books: %v", err)
	}
	adv, err := service.NewAdventure(ctx, repo, log)
	if err != nil {
		t.Fatalf("adventure: %v", err)
	}
	vault, err := credential.NewVault(repo, []byte("0123456789abcdef0123456789abcdef"), "", log)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	text := &stubText{reply: "Ooh, rockets! " + service.ReadyReply}
	images := &stubImages{}
	orch := pipeline.NewOrchestrator(pipeline.Collaborators{Text: text, Images: images, Credentials: vault}, ledger, 2, log)
	jobs := pipeline.NewManager(orch, ledger, adv, log)
	studio := service.NewStudio(ledger, books, adv, document.NewAssembler(log), t.TempDir(), log)

	srv := New(Deps{
		Ledger:    ledger,
		Books:     books,
		Adventure: adv,
		Chat:      service.NewBrainstorm(adv, text, log),
		Speech:    service.NewSpeech(stubTTS{}, log),
		Jobs:      jobs,
		Studio:    studio,
		Vault:     vault,
	}, log)

	auth := service.NewAuthService([]byte("sign-key"), time.Hour)
	authn := NewAuthenticator(auth, limiter.NewLockout(time.Minute, 3, time.Minute), log)

	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log), authn.Unary(), RateLimitUnary(limiter.NewRate(1, 1), "Speak")),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log), authn.Stream()),
	)
	api.RegisterDreamColorServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = jobs.Wait(context.Background())
		_ = cc.Close()
		gs.Stop()
		_ = lis.Close()
	})

	tok, err := auth.IssueDeviceToken("test-device")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return &harness{cl: api.NewClient(cc), jobs: jobs, images: images, auth: auth, token: tok.AccessToken}
}

func (h *harness) ctx() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+h.token)
}

// runToEnd starts a run and waits until its pages are published.
func (h *harness) runToEnd(t *testing.T) *api.Job {
	t.Helper()
	if _, err := h.cl.StartGeneration(h.ctx()); err != nil {
		t.Fatalf("start: %v", err)
	}
	last := h.watch(t)
	if err := h.jobs.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	return last
}

func (h *harness) watch(t *testing.T) *api.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx(), 5*time.Second)
	defer cancel()
	stream, err := h.cl.WatchJob(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	var last *api.Job
	for {
		j, err := stream.Recv()
		if err != nil {
			break
		}
		last = j
	}
	if last == nil {
		t.Fatalf("no job snapshots")
	}
	return last
}
