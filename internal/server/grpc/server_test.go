package grpcserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/bekovrafik/DreamColor/internal/api"
	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/service"
)

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if st, ok := status.FromError(err); !ok || st.Code() != code {
		t.Fatalf("want %s, got %v", code, err)
	}
}

func TestServer_RequiresToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.cl.Status(context.Background())
	wantCode(t, err, codes.Unauthenticated)

	bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer nope")
	_, err = h.cl.Status(bad)
	wantCode(t, err, codes.Unauthenticated)

	stream, err := h.cl.WatchJob(context.Background())
	if err == nil {
		// stream errors surface on the first Recv
		_, err = stream.Recv()
	}
	wantCode(t, err, codes.Unauthenticated)
}

func TestServer_LockoutAfterBadTokens(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer nope")
	for i := 0; i < 3; i++ {
		_, err := h.cl.Status(bad)
		wantCode(t, err, codes.Unauthenticated)
	}
	// the peer is blocked even with a good token now
	_, err := h.cl.Status(h.ctx())
	wantCode(t, err, codes.ResourceExhausted)
}

func TestServer_FreeThenPaidFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := h.ctx()

	ent, err := h.cl.Status(ctx)
	if err != nil || ent.Credits != 0 || ent.IsPaidUser || !ent.FreeAllowed {
		t.Fatalf("initial status: %+v %v", ent, err)
	}

	if _, err := h.cl.SetChildName(ctx, &api.SetChildNameRequest{Name: "Mia"}); err != nil {
		t.Fatalf("set name: %v", err)
	}
	adv, err := h.cl.SetTheme(ctx, &api.SetThemeRequest{Theme: "Space"})
	if err != nil || adv.Title != "Space Adventure" || adv.ChildName != "Mia" {
		t.Fatalf("set theme: %+v %v", adv, err)
	}
	chat, err := h.cl.Chat(ctx, &api.ChatRequest{Message: "rockets please"})
	if err != nil || !chat.Ready || chat.Reply.Role != "assistant" {
		t.Fatalf("chat: %+v %v", chat, err)
	}

	// free run: one page, cooldown starts
	job := h.runToEnd(t)
	if job.Status != "completed" || job.Kind != "free" || job.PageCount != 1 || job.Progress != 100 {
		t.Fatalf("free run: %+v", job)
	}
	adv, err = h.cl.GetAdventure(ctx)
	if err != nil || len(adv.Pages) != 1 {
		t.Fatalf("adventure pages: %+v %v", adv, err)
	}
	ent, _ = h.cl.Status(ctx)
	if ent.FreeAllowed || ent.FreeWait == "" {
		t.Fatalf("cooldown not visible: %+v", ent)
	}
	_, err = h.cl.StartGeneration(ctx)
	wantCode(t, err, codes.FailedPrecondition)

	// free users cannot save or export
	_, err = h.cl.SaveBook(ctx)
	wantCode(t, err, codes.FailedPrecondition)
	_, err = h.cl.Export(ctx, &api.ExportRequest{})
	wantCode(t, err, codes.FailedPrecondition)

	ent, err = h.cl.Purchase(ctx, &api.PurchaseRequest{Pack: "single"})
	if err != nil || ent.Credits != 6 || !ent.IsPaidUser {
		t.Fatalf("purchase: %+v %v", ent, err)
	}
	_, err = h.cl.Purchase(ctx, &api.PurchaseRequest{Pack: "mega"})
	wantCode(t, err, codes.InvalidArgument)

	// paid run consumes the pack and asks for a refill
	job = h.runToEnd(t)
	if job.Kind != "paid" || job.PageCount != 6 || !job.Refill {
		t.Fatalf("paid run: %+v", job)
	}
	if ent, _ = h.cl.Status(ctx); ent.Credits != 0 {
		t.Fatalf("credits after paid run: %d", ent.Credits)
	}

	// no credit left for a page
	_, err = h.cl.RegeneratePage(ctx, &api.RegenerateRequest{Index: 0})
	wantCode(t, err, codes.FailedPrecondition)

	edited, err := h.cl.ApplyEdit(ctx, &api.EditRequest{Index: 1, Rotation: 90})
	if err != nil || edited.Index != 1 || len(edited.Image.Data) == 0 {
		t.Fatalf("apply edit: %+v %v", edited, err)
	}
	_, err = h.cl.ApplyEdit(ctx, &api.EditRequest{Index: 9})
	wantCode(t, err, codes.InvalidArgument)

	exp, err := h.cl.Export(ctx, &api.ExportRequest{PageSize: "letter", Orientation: "landscape"})
	if err != nil || exp.Size == 0 || exp.Pages != 6 || exp.Path != ExportPathPrefix+exp.ID {
		t.Fatalf("export: %+v %v", exp, err)
	}
	_, err = h.cl.Export(ctx, &api.ExportRequest{PageSize: "a0"})
	wantCode(t, err, codes.InvalidArgument)

	// export auto-saved the adventure; saving again returns the same book
	list, err := h.cl.ListBooks(ctx)
	if err != nil || len(list.Books) != 1 || list.Books[0].ID != exp.BookID || list.Books[0].Pages != nil {
		t.Fatalf("list: %+v %v", list, err)
	}
	saved, err := h.cl.SaveBook(ctx)
	if err != nil || saved.ID != exp.BookID {
		t.Fatalf("save: %+v %v", saved, err)
	}

	book, err := h.cl.GetBook(ctx, &api.BookRequest{ID: exp.BookID})
	if err != nil || book.Title != "Space Adventure" || len(book.Pages) != 6 || book.Cover == nil {
		t.Fatalf("get book: %+v %v", book, err)
	}

	if _, err := h.cl.ResetAdventure(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	adv, err = h.cl.LoadBook(ctx, &api.BookRequest{ID: exp.BookID})
	if err != nil || adv.Theme != "Space" || adv.SavedBookID != exp.BookID {
		t.Fatalf("load: %+v %v", adv, err)
	}

	if err := h.cl.DeleteBook(ctx, &api.BookRequest{ID: exp.BookID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = h.cl.GetBook(ctx, &api.BookRequest{ID: exp.BookID})
	wantCode(t, err, codes.NotFound)
	_, err = h.cl.GetBook(ctx, &api.BookRequest{ID: "bad"})
	wantCode(t, err, codes.InvalidArgument)
}

func TestServer_CredentialPromptReleasedBySetAPIKey(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.images.deny = 1
	ctx := h.ctx()

	cs, err := h.cl.GetCredentialStatus(ctx)
	if err != nil || cs.Configured || cs.PromptPending {
		t.Fatalf("initial credential status: %+v %v", cs, err)
	}
	if _, err := h.cl.StartGeneration(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		cs, err = h.cl.GetCredentialStatus(ctx)
		if err == nil && cs.PromptPending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never asked for a credential")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err = h.cl.SetAPIKey(ctx, &api.SetAPIKeyRequest{Key: "  "})
	wantCode(t, err, codes.InvalidArgument)
	cs, err = h.cl.SetAPIKey(ctx, &api.SetAPIKeyRequest{Key: "new-key"})
	if err != nil || !cs.Configured {
		t.Fatalf("set api key: %+v %v", cs, err)
	}

	job := h.watch(t)
	if job.Status != "completed" || job.RetryCount != 1 {
		t.Fatalf("job after prompt: %+v", job)
	}
}

func TestServer_JobCalls(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := h.ctx()

	_, err := h.cl.GetJob(ctx)
	wantCode(t, err, codes.NotFound)
	_, err = h.cl.CancelJob(ctx)
	wantCode(t, err, codes.NotFound)

	h.runToEnd(t)
	j, err := h.cl.GetJob(ctx)
	if err != nil || j.Status != "completed" {
		t.Fatalf("get job: %+v %v", j, err)
	}
}

func TestServer_SpeakIsRateLimited(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := h.ctx()

	out, err := h.cl.Speak(ctx, &api.SpeakRequest{Text: "Once upon a time"})
	if err != nil || out.MIMEType != "audio/wav" || len(out.Audio) != 44+480 {
		t.Fatalf("speak: %+v %v", out, err)
	}
	_, err = h.cl.Speak(ctx, &api.SpeakRequest{Text: "again"})
	wantCode(t, err, codes.ResourceExhausted)
}

func TestServer_ReferenceAndChatReset(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := h.ctx()

	adv, err := h.cl.SetReference(ctx, &api.SetReferenceRequest{Image: &api.Image{Data: pagePNG(10)}})
	if err != nil || !adv.HasReference {
		t.Fatalf("set reference: %+v %v", adv, err)
	}
	if adv, err = h.cl.SetReference(ctx, &api.SetReferenceRequest{}); err != nil || adv.HasReference {
		t.Fatalf("clear reference: %+v %v", adv, err)
	}

	if _, err := h.cl.Chat(ctx, &api.ChatRequest{Message: "dragons"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	adv, err = h.cl.ClearChat(ctx)
	if err != nil || len(adv.Transcript) != 0 {
		t.Fatalf("clear chat: %+v %v", adv, err)
	}
	_, err = h.cl.Chat(ctx, &api.ChatRequest{Message: "   "})
	wantCode(t, err, codes.InvalidArgument)
}

func Test_toStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		code codes.Code
	}{
		{errs.ErrValidation, codes.InvalidArgument},
		{errs.ErrNoJob, codes.NotFound},
		{errs.ErrCooldown, codes.FailedPrecondition},
		{errs.ErrInsufficientCredits, codes.FailedPrecondition},
		{errs.ErrJobActive, codes.Aborted},
		{errs.ErrAuthorization, codes.PermissionDenied},
		{service.ErrChatUnavailable, codes.Unavailable},
		{errs.ErrCorrupt, codes.DataLoss},
		{errs.ErrExport, codes.Internal},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("disk on fire"), codes.Internal},
	}
	for _, c := range cases {
		wantCode(t, toStatus("op", c.err), c.code)
	}
	if st, _ := status.FromError(toStatus("op", errors.New("secret detail"))); st.Message() != "op: internal" {
		t.Fatalf("internal detail leaked: %q", st.Message())
	}
}
