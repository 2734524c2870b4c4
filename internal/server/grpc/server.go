// Package grpcserver exposes the DreamColor gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bekovrafik/DreamColor/internal/api"
	"github.com/bekovrafik/DreamColor/internal/convert"
	"github.com/bekovrafik/DreamColor/internal/credential"
	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/pipeline"
	"github.com/bekovrafik/DreamColor/internal/service"
)

// ExportPathPrefix is where the HTTP surface serves written documents.
const ExportPathPrefix = "/exports/"

// Deps are the services behind the API.
type Deps struct {
	Ledger    service.LedgerService
	Books     service.BookService
	Adventure *service.Adventure
	Chat      *service.Brainstorm
	Speech    *service.Speech
	Jobs      *pipeline.Manager
	Studio    *service.Studio
	Vault     *credential.Vault
}

// Server wires services into gRPC handlers.
type Server struct {
	d   Deps
	log *zap.Logger
	now func() time.Time
}

var _ api.DreamColorServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(d Deps, log *zap.Logger) *Server {
	return &Server{d: d, log: log, now: time.Now}
}

// --- Ledger ---

// Status returns the balance and free-run eligibility.
func (s *Server) Status(context.Context, *api.Empty) (*api.Entitlement, error) {
	return s.entitlement(s.d.Ledger.Snapshot()), nil
}

// Purchase adds a credit pack.
func (s *Server) Purchase(ctx context.Context, req *api.PurchaseRequest) (*api.Entitlement, error) {
	st, err := s.d.Ledger.Purchase(ctx, model.Pack(req.Pack))
	if err != nil {
		return nil, toStatus("purchase", err)
	}
	return s.entitlement(st), nil
}

func (s *Server) entitlement(st model.EntitlementState) *api.Entitlement {
	return convert.ToAPIEntitlement(st, service.Eligibility(st.LastFreeGeneration, s.now()))
}

// --- Adventure ---

// GetAdventure returns the adventure including its page images.
func (s *Server) GetAdventure(context.Context, *api.Empty) (*api.Adventure, error) {
	return convert.ToAPIAdventure(s.d.Adventure.State(), true), nil
}

func (s *Server) SetChildName(ctx context.Context, req *api.SetChildNameRequest) (*api.Adventure, error) {
	if err := s.d.Adventure.SetChildName(ctx, req.Name); err != nil {
		return nil, toStatus("set child name", err)
	}
	return s.adventure(), nil
}

func (s *Server) SetTheme(_ context.Context, req *api.SetThemeRequest) (*api.Adventure, error) {
	s.d.Adventure.SetTheme(req.Theme)
	return s.adventure(), nil
}

func (s *Server) SetReference(_ context.Context, req *api.SetReferenceRequest) (*api.Adventure, error) {
	var ref *model.Image
	if req.Image != nil {
		img := convert.FromAPIImage(*req.Image)
		ref = &img
	}
	if err := s.d.Adventure.SetReference(ref); err != nil {
		return nil, toStatus("set reference", err)
	}
	return s.adventure(), nil
}

func (s *Server) ResetAdventure(context.Context, *api.Empty) (*api.Adventure, error) {
	s.d.Adventure.Reset()
	return s.adventure(), nil
}

func (s *Server) ClearChat(context.Context, *api.Empty) (*api.Adventure, error) {
	s.d.Adventure.ClearChat()
	return s.adventure(), nil
}

// Chat sends one brainstorming message.
func (s *Server) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	r, err := s.d.Chat.Send(ctx, req.Message)
	if err != nil {
		return nil, toStatus("chat", err)
	}
	return &api.ChatResponse{Reply: api.Turn{Role: string(r.Turn.Role), Text: r.Turn.Text}, Ready: r.Ready}, nil
}

// Speak reads text aloud as a WAV document.
func (s *Server) Speak(ctx context.Context, req *api.SpeakRequest) (*api.SpeakResponse, error) {
	wav, err := s.d.Speech.Speak(ctx, req.Text)
	if err != nil {
		return nil, toStatus("speak", err)
	}
	return &api.SpeakResponse{Audio: wav, MIMEType: "audio/wav"}, nil
}

func (s *Server) adventure() *api.Adventure {
	return convert.ToAPIAdventure(s.d.Adventure.State(), false)
}

// --- Generation ---

// StartGeneration launches a run for the current adventure.
func (s *Server) StartGeneration(ctx context.Context, _ *api.Empty) (*api.Job, error) {
	j, err := s.d.Jobs.Start(ctx)
	if err != nil {
		return nil, toStatus("start", err)
	}
	return convert.ToAPIJob(j), nil
}

func (s *Server) GetJob(context.Context, *api.Empty) (*api.Job, error) {
	j, err := s.d.Jobs.Get()
	if err != nil {
		return nil, toStatus("get job", err)
	}
	return convert.ToAPIJob(j), nil
}

func (s *Server) CancelJob(context.Context, *api.Empty) (*api.Job, error) {
	j, err := s.d.Jobs.Cancel()
	if err != nil {
		return nil, toStatus("cancel", err)
	}
	return convert.ToAPIJob(j), nil
}

// WatchJob streams snapshots until the run finishes, is canceled, or the client leaves.
func (s *Server) WatchJob(_ *api.Empty, stream grpc.ServerStreamingServer[api.Job]) error {
	ch, stop := s.d.Jobs.Watch()
	defer stop()
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case j, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(convert.ToAPIJob(j)); err != nil {
				return err
			}
			if j.Status.Terminal() || j.Canceled {
				return nil
			}
		}
	}
}

// RegeneratePage redraws one page for a credit.
func (s *Server) RegeneratePage(ctx context.Context, req *api.RegenerateRequest) (*api.ImageResponse, error) {
	img, err := s.d.Jobs.RegeneratePage(ctx, req.Index, req.Description)
	if err != nil {
		return nil, toStatus("regenerate page", err)
	}
	return &api.ImageResponse{Index: req.Index, Image: convert.ToAPIImage(img)}, nil
}

// ApplyEdit bakes rotation, brightness and contrast into a page.
func (s *Server) ApplyEdit(_ context.Context, req *api.EditRequest) (*api.ImageResponse, error) {
	if s.d.Jobs.Running() {
		return nil, toStatus("apply edit", errs.ErrJobActive)
	}
	img, err := s.d.Studio.ApplyEdit(req.Index, convert.FromAPIEdit(req))
	if err != nil {
		return nil, toStatus("apply edit", err)
	}
	return &api.ImageResponse{Index: req.Index, Image: convert.ToAPIImage(img)}, nil
}

// --- Gallery ---

// SaveBook stores the adventure in the gallery.
func (s *Server) SaveBook(ctx context.Context, _ *api.Empty) (*api.Book, error) {
	b, err := s.d.Studio.SaveAdventure(ctx)
	if err != nil {
		return nil, toStatus("save book", err)
	}
	return convert.ToAPIBook(b, true), nil
}

func (s *Server) ListBooks(context.Context, *api.Empty) (*api.BookList, error) {
	return convert.ToAPIBookList(s.d.Books.List()), nil
}

func (s *Server) GetBook(_ context.Context, req *api.BookRequest) (*api.Book, error) {
	id, err := convert.ParseID(req.ID)
	if err != nil {
		return nil, toStatus("get book", err)
	}
	b, err := s.d.Books.Get(id)
	if err != nil {
		return nil, toStatus("get book", err)
	}
	return convert.ToAPIBook(b, false), nil
}

func (s *Server) DeleteBook(ctx context.Context, req *api.BookRequest) (*api.Empty, error) {
	id, err := convert.ParseID(req.ID)
	if err != nil {
		return nil, toStatus("delete book", err)
	}
	if err := s.d.Books.Delete(ctx, id); err != nil {
		return nil, toStatus("delete book", err)
	}
	return &api.Empty{}, nil
}

// LoadBook makes a saved book the current adventure.
func (s *Server) LoadBook(_ context.Context, req *api.BookRequest) (*api.Adventure, error) {
	if s.d.Jobs.Running() {
		return nil, toStatus("load book", errs.ErrJobActive)
	}
	id, err := convert.ParseID(req.ID)
	if err != nil {
		return nil, toStatus("load book", err)
	}
	if _, err := s.d.Studio.LoadBook(id); err != nil {
		return nil, toStatus("load book", err)
	}
	return s.adventure(), nil
}

// Export assembles the adventure into a PDF served under ExportPathPrefix.
func (s *Server) Export(ctx context.Context, req *api.ExportRequest) (*api.ExportResponse, error) {
	cfg, err := convert.FromAPIExport(req)
	if err != nil {
		return nil, toStatus("export", err)
	}
	e, err := s.d.Studio.Export(ctx, cfg)
	if err != nil {
		return nil, toStatus("export", err)
	}
	return convert.ToAPIExport(e, ExportPathPrefix+e.ID.String()), nil
}

// --- Credential ---

// SetAPIKey stores the provider key and releases a waiting run.
func (s *Server) SetAPIKey(ctx context.Context, req *api.SetAPIKeyRequest) (*api.CredentialStatus, error) {
	if err := s.d.Vault.Set(ctx, req.Key); err != nil {
		return nil, toStatus("set api key", err)
	}
	return s.credentialStatus(ctx), nil
}

func (s *Server) GetCredentialStatus(ctx context.Context, _ *api.Empty) (*api.CredentialStatus, error) {
	return s.credentialStatus(ctx), nil
}

func (s *Server) credentialStatus(ctx context.Context) *api.CredentialStatus {
	return &api.CredentialStatus{
		Configured:    s.d.Vault.HasValidCredential(ctx),
		PromptPending: s.d.Vault.Pending(),
	}
}

// toStatus maps domain sentinels to gRPC codes. Unknown errors are hidden.
func toStatus(op string, err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, errs.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrNoJob):
		code = codes.NotFound
	case errors.Is(err, errs.ErrInsufficientCredits),
		errors.Is(err, errs.ErrNotPaid),
		errors.Is(err, errs.ErrCooldown):
		code = codes.FailedPrecondition
	case errors.Is(err, errs.ErrJobActive):
		code = codes.Aborted
	case errors.Is(err, errs.ErrRateLimited):
		code = codes.ResourceExhausted
	case errors.Is(err, errs.ErrUnauthorized):
		code = codes.Unauthenticated
	case errors.Is(err, errs.ErrAuthorization),
		errors.Is(err, errs.ErrPermissionDenied),
		errors.Is(err, errs.ErrNoCredential):
		code = codes.PermissionDenied
	case errors.Is(err, service.ErrChatUnavailable),
		errors.Is(err, errs.ErrGeneration),
		errors.Is(err, errs.ErrPlanning),
		errors.Is(err, errs.ErrSceneImageMissing):
		code = codes.Unavailable
	case errors.Is(err, errs.ErrExport):
		code = codes.Internal
	case errors.Is(err, errs.ErrCorrupt):
		code = codes.DataLoss
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Errorf(codes.Internal, "%s: internal", op)
	}
	return status.Errorf(code, "%s: %v", op, err)
}
