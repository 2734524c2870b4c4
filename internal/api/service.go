package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "dreamcolor.v1.DreamColor"

// FullMethod returns the gRPC method path of name.
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// DreamColorServer is the daemon API.
type DreamColorServer interface {
	// Ledger
	Status(context.Context, *Empty) (*Entitlement, error)
	Purchase(context.Context, *PurchaseRequest) (*Entitlement, error)

	// Adventure
	GetAdventure(context.Context, *Empty) (*Adventure, error)
	SetChildName(context.Context, *SetChildNameRequest) (*Adventure, error)
	SetTheme(context.Context, *SetThemeRequest) (*Adventure, error)
	SetReference(context.Context, *SetReferenceRequest) (*Adventure, error)
	ResetAdventure(context.Context, *Empty) (*Adventure, error)
	ClearChat(context.Context, *Empty) (*Adventure, error)
	Chat(context.Context, *ChatRequest) (*ChatResponse, error)
	Speak(context.Context, *SpeakRequest) (*SpeakResponse, error)

	// Generation
	StartGeneration(context.Context, *Empty) (*Job, error)
	GetJob(context.Context, *Empty) (*Job, error)
	CancelJob(context.Context, *Empty) (*Job, error)
	WatchJob(*Empty, grpc.ServerStreamingServer[Job]) error
	RegeneratePage(context.Context, *RegenerateRequest) (*ImageResponse, error)
	ApplyEdit(context.Context, *EditRequest) (*ImageResponse, error)

	// Gallery and export
	SaveBook(context.Context, *Empty) (*Book, error)
	ListBooks(context.Context, *Empty) (*BookList, error)
	GetBook(context.Context, *BookRequest) (*Book, error)
	DeleteBook(context.Context, *BookRequest) (*Empty, error)
	LoadBook(context.Context, *BookRequest) (*Adventure, error)
	Export(context.Context, *ExportRequest) (*ExportResponse, error)

	// Provider credential
	SetAPIKey(context.Context, *SetAPIKeyRequest) (*CredentialStatus, error)
	GetCredentialStatus(context.Context, *Empty) (*CredentialStatus, error)
}

func unary[Req, Resp any](name string, call func(DreamColorServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DreamColorServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchJobHandler(srv any, stream grpc.ServerStream) error {
	in := new(Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DreamColorServer).WatchJob(in, &grpc.GenericServerStream[Empty, Job]{ServerStream: stream})
}

// ServiceDesc describes DreamColorServer for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DreamColorServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Status", DreamColorServer.Status),
		unary("Purchase", DreamColorServer.Purchase),
		unary("GetAdventure", DreamColorServer.GetAdventure),
		unary("SetChildName", DreamColorServer.SetChildName),
		unary("SetTheme", DreamColorServer.SetTheme),
		unary("SetReference", DreamColorServer.SetReference),
		unary("ResetAdventure", DreamColorServer.ResetAdventure),
		unary("ClearChat", DreamColorServer.ClearChat),
		unary("Chat", DreamColorServer.Chat),
		unary("Speak", DreamColorServer.Speak),
		unary("StartGeneration", DreamColorServer.StartGeneration),
		unary("GetJob", DreamColorServer.GetJob),
		unary("CancelJob", DreamColorServer.CancelJob),
		unary("RegeneratePage", DreamColorServer.RegeneratePage),
		unary("ApplyEdit", DreamColorServer.ApplyEdit),
		unary("SaveBook", DreamColorServer.SaveBook),
		unary("ListBooks", DreamColorServer.ListBooks),
		unary("GetBook", DreamColorServer.GetBook),
		unary("DeleteBook", DreamColorServer.DeleteBook),
		unary("LoadBook", DreamColorServer.LoadBook),
		unary("Export", DreamColorServer.Export),
		unary("SetAPIKey", DreamColorServer.SetAPIKey),
		unary("GetCredentialStatus", DreamColorServer.GetCredentialStatus),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "WatchJob",
		Handler:       watchJobHandler,
		ServerStreams: true,
	}},
}

// RegisterDreamColorServer registers srv with s.
func RegisterDreamColorServer(s grpc.ServiceRegistrar, srv DreamColorServer) {
	s.RegisterService(&ServiceDesc, srv)
}
