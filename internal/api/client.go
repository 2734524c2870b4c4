package api

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls the daemon API over a connection, always with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context, opts ...grpc.CallOption) (*Entitlement, error) {
	return invoke[Entitlement](ctx, c, "Status", &Empty{}, opts)
}

func (c *Client) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*Entitlement, error) {
	return invoke[Entitlement](ctx, c, "Purchase", in, opts)
}

func (c *Client) GetAdventure(ctx context.Context, opts ...grpc.CallOption) (*Adventure, error) {
	return invoke[Adventure](ctx, c, "GetAdventure", &Empty{}, opts)
}

func (c *Client) SetChildName(ctx context.Context, in *SetChildNameRequest, opts ...grpc.CallOption) (*Adventure, error) {
	return invoke[Adventure](ctx, c, "SetChildName", in, opts)
}

func (c *Client) SetTheme(ctx context.Context, in *SetThemeRequest, opts ...grpc.CallOption) (*Adventure, error) {
	return invoke[Adventure](ctx, c, "SetTheme", in, opts)
}

func (c *Client) SetReference(ctx context.Context, in *SetReferenceRequest, opts ...grpc.CallOption) (*Adventure, error) {
	return invoke[Adventure](ctx, c, "SetReference", in, opts)
}

func (c *Client) ResetAdventure(ctx context.Context, opts ...grpc.CallOption) (*Adventure, error) {
	return invoke[Adventure](ctx, c, "ResetAdventure", &Empty{}, opts)
}

func (c *Client) ClearChat(ctx context.Context, opts ...grpc.CallOption) (*Adventure, error) {
	return invoke[Adventure](ctx, c, "ClearChat", &Empty{}, opts)
}

func (c *Client) Chat(ctx context.Context, in *ChatRequest, opts ...grpc.CallOption) (*ChatResponse, error) {
	return invoke[ChatResponse](ctx, c, "Chat", in, opts)
}

func (c *Client) Speak(ctx context.Context, in *SpeakRequest, opts ...grpc.CallOption) (*SpeakResponse, error) {
	return invoke[SpeakResponse](ctx, c, "Speak", in, opts)
}

func (c *Client) StartGeneration(ctx context.Context, opts ...grpc.CallOption) (*Job, error) {
	return invoke[Job](ctx, c, "StartGeneration", &Empty{}, opts)
}

func (c *Client) GetJob(ctx context.Context, opts ...grpc.CallOption) (*Job, error) {
	return invoke[Job](ctx, c, "GetJob", &Empty{}, opts)
}

func (c *Client) CancelJob(ctx context.Context, opts ...grpc.CallOption) (*Job, error) {
	return invoke[Job](ctx, c, "CancelJob", &Empty{}, opts)
}

// WatchJob streams job snapshots until the run ends or ctx is canceled.
func (c *Client) WatchJob(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Job], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod("WatchJob"), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Empty, Job]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *Client) RegeneratePage(ctx context.Context, in *RegenerateRequest, opts ...grpc.CallOption) (*ImageResponse, error) {
	return invoke[ImageResponse](ctx, c, "RegeneratePage", in, opts)
}

func (c *Client) ApplyEdit(ctx context.Context, in *EditRequest, opts ...grpc.CallOption) (*ImageResponse, error) {
	return invoke[ImageResponse](ctx, c, "ApplyEdit", in, opts)
}

func (c *Client) SaveBook(ctx context.Context, opts ...grpc.CallOption) (*Book, error) {
	return invoke[Book](ctx, c, "SaveBook", &Empty{}, opts)
}

func (c *Client) ListBooks(ctx context.Context, opts ...grpc.CallOption) (*BookList, error) {
	return invoke[BookList](ctx, c, "ListBooks", &Empty{}, opts)
}

func (c *Client) GetBook(ctx context.Context, in *BookRequest, opts ...grpc.CallOption) (*Book, error) {
	return invoke[Book](ctx, c, "GetBook", in, opts)
}

func (c *Client) DeleteBook(ctx context.Context, in *BookRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, "DeleteBook", in, opts)
	return err
}

func (c *Client) LoadBook(ctx context.Context, in *BookRequest, opts ...grpc.CallOption) (*Adventure, error) {
	return invoke[Adventure](ctx, c, "LoadBook", in, opts)
}

func (c *Client) Export(ctx context.Context, in *ExportRequest, opts ...grpc.CallOption) (*ExportResponse, error) {
	return invoke[ExportResponse](ctx, c, "Export", in, opts)
}

func (c *Client) SetAPIKey(ctx context.Context, in *SetAPIKeyRequest, opts ...grpc.CallOption) (*CredentialStatus, error) {
	return invoke[CredentialStatus](ctx, c, "SetAPIKey", in, opts)
}

func (c *Client) GetCredentialStatus(ctx context.Context, opts ...grpc.CallOption) (*CredentialStatus, error) {
	return invoke[CredentialStatus](ctx, c, "GetCredentialStatus", &Empty{}, opts)
}
