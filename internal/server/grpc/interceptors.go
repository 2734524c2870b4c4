package grpcserver

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/bekovrafik/DreamColor/internal/api"
	"github.com/bekovrafik/DreamColor/internal/limiter"
	"github.com/bekovrafik/DreamColor/internal/service"
)

// LoggingUnary returns a unary server interceptor for structured logging.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logCall(ctx, log, info.FullMethod, start, err)
		return resp, err
	}
}

// LoggingStream is LoggingUnary for streams.
func LoggingStream(log *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		start := time.Now()
		err := next(srv, ss)
		logCall(ss.Context(), log, info.FullMethod, start, err)
		return err
	}
}

func logCall(ctx context.Context, log *zap.Logger, method string, start time.Time, err error) {
	// metadata only, never payloads
	log.Info("grpc",
		zap.String("method", method),
		zap.String("code", status.Code(err).String()),
		zap.Duration("dur", time.Since(start)),
		zap.String("peer", remotePeer(ctx)),
	)
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(log, r, info.FullMethod)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// RecoverStream is RecoverUnary for streams.
func RecoverStream(log *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(log, r, info.FullMethod)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(srv, ss)
	}
}

func logPanic(log *zap.Logger, r any, method string) {
	log.Error("panic",
		zap.Any("reason", r),
		zap.ByteString("stack", debug.Stack()),
		zap.String("method", method),
	)
}

// Authenticator checks bearer tokens on DreamColor methods. Health and
// reflection calls pass through. Peers sending bad tokens are locked out.
type Authenticator struct {
	auth service.AuthService
	lock *limiter.Lockout
	log  *zap.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(auth service.AuthService, lock *limiter.Lockout, log *zap.Logger) *Authenticator {
	return &Authenticator{auth: auth, lock: lock, log: log}
}

// Unary returns the unary interceptor.
func (a *Authenticator) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !protected(info.FullMethod) {
			return next(ctx, req)
		}
		ctx, err := a.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

// Stream returns the stream interceptor.
func (a *Authenticator) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		if !protected(info.FullMethod) {
			return next(srv, ss)
		}
		ctx, err := a.authenticate(ss.Context())
		if err != nil {
			return err
		}
		return next(srv, &ctxStream{ServerStream: ss, ctx: ctx})
	}
}

func (a *Authenticator) authenticate(ctx context.Context) (context.Context, error) {
	p := remotePeer(ctx)
	if ok, wait, _ := a.lock.Allow(ctx, p); !ok {
		return nil, status.Errorf(codes.ResourceExhausted, "too many bad tokens, retry in %s", wait.Round(time.Second))
	}
	tok, err := bearerTokenFromMD(ctx)
	if err == nil {
		var device string
		if device, err = a.auth.Verify(tok); err == nil {
			a.lock.Success(p)
			return WithDevice(ctx, device), nil
		}
	}
	if blocked, _ := a.lock.Failure(p); blocked {
		a.log.Warn("peer locked out after bad tokens", zap.String("peer", p))
	}
	return nil, status.Error(codes.Unauthenticated, "no auth")
}

// RateLimitUnary throttles the listed methods per device.
func RateLimitUnary(l limiter.Limiter, methods ...string) grpc.UnaryServerInterceptor {
	limited := make(map[string]bool, len(methods))
	for _, m := range methods {
		limited[api.FullMethod(m)] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !limited[info.FullMethod] {
			return next(ctx, req)
		}
		device, _ := DeviceFromCtx(ctx)
		ok, wait, err := l.Allow(ctx, device+"|"+info.FullMethod)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "rate limit: %v", err)
		}
		if !ok {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limited, retry in %s", wait.Round(time.Second))
		}
		return next(ctx, req)
	}
}

func protected(method string) bool {
	return strings.HasPrefix(method, "/"+api.ServiceName+"/")
}

type ctxStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *ctxStream) Context() context.Context { return s.ctx }

func remotePeer(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
