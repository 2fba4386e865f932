package server

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	svcErr "github.com/oggyb/fahrme/internal/errors"
	"github.com/oggyb/fahrme/internal/token"
)

// LoggingInterceptor logs every unary call with its code and duration.
// Failures the caller caused log at Info, everything else at Error.
func LoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		attrs := []any{
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		}
		switch _, expected := svcErr.UserMessage(err); {
		case err == nil:
			log.Debug("rpc", attrs...)
		case expected:
			log.Info("rpc rejected", append(attrs, "err", err)...)
		default:
			log.Error("rpc failed", append(attrs, "err", err)...)
		}
		return resp, err
	}
}

// AuthInterceptor requires a valid "authorization: Bearer <jwt>" header on
// the protected methods and puts the user id into the context.
func AuthInterceptor(secret []byte, protected ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !slices.Contains(protected, info.FullMethod) {
			return handler(ctx, req)
		}

		raw := bearer(ctx)
		if raw == "" {
			return nil, svcErr.Unauthenticated("Auth session missing")
		}
		uid, err := token.Parse(raw, secret)
		if err != nil {
			return nil, svcErr.Unauthenticated("Invalid or expired session token")
		}
		return handler(token.WithUserID(ctx, uid), req)
	}
}

func bearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get("authorization") {
		if t, found := strings.CutPrefix(v, "Bearer "); found {
			return strings.TrimSpace(t)
		}
	}
	return ""
}
