// internal/middleware/logging.go
package middleware

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// loggedUserKey carries a slot the auth interceptor fills so the log line can
// name the caller even though logging runs outside auth.
type loggedUserKey struct{}

// UnaryChain orders the server's unary interceptors. Logging sits outside
// auth so calls refused as Unauthenticated are logged too.
func UnaryChain(extractor *MetadataExtractorInterceptor, authn *AuthInterceptor, logging *LoggingInterceptor, validation *ValidationInterceptor) []grpc.UnaryServerInterceptor {
	return []grpc.UnaryServerInterceptor{
		extractor.Unary(),
		logging.Unary(),
		authn.Unary(),
		validation.Unary(),
	}
}

// LoggingInterceptor logs one line per RPC
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{logger: logger}
}

// Unary returns a unary server interceptor that logs method, code and latency
func (l *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		var userID string
		resp, err := handler(context.WithValue(ctx, loggedUserKey{}, &userID), req)

		client := GetClientInfoFromContext(ctx)
		code := status.Code(err)
		attrs := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration", time.Since(start),
			"ip", client.IPAddress,
		}
		if actor, ok := ActorFromContext(ctx); ok {
			userID = actor.ID
		}
		if userID != "" {
			attrs = append(attrs, "user_id", userID)
		}

		switch code {
		case codes.OK:
			l.logger.Info("RPC handled", attrs...)
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			l.logger.Error("RPC failed", append(attrs, "error", err)...)
		default:
			l.logger.Warn("RPC refused", append(attrs, "error", err)...)
		}
		return resp, err
	}
}
