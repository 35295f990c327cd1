package grpcx

import (
	"context"

	"github.com/calmspace/practice/libs/httpx"
	"google.golang.org/grpc/metadata"
)

// RequestIDMetadataKey is the lowercase metadata form of httpx.RequestIDHeader.
const RequestIDMetadataKey = "x-request-id"

// RequestIDFromContext shares the httpx context key, so ids survive a hop
// between HTTP handlers and gRPC calls in the same process.
func RequestIDFromContext(ctx context.Context) string {
	return httpx.RequestIDFromContext(ctx)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return httpx.ContextWithRequestID(ctx, id)
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(RequestIDMetadataKey) {
		if httpx.ValidRequestID(v) {
			return v
		}
	}
	return ""
}
