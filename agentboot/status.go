package agentboot

import (
	"errors"

	"github.com/SaiNageswarS/agent-memory/compress"
	"github.com/SaiNageswarS/agent-memory/schema"
	"github.com/SaiNageswarS/agent-memory/session"
	"github.com/SaiNageswarS/agent-memory/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusFromError maps memory errors onto gRPC status codes for services
// that expose the facade.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrStorageUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, compress.ErrContextExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, schema.ErrInvalidRole):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
