package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/sortdl/internal/types"
)

// Error mapping for handlers.
// Auth errors mapped in auth package interceptor.
// Unparseable URLs and bad fields map to INVALID_ARGUMENT.
// Context timeouts map to DEADLINE_EXCEEDED.
// Store errors map to UNAVAILABLE.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return status.FromContextError(err).Err()
	case errors.Is(err, types.ErrInvalidURL),
		errors.Is(err, types.ErrSchemaViolation),
		errors.Is(err, types.ErrUnknownConflictAction):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

func invalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}
