package errors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Map converts service/infra errors into gRPC status errors. Errors that
// already carry a status are returned as is.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")
	}

	switch KindOf(err) {
	case KindValidation:
		return status.Error(codes.InvalidArgument, Public(err))
	case KindNotFound:
		return status.Error(codes.NotFound, Public(err))
	case KindConflict:
		return status.Error(codes.AlreadyExists, Public(err))
	case KindAuth:
		return status.Error(codes.Unauthenticated, Public(err))
	case KindForbidden:
		return status.Error(codes.PermissionDenied, Public(err))
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// HTTPStatus picks the response status for err.
func HTTPStatus(err error) int {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
