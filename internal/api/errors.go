package api

import (
	"errors"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/chatsync/internal/apperr"
)

// toStatus maps a sync-layer error to a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch apperr.KindOf(err) {
	case apperr.Auth:
		code = codes.Unauthenticated
	case apperr.NotFound:
		code = codes.NotFound
	case apperr.Transient:
		code = codes.Unavailable
	case apperr.NotConfigured:
		code = codes.FailedPrecondition
	default:
		var invalid *invalidError
		if errors.As(err, &invalid) {
			code = codes.InvalidArgument
		}
	}
	return grpcstatus.Error(code, err.Error())
}

// fromStatus turns a gRPC status back into a classified error so clients can branch
// with the apperr helpers.
func fromStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := grpcstatus.FromError(err)
	if !ok {
		return err
	}
	var kind apperr.Kind
	switch st.Code() {
	case codes.Unauthenticated:
		kind = apperr.Auth
	case codes.NotFound:
		kind = apperr.NotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		kind = apperr.Transient
	case codes.FailedPrecondition:
		kind = apperr.NotConfigured
	default:
		return errors.New(st.Message())
	}
	return apperr.New(kind, op, errors.New(st.Message()))
}

type invalidError struct{ msg string }

func (e *invalidError) Error() string { return e.msg }

func invalid(msg string) error { return &invalidError{msg: msg} }
