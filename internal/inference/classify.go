package inference

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mcqsolver/mcq"
)

// classifyError converts SDK and transport errors to *mcq.InferenceError.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var ie *mcq.InferenceError
	if errors.As(err, &ie) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &mcq.InferenceError{Kind: mcq.KindTransient, Err: err}
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &mcq.InferenceError{Kind: mcq.KindParse, Message: "response blocked", Err: err}
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return &mcq.InferenceError{Kind: mcq.ClassifyStatus(ge.Code, ge.Message), Status: ge.Code, Message: ge.Message, Err: err}
	}

	if ae, ok := apierror.FromError(err); ok {
		code := ae.HTTPCode()
		msg := ae.Error()
		if s := ae.GRPCStatus(); s != nil {
			msg = s.Message()
			if code <= 0 {
				code = httpStatusFromCode(s.Code())
			}
		}
		if code > 0 {
			return &mcq.InferenceError{Kind: mcq.ClassifyStatus(code, msg), Status: code, Message: msg, Err: err}
		}
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		code := httpStatusFromCode(s.Code())
		return &mcq.InferenceError{Kind: mcq.ClassifyStatus(code, s.Message()), Status: code, Message: s.Message(), Err: err}
	}
	return &mcq.InferenceError{Kind: mcq.ClassifyStatus(0, err.Error()), Err: err}
}

func httpStatusFromCode(c codes.Code) int {
	switch c {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.OK:
		return 0
	default:
		return http.StatusInternalServerError
	}
}
