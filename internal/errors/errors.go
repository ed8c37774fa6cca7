// Package errors provides unified error handling with structured error codes.
// Codes travel across the inference gRPC boundary as status details.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Code classifies an AppError.
type Code int

const (
	Unknown Code = iota
	Internal
	InvalidArgument
	NotFound
	Unavailable
	Timeout
	Cancelled
	DeviceUnavailable
	NoAudioCaptured
	TranscriptionFailed
	DiarizationFailed
	AlreadyProcessing
	PersistenceFailed
	EnrichmentFailed
	ConfigInvalid
)

var codeNames = map[Code]string{
	Unknown:             "UNKNOWN",
	Internal:            "INTERNAL",
	InvalidArgument:     "INVALID_ARGUMENT",
	NotFound:            "NOT_FOUND",
	Unavailable:         "UNAVAILABLE",
	Timeout:             "TIMEOUT",
	Cancelled:           "CANCELLED",
	DeviceUnavailable:   "DEVICE_UNAVAILABLE",
	NoAudioCaptured:     "NO_AUDIO_CAPTURED",
	TranscriptionFailed: "TRANSCRIPTION_FAILED",
	DiarizationFailed:   "DIARIZATION_FAILED",
	AlreadyProcessing:   "ALREADY_PROCESSING",
	PersistenceFailed:   "PERSISTENCE_FAILED",
	EnrichmentFailed:    "ENRICHMENT_FAILED",
	ConfigInvalid:       "CONFIG_INVALID",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return codeNames[Unknown]
}

// ParseCode is the inverse of Code.String.
func ParseCode(s string) Code {
	for c, name := range codeNames {
		if name == s {
			return c
		}
	}
	return Unknown
}

// grpcCodeMap maps error codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:             codes.Unknown,
	Internal:            codes.Internal,
	InvalidArgument:     codes.InvalidArgument,
	NotFound:            codes.NotFound,
	Unavailable:         codes.Unavailable,
	Timeout:             codes.DeadlineExceeded,
	Cancelled:           codes.Canceled,
	DeviceUnavailable:   codes.FailedPrecondition,
	NoAudioCaptured:     codes.InvalidArgument,
	TranscriptionFailed: codes.Internal,
	DiarizationFailed:   codes.Internal,
	AlreadyProcessing:   codes.ResourceExhausted,
	PersistenceFailed:   codes.Internal,
	EnrichmentFailed:    codes.Internal,
	ConfigInvalid:       codes.InvalidArgument,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// ToProto converts the error into a detail message carried on gRPC statuses.
func (e *AppError) ToProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"code":    structpb.NewStringValue(e.Code.String()),
		"message": structpb.NewStringValue(e.Message),
	}
	if len(e.Metadata) > 0 {
		meta := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(e.Metadata))}
		for k, v := range e.Metadata {
			meta.Fields[k] = structpb.NewStringValue(v)
		}
		fields["metadata"] = structpb.NewStructValue(meta)
	}
	return &structpb.Struct{Fields: fields}
}

// GRPCStatus returns a gRPC status with the error detail attached.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	detail, err := anypb.New(e.ToProto())
	if err != nil {
		return st
	}
	if withDetail, err := st.WithDetails(detail); err == nil {
		return withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError extracts an AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Proto().GetDetails() {
		var s structpb.Struct
		if detail.UnmarshalTo(&s) != nil {
			continue
		}
		if out := fromDetail(&s); out != nil {
			out.Cause = err
			return out
		}
	}

	// Fallback: map gRPC code to our error code
	return &AppError{Code: grpcToErrorCode(st.Code()), Message: st.Message(), Cause: err}
}

func fromDetail(s *structpb.Struct) *AppError {
	codeVal, ok := s.GetFields()["code"]
	if !ok {
		return nil
	}
	out := &AppError{
		Code:    ParseCode(codeVal.GetStringValue()),
		Message: s.GetFields()["message"].GetStringValue(),
	}
	if meta := s.GetFields()["metadata"].GetStructValue(); meta != nil {
		for k, v := range meta.GetFields() {
			out.WithMetadata(k, v.GetStringValue())
		}
	}
	return out
}

// grpcToErrorCode maps gRPC codes back to our error codes (best effort).
func grpcToErrorCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.NotFound:
		return NotFound
	case codes.Unavailable:
		return Unavailable
	case codes.DeadlineExceeded:
		return Timeout
	case codes.Canceled:
		return Cancelled
	case codes.Internal:
		return Internal
	case codes.FailedPrecondition:
		return ConfigInvalid
	case codes.ResourceExhausted:
		return AlreadyProcessing
	default:
		return Unknown
	}
}

// CodeOf returns the code of the first AppError in err's chain, or Unknown.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case Unavailable, Timeout:
		return true
	default:
		return false
	}
}
