// Package errors provides structured, code-carrying errors and their gRPC
// status mapping.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// DID registry errors
	CodeDIDInvalid       Code = "DID_INVALID"
	CodeDIDAlreadyExists Code = "DID_ALREADY_EXISTS"
	CodeDIDNotFound      Code = "DID_NOT_FOUND"
	CodeDIDNotOwner      Code = "DID_NOT_OWNER"

	// Caller errors
	CodeCallerUnauthenticated Code = "CALLER_UNAUTHENTICATED"

	// Request errors
	CodeRequestInvalid Code = "REQUEST_INVALID"

	// Event stream errors
	CodeSubscriberLagging Code = "SUBSCRIBER_LAGGING"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeDIDInvalid, CodeRequestInvalid:
		return codes.InvalidArgument
	case CodeDIDAlreadyExists:
		return codes.AlreadyExists
	case CodeDIDNotFound:
		return codes.NotFound
	case CodeDIDNotOwner:
		return codes.PermissionDenied
	case CodeCallerUnauthenticated:
		return codes.Unauthenticated
	case CodeSubscriberLagging:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}
