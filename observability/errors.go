package observability

import "errors"

// ErrNilConfig is returned when Validate is called on a nil Config pointer.
var ErrNilConfig = errors.New("observability: config is nil")

// ErrMissingServiceName is returned when observability is enabled but no service name is configured.
var ErrMissingServiceName = errors.New("observability: service name is required when observability is enabled")

// ErrMissingEndpoint is returned when observability is enabled without an endpoint.
var ErrMissingEndpoint = errors.New("observability: endpoint is required when observability is enabled")

// ErrInvalidProtocol is returned when the protocol is not "http" or "grpc".
var ErrInvalidProtocol = errors.New("observability: protocol must be either 'http' or 'grpc'")

// ErrInvalidEndpointFormat is returned when the endpoint format doesn't match the protocol.
// gRPC endpoints must NOT include an http:// or https:// scheme.
var ErrInvalidEndpointFormat = errors.New("observability: invalid endpoint format for protocol")
