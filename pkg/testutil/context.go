package testutil

import (
	"net/http"

	"luftscan/pkg/requestcontext"
)

// WithSubject marks the request as authenticated, as the auth middleware
// would.
func WithSubject(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithSubject(req.Context(), subject))
}

// WithRequestID sets the request ID the router middleware would assign.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
