package testutil

import (
	"net/http"

	"propreg/pkg/domain"
	"propreg/pkg/requestcontext"
)

// WithCaller attaches caller to the request the way the auth middleware does.
// A nil principal leaves the request anonymous.
func WithCaller(req *http.Request, caller domain.Principal) *http.Request {
	if caller.IsNil() {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}
