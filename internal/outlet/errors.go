package outlet

import "errors"

// Errors returned by Client. Transport failures wrap ErrTransport together
// with the underlying cause so callers can use errors.Is on either.
var (
	ErrNoSessionCookie  = errors.New("outlet: session cookie missing from login response")
	ErrNotAuthenticated = errors.New("outlet: not authenticated")
	ErrEmptyBody        = errors.New("outlet: empty response body")
	ErrInvalidJSON      = errors.New("outlet: invalid json response")
	ErrShapeMismatch    = errors.New("outlet: unexpected response shape")
	ErrTransport        = errors.New("outlet: transport failure")
)
