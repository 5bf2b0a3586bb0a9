package shared

import "errors"

var (
	// ErrUnauthenticated indicates a request without a signed-in session.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrCSRFTokenMissing occurs when the CSRF token is missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
