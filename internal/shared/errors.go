package shared

import "errors"

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates an illegal state transition or a duplicate
	// that violates a uniqueness rule.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated indicates no principal could be resolved for
	// the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized indicates the principal lacks the required
	// permissions. Callers wrap it with the missing permission names.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBackendUnavailable indicates the identity, override, or
	// persistence backend could not be reached. An authorization check
	// that hits it is inconclusive: it must never be interpreted as
	// either grant or deny.
	ErrBackendUnavailable = errors.New("authorization backend unavailable")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserSafeMessage returns a message suitable for end users.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record could not be found."
	case errors.Is(err, ErrConflict):
		return "The request conflicts with the current state."
	case errors.Is(err, ErrValidation):
		return "The submitted data is invalid."
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in to continue."
	case errors.Is(err, ErrUnauthorized):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrBackendUnavailable):
		return "The service is temporarily unavailable. Please try again."
	case errors.Is(err, ErrInvalidCredentials):
		return "Email or password is incorrect."
	default:
		return "An unexpected error occurred."
	}
}
