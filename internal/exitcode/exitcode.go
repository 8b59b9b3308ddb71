// Package exitcode defines the process exit codes of taskify.
package exitcode

const (
	// Success: the command did what was asked.
	Success = 0

	// UserError: bad arguments, an unknown task or a request the backend
	// rejected as invalid.
	UserError = 1

	// AuthError: not logged in, the session expired, or the backend kept
	// refusing the refreshed credentials.
	AuthError = 2

	// BackendError: the backend could not be reached, timed out or failed
	// with a server error.
	BackendError = 3
)

// Name returns a short label for code, used in debug logs.
func Name(code int) string {
	switch code {
	case Success:
		return "success"
	case UserError:
		return "user error"
	case AuthError:
		return "auth error"
	case BackendError:
		return "backend error"
	}
	return "unknown"
}
