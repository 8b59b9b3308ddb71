package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"taskify/internal/api"
	"taskify/internal/app"
	"taskify/internal/exitcode"
	"taskify/internal/linkserver"
	"taskify/internal/service"
	"taskify/internal/session"
)

// report prints err and returns the matching exit code.
//
//   - session failures (expired, repeated 401, no credentials, no link) -> AuthError
//   - backend rejections (validation messages, unknown task) -> UserError
//   - transport failures, timeouts and 5xx -> BackendError
func report(errOut io.Writer, err error) int {
	var verr *api.ValidationError
	var nerr *api.NetworkError

	switch {
	case errors.Is(err, api.ErrSessionExpired):
		fmt.Fprintln(errOut, "error: session expired (run: taskify login)")
		return exitcode.AuthError
	case errors.Is(err, api.ErrNotLoggedIn), errors.Is(err, session.ErrNoCredentials):
		fmt.Fprintln(errOut, "error: not logged in (run: taskify login)")
		return exitcode.AuthError
	case errors.Is(err, linkserver.ErrTimeout):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	case errors.Is(err, api.ErrRepeatedAuthFailure):
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	case errors.As(err, &nerr), errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	case errors.As(err, &verr) && verr.Status >= http.StatusInternalServerError:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	case errors.As(err, &verr), errors.Is(err, service.ErrNotFound):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	return exitcode.BackendError
}

// usageError prints a user error.
func usageError(errOut io.Writer, format string, args ...any) int {
	fmt.Fprintf(errOut, "error: "+format+"\n", args...)
	return exitcode.UserError
}

// info prints an informational line unless --quiet is set.
func info(a *app.App, out io.Writer, format string, args ...any) {
	if a.Config.Quiet {
		return
	}
	fmt.Fprintf(out, format+"\n", args...)
}

// inputReader returns in, or stdin when in is nil.
func inputReader(in io.Reader) io.Reader {
	if in == nil {
		return os.Stdin
	}
	return in
}

// readSecret returns flagValue, or one line read from in.
func readSecret(flagValue string, in io.Reader, prompt string, errOut io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(errOut, prompt)
	line, err := bufio.NewReader(inputReader(in)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password required")
	}
	return line, nil
}
