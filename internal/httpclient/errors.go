package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"ai-shorts-factory/internal/retry"
)

var (
	ErrPoolClosed        = errors.New("connection pool closed")
	ErrMissingCredential = errors.New("missing credential")
)

// StatusError is a non-2xx response from a remote service.
type StatusError struct {
	Service string
	Code    int
	Body    string
	Err     error // underlying SDK error, if any
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) Kind() retry.Kind { return retry.KindForStatus(e.Code) }

// CredentialError reports a missing or malformed key. It is never retried.
type CredentialError struct {
	Name string
}

func (e *CredentialError) Error() string { return e.Name + " is not set" }

func (e *CredentialError) Unwrap() error { return ErrMissingCredential }

func (e *CredentialError) Kind() retry.Kind { return retry.KindCredential }

// CheckResponse turns a non-2xx response into a *StatusError, consuming a
// bounded prefix of the body. Secrets are scrubbed from the body before it
// is truncated.
func CheckResponse(service string, resp *http.Response, secrets ...string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	body := RedactSecrets(strings.TrimSpace(string(b)), secrets...)
	return &StatusError{Service: service, Code: resp.StatusCode, Body: Truncate(body, 400)}
}

// Truncate shortens s to n runes with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]+`)
	authHeaderRE  = regexp.MustCompile(`(?i)("?authorization"?\s*[:=]\s*"?)[^",\s]+`)
)

// RedactSecrets replaces every occurrence of each secret in s, along with
// anything that looks like a bearer token or an echoed Authorization header.
func RedactSecrets(s string, secrets ...string) string {
	if s == "" {
		return s
	}
	for _, sec := range secrets {
		if sec == "" {
			continue
		}
		s = strings.ReplaceAll(s, sec, "[REDACTED]")
	}
	s = bearerTokenRE.ReplaceAllString(s, "Bearer [REDACTED]")
	s = authHeaderRE.ReplaceAllString(s, "${1}[REDACTED]")
	return s
}
