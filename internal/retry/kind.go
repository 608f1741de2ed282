package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Kind is a stable classification of a remote-call failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindConnection
	KindRateLimited
	KindServerBusy // 500, 502, 503, 504
	KindServer     // any other 5xx
	KindBadRequest
	KindAuth
	KindNotFound
	KindCredential
	KindCanceled
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindTimeout:     "timeout",
	KindConnection:  "connection",
	KindRateLimited: "rate_limited",
	KindServerBusy:  "server_busy",
	KindServer:      "server",
	KindBadRequest:  "bad_request",
	KindAuth:        "auth",
	KindNotFound:    "not_found",
	KindCredential:  "credential",
	KindCanceled:    "canceled",
}

// transient lists the kinds worth another attempt. Everything else fails fast.
var transient = map[Kind]bool{
	KindTimeout:     true,
	KindConnection:  true,
	KindRateLimited: true,
	KindServerBusy:  true,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Transient reports whether errors of this kind are retried.
func (k Kind) Transient() bool { return transient[k] }

// Kinded is implemented by errors that carry their own classification, such as
// httpclient.StatusError.
type Kinded interface {
	error
	Kind() Kind
}

// KindForStatus maps an HTTP status code onto a Kind.
func KindForStatus(code int) Kind {
	switch {
	case code == 429:
		return KindRateLimited
	case code == 500, code == 502, code == 503, code == 504:
		return KindServerBusy
	case code >= 500:
		return KindServer
	case code == 401, code == 403:
		return KindAuth
	case code == 404, code == 410:
		return KindNotFound
	case code == 408:
		return KindTimeout
	case code >= 400:
		return KindBadRequest
	default:
		return KindUnknown
	}
}

// Classify returns the Kind of err.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTemporary {
			return KindConnection
		}
		return KindNotFound
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	return KindUnknown
}

