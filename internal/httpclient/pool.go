package httpclient

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// State is the lifecycle of a Pool.
type State int

const (
	Unconnected State = iota
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "invalid"
	}
}

// Pool owns the keep-alive connections to one remote service. It is created
// Unconnected, builds its client on first use, drops back to Unconnected on
// Reset and refuses further use after Close.
type Pool struct {
	mu      sync.Mutex
	state   State
	client  *http.Client
	timeout time.Duration
	newTr   func() *http.Transport
	secrets []string
}

// NewPool returns an Unconnected pool whose client applies timeout per request.
func NewPool(timeout time.Duration) *Pool {
	return &Pool{timeout: timeout, newTr: defaultTransport}
}

// Redact makes the pool scrub secrets from the bodies of error responses.
// It returns p for chaining after NewPool.
func (p *Pool) Redact(secrets ...string) *Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.secrets = append(p.secrets, secrets...)
	return p
}

func defaultTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// State reports the current lifecycle state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// EnsureConnected returns the shared client, creating it if needed.
func (p *Pool) EnsureConnected() (*http.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Closed:
		return nil, ErrPoolClosed
	case Connected:
		return p.client, nil
	}
	p.client = &http.Client{Timeout: p.timeout, Transport: p.newTr()}
	p.state = Connected
	return p.client, nil
}

// Reset discards the current client after a failure. The next
// EnsureConnected builds a fresh one.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Connected {
		return
	}
	p.client.CloseIdleConnections()
	p.client = nil
	p.state = Unconnected
}

// Close releases idle connections. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.CloseIdleConnections()
		p.client = nil
	}
	p.state = Closed
}

// Do sends req on the pooled client. Transport failures reset the pool and
// non-2xx responses come back as *StatusError with the body closed.
func (p *Pool) Do(service string, req *http.Request) (*http.Response, error) {
	client, err := p.EnsureConnected()
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		p.Reset()
		return nil, err
	}
	p.mu.Lock()
	secrets := p.secrets
	p.mu.Unlock()
	if err := CheckResponse(service, resp, secrets...); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// Doer is the subset of *http.Client used by SDKs that accept a custom client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Doer returns a client that sends through the pool and resets it on
// transport failures but leaves status handling to the caller.
func (p *Pool) Doer() Doer { return pooledDoer{p} }

type pooledDoer struct{ p *Pool }

func (d pooledDoer) Do(req *http.Request) (*http.Response, error) {
	client, err := d.p.EnsureConnected()
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		d.p.Reset()
	}
	return resp, err
}
