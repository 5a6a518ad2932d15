// Package gatewaytest provides test doubles for the gateway package: a fake
// provider HTTP server and a deterministic, call-counting Client.
package gatewaytest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/localrivet/smartsummary/internal/gateway"
)

// MockResponseConfig holds configuration for mock API responses
type MockResponseConfig struct {
	StatusCode   int
	ResponseBody interface{}
	Headers      map[string]string
}

// MockServer creates a test server that returns the configured response to every request
// and records the request bodies it received.
func MockServer(t *testing.T, config MockResponseConfig) (*httptest.Server, *Recorder) {
	t.Helper()
	rec := &Recorder{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		rec.record(r, body)

		for k, v := range config.Headers {
			w.Header().Set(k, v)
		}
		if _, exists := config.Headers["Content-Type"]; !exists {
			w.Header().Set("Content-Type", "application/json")
		}

		w.WriteHeader(config.StatusCode)

		if config.ResponseBody == nil {
			return
		}

		var respBytes []byte
		switch body := config.ResponseBody.(type) {
		case string:
			respBytes = []byte(body)
		case []byte:
			respBytes = body
		default:
			var err error
			respBytes, err = json.Marshal(body)
			if err != nil {
				t.Errorf("Failed to marshal mock response: %v", err)
				return
			}
		}
		_, _ = w.Write(respBytes)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

// Recorder captures requests seen by MockServer.
type Recorder struct {
	mu       sync.Mutex
	paths    []string
	bodies   []map[string]any
	authKeys []string
}

func (r *Recorder) record(req *http.Request, body map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.paths = append(r.paths, req.URL.Path)
	r.bodies = append(r.bodies, body)

	key := req.Header.Get("X-Api-Key")
	if key == "" {
		key = strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	}
	r.authKeys = append(r.authKeys, key)
}

// Count returns the number of requests received.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// LastBody returns the decoded JSON body of the most recent request.
func (r *Recorder) LastBody() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bodies) == 0 {
		return nil
	}
	return r.bodies[len(r.bodies)-1]
}

// LastPath returns the URL path of the most recent request.
func (r *Recorder) LastPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}

// LastKey returns the API key sent with the most recent request.
func (r *Recorder) LastKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.authKeys) == 0 {
		return ""
	}
	return r.authKeys[len(r.authKeys)-1]
}

// FakeClient is a scriptable gateway.Client. The zero value answers every
// prompt with "fake summary".
type FakeClient struct {
	// Text is returned by Complete and, split into words, by Stream.
	Text string
	// Fragments overrides the streamed fragments.
	Fragments []string
	// Err is returned by Complete, Stream and ValidateKey.
	Err error
	// StreamErr is reported after all fragments have been emitted.
	StreamErr error
	// Hang makes a stream block after its fragments until it is closed or its context ends.
	Hang bool
	// Usage is reported for every call.
	Usage gateway.Usage

	mu          sync.Mutex
	calls       int
	streamCalls int
	requests    []gateway.Request
	keys        []string
	streams     []*FakeStream
}

var _ gateway.Client = (*FakeClient)(nil)

// Name implements gateway.Client.
func (f *FakeClient) Name() string { return "fake" }

// WithAPIKey implements gateway.Client. The returned client shares counters with f.
func (f *FakeClient) WithAPIKey(key string) gateway.Client {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	return f
}

func (f *FakeClient) text() string {
	if f.Text == "" {
		return "fake summary"
	}
	return f.Text
}

// Complete implements gateway.Client.
func (f *FakeClient) Complete(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, gateway.Normalize("fake", err)
	}
	return &gateway.Response{Text: f.text(), Model: req.Model, Usage: f.Usage}, nil
}

// Stream implements gateway.Client.
func (f *FakeClient) Stream(ctx context.Context, req gateway.Request) (gateway.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.streamCalls++
	f.requests = append(f.requests, req)
	if f.Err != nil {
		return nil, f.Err
	}

	fragments := f.Fragments
	if fragments == nil {
		words := strings.Fields(f.text())
		for i, w := range words {
			if i < len(words)-1 {
				w += " "
			}
			fragments = append(fragments, w)
		}
	}

	s := &FakeStream{
		ctx:       ctx,
		fragments: fragments,
		err:       f.StreamErr,
		hang:      f.Hang,
		usage:     f.Usage,
		model:     req.Model,
		closeCh:   make(chan struct{}),
	}
	f.streams = append(f.streams, s)
	return s, nil
}

// ValidateKey implements gateway.Client.
func (f *FakeClient) ValidateKey(_ context.Context, key string) error {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	return f.Err
}

// Calls returns the number of Complete calls.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// StreamCalls returns the number of Stream calls.
func (f *FakeClient) StreamCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

// TotalCalls returns Complete plus Stream calls.
func (f *FakeClient) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls + f.streamCalls
}

// LastRequest returns the most recent request, if any.
func (f *FakeClient) LastRequest() (gateway.Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return gateway.Request{}, false
	}
	return f.requests[len(f.requests)-1], true
}

// Keys returns every per-request key seen.
func (f *FakeClient) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

// LastStream returns the most recent stream, if any.
func (f *FakeClient) LastStream() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

// FakeStream is the gateway.Stream returned by FakeClient.
type FakeStream struct {
	ctx       context.Context
	fragments []string
	pos       int
	current   string
	err       error
	hang      bool
	usage     gateway.Usage
	model     string

	closeOnce sync.Once
	closeCh   chan struct{}
	ended     error
}

// Next implements gateway.Stream.
func (s *FakeStream) Next() bool {
	if s.IsClosed() {
		return false
	}
	if s.pos < len(s.fragments) {
		s.current = s.fragments[s.pos]
		s.pos++
		return true
	}
	if s.hang {
		select {
		case <-s.ctx.Done():
			s.ended = s.ctx.Err()
		case <-s.closeCh:
		}
	}
	return false
}

// Current implements gateway.Stream.
func (s *FakeStream) Current() string { return s.current }

// Err implements gateway.Stream.
func (s *FakeStream) Err() error {
	if s.ended != nil {
		return gateway.Normalize("fake", s.ended)
	}
	return s.err
}

// Close implements gateway.Stream.
func (s *FakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closeCh) })
	return nil
}

// Usage implements gateway.Stream.
func (s *FakeStream) Usage() gateway.Usage { return s.usage }

// Model implements gateway.Stream.
func (s *FakeStream) Model() string { return s.model }

// IsClosed reports whether Close has been called.
func (s *FakeStream) IsClosed() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}

// Closed returns a channel that is closed when the stream is closed.
func (s *FakeStream) Closed() <-chan struct{} {
	return s.closeCh
}
