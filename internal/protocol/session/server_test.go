package session

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/newswire/internal/news"
	"github.com/danmuck/newswire/internal/protocol"
	"github.com/danmuck/newswire/internal/protocol/frame"
	"github.com/danmuck/newswire/internal/testutil/testlog"
)

type stubFetcher struct {
	mu    sync.Mutex
	calls []news.Query
	fn    func(q news.Query) (json.RawMessage, error)
}

func (f *stubFetcher) Fetch(_ context.Context, q news.Query) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(q)
	}
	return json.RawMessage(`{"status":"ok","query":"` + q.String() + `"}`), nil
}

func (f *stubFetcher) queries() []news.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]news.Query, len(f.calls))
	copy(out, f.calls)
	return out
}

type memSink struct {
	mu    sync.Mutex
	items map[string]string
	err   error
}

func (s *memSink) Persist(payload json.RawMessage, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items = make(map[string]string)
	}
	s.items[key] = string(payload)
	return nil
}

func (s *memSink) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.items))
	for k := range s.items {
		out = append(out, k)
	}
	return out
}

type harness struct {
	server *Server
	peer   *Channel
	done   chan error
}

func startSession(t *testing.T, fetcher news.Fetcher, sink news.Sink) *harness {
	t.Helper()
	return startSessionWith(t, fetcher, sink, ServerOptions{})
}

func startSessionWith(t *testing.T, fetcher news.Fetcher, sink news.Sink, opts ServerOptions) *harness {
	t.Helper()
	srvConn, cliConn := net.Pipe()
	opts.ID = "test-" + t.Name()
	srv := NewServer(srvConn, fetcher, sink, opts)
	h := &harness{
		server: srv,
		peer:   NewChannel(cliConn, Config{}, "client"),
		done:   make(chan error, 1),
	}
	go func() { h.done <- srv.Serve(context.Background()) }()
	t.Cleanup(func() { _ = h.peer.Close() })
	return h
}

func (h *harness) send(t *testing.T, text string) {
	t.Helper()
	if err := h.peer.Send(text); err != nil {
		t.Fatalf("send %q: %v", text, err)
	}
}

func (h *harness) expect(t *testing.T, want string) {
	t.Helper()
	got, err := h.peer.Receive()
	if err != nil {
		t.Fatalf("receive (want %q): %v", want, err)
	}
	if got != want {
		t.Fatalf("reply mismatch: got=%q want=%q", got, want)
	}
}

func (h *harness) payload(t *testing.T) string {
	t.Helper()
	got, err := h.peer.Receive()
	if err != nil {
		t.Fatalf("receive payload: %v", err)
	}
	if !strings.HasPrefix(got, `{"status"`) {
		t.Fatalf("expected json payload, got %q", got)
	}
	return got
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not finish")
		return nil
	}
}

func waitState(t *testing.T, s *Server, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state=%s want %s", s.State(), want)
}

func TestMainMenuRejectsUnknownChoice(t *testing.T) {
	testlog.Start(t)
	h := startSession(t, &stubFetcher{}, nil)

	h.send(t, "Bob")
	h.expect(t, protocol.ReplyConnected)
	for _, bad := range []string{"4", "0", "", "headlines", " 1"} {
		h.send(t, bad)
		h.expect(t, protocol.ReplyError)
		waitState(t, h.server, StateMainMenu)
	}
	h.send(t, protocol.MainHeadlines)
	h.expect(t, protocol.ReplyHeadlines)
}

func TestAliceEndToEnd(t *testing.T) {
	testlog.Start(t)
	fetcher := &stubFetcher{}
	sink := &memSink{}
	h := startSession(t, fetcher, sink)

	h.send(t, "Alice")
	h.expect(t, protocol.ReplyConnected)
	h.send(t, "1")
	h.expect(t, protocol.ReplyHeadlines)
	h.send(t, "2")
	h.expect(t, protocol.ReplyReady)
	h.send(t, "sports")
	h.payload(t)
	h.send(t, "5")
	h.send(t, "3")
	h.expect(t, protocol.ReplyBye)

	if err := h.wait(t); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if _, err := h.peer.Receive(); !errors.Is(err, frame.ErrClosed) {
		t.Fatalf("expected closed after BYE, got %v", err)
	}

	qs := fetcher.queries()
	if len(qs) != 1 || qs[0] != news.Headlines(protocol.FilterCategory, "sports") {
		t.Fatalf("unexpected queries: %+v", qs)
	}
	keys := sink.keys()
	if len(keys) != 1 || keys[0] != "Alice_category_GB5.json" {
		t.Fatalf("unexpected persisted keys: %v", keys)
	}
	if h.server.State() != StateClosed {
		t.Fatalf("state=%s after bye", h.server.State())
	}
}

func TestSubmenuOptionsBuildQueries(t *testing.T) {
	testlog.Start(t)
	fetcher := &stubFetcher{}
	sink := &memSink{}
	h := startSession(t, fetcher, sink)

	h.send(t, "carol")
	h.expect(t, protocol.ReplyConnected)

	h.send(t, protocol.MainHeadlines)
	h.expect(t, protocol.ReplyHeadlines)
	for _, step := range []struct{ choice, value string }{{"1", "football"}, {"3", "jp"}} {
		h.send(t, step.choice)
		h.expect(t, protocol.ReplyReady)
		h.send(t, step.value)
		h.payload(t)
	}
	h.send(t, protocol.SubListAll)
	h.payload(t)
	h.send(t, protocol.SubBack)

	h.send(t, protocol.MainSources)
	h.expect(t, protocol.ReplySources)
	for _, step := range []struct{ choice, value string }{{"1", "health"}, {"2", "ae"}, {"3", "ar"}} {
		h.send(t, step.choice)
		h.expect(t, protocol.ReplyReady)
		h.send(t, step.value)
		h.payload(t)
	}
	h.send(t, protocol.SubListAll)
	h.payload(t)
	h.send(t, "9")
	h.expect(t, protocol.ReplyError)
	waitState(t, h.server, StateSourcesMenu)

	want := []news.Query{
		news.Headlines(protocol.FilterKeyword, "football"),
		news.Headlines(protocol.FilterCountry, "jp"),
		news.Headlines(protocol.FilterAll, ""),
		news.Sources(protocol.FilterCategory, "health"),
		news.Sources(protocol.FilterCountry, "ae"),
		news.Sources(protocol.FilterLanguage, "ar"),
		news.Sources(protocol.FilterAll, ""),
	}
	got := fetcher.queries()
	if len(got) != len(want) {
		t.Fatalf("query count=%d want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("query[%d]=%+v want %+v", i, got[i], want[i])
		}
	}
	if n := len(sink.keys()); n != len(want) {
		t.Fatalf("persisted %d results want %d", n, len(want))
	}
}

func TestInvalidFilterValueAnsweredInBand(t *testing.T) {
	testlog.Start(t)
	fetcher := &stubFetcher{}
	sink := &memSink{}
	h := startSession(t, fetcher, sink)

	h.send(t, "dave")
	h.expect(t, protocol.ReplyConnected)
	h.send(t, protocol.MainSources)
	h.expect(t, protocol.ReplySources)
	h.send(t, "2")
	h.expect(t, protocol.ReplyReady)
	h.send(t, "zz")

	raw := h.payload(t)
	if status, _ := news.PayloadStatus([]byte(raw)); status != news.StatusError {
		t.Fatalf("expected error payload, got %q", raw)
	}
	if len(fetcher.queries()) != 0 {
		t.Fatalf("invalid value reached fetcher")
	}
	if len(sink.keys()) != 0 {
		t.Fatalf("invalid value was persisted")
	}
	waitState(t, h.server, StateSourcesMenu)
}

func TestUpstreamFailuresBecomeErrorPayloads(t *testing.T) {
	testlog.Start(t)
	calls := 0
	fetcher := &stubFetcher{fn: func(q news.Query) (json.RawMessage, error) {
		calls++
		switch calls {
		case 1:
			return nil, errors.New("dns failure")
		case 2:
			panic("fetcher blew up")
		case 3:
			return json.RawMessage(`not json`), nil
		default:
			return json.RawMessage(`{"status":"error","code":"rateLimited","message":"slow down"}`), nil
		}
	}}
	sink := &memSink{}
	h := startSession(t, fetcher, sink)

	h.send(t, "erin")
	h.expect(t, protocol.ReplyConnected)
	h.send(t, protocol.MainHeadlines)
	h.expect(t, protocol.ReplyHeadlines)
	for i := 0; i < 4; i++ {
		h.send(t, protocol.SubListAll)
		raw := h.payload(t)
		if status, _ := news.PayloadStatus([]byte(raw)); status != news.StatusError {
			t.Fatalf("call %d: expected error payload, got %q", i+1, raw)
		}
	}
	if len(sink.keys()) != 0 {
		t.Fatalf("failed fetches were persisted: %v", sink.keys())
	}
	h.send(t, protocol.SubBack)
	h.send(t, protocol.MainQuit)
	h.expect(t, protocol.ReplyBye)
	if err := h.wait(t); err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestUnsendableResultsBecomeErrorPayloads(t *testing.T) {
	testlog.Start(t)
	calls := 0
	fetcher := &stubFetcher{fn: func(q news.Query) (json.RawMessage, error) {
		calls++
		switch calls {
		case 1:
			return json.RawMessage("{\"status\":\"ok\",\"title\":\"caf\xe9\"}"), nil
		case 2:
			return json.RawMessage(`{"status":"ok","pad":"` + strings.Repeat("x", 1024) + `"}`), nil
		default:
			return json.RawMessage(`{"status":"ok","articles":[]}`), nil
		}
	}}
	sink := &memSink{}
	h := startSessionWith(t, fetcher, sink, ServerOptions{
		Transport: Config{Limits: frame.Limits{MaxPayloadBytes: 512}},
	})

	h.send(t, "ivan")
	h.expect(t, protocol.ReplyConnected)
	h.send(t, protocol.MainHeadlines)
	h.expect(t, protocol.ReplyHeadlines)
	for _, want := range []string{"utf-8", "exceeds message limit"} {
		h.send(t, protocol.SubListAll)
		raw := h.payload(t)
		if status, _ := news.PayloadStatus([]byte(raw)); status != news.StatusError {
			t.Fatalf("expected error payload, got %q", raw)
		}
		if !strings.Contains(raw, want) {
			t.Fatalf("payload %q missing %q", raw, want)
		}
		waitState(t, h.server, StateHeadlinesMenu)
	}
	if len(sink.keys()) != 0 {
		t.Fatalf("unsendable results were persisted: %v", sink.keys())
	}

	h.send(t, protocol.SubListAll)
	raw := h.payload(t)
	if status, _ := news.PayloadStatus([]byte(raw)); status != news.StatusOK {
		t.Fatalf("session did not recover, got %q", raw)
	}
	if keys := sink.keys(); len(keys) != 1 || keys[0] != "ivan_all_headlines_GB5.json" {
		t.Fatalf("persisted keys=%v", keys)
	}
	h.send(t, protocol.SubBack)
	h.send(t, protocol.MainQuit)
	h.expect(t, protocol.ReplyBye)
	if err := h.wait(t); err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestInfoReportsAwaitedFilter(t *testing.T) {
	testlog.Start(t)
	h := startSession(t, &stubFetcher{}, nil)

	h.send(t, "judy")
	h.expect(t, protocol.ReplyConnected)
	h.send(t, protocol.MainSources)
	h.expect(t, protocol.ReplySources)
	if got := h.server.Info().Awaiting; got != "" {
		t.Fatalf("awaiting=%q before READY", got)
	}
	h.send(t, "2")
	h.expect(t, protocol.ReplyReady)
	waitState(t, h.server, StateAwaitingFilterValue)
	info := h.server.Info()
	if info.State != "awaiting_filter_value" || info.Awaiting != string(protocol.FilterCountry) {
		t.Fatalf("info=%+v", info)
	}
	h.send(t, "ae")
	h.payload(t)
	waitState(t, h.server, StateSourcesMenu)
	if got := h.server.Awaiting(); got != "" {
		t.Fatalf("awaiting=%q after value", got)
	}
}

func TestSinkFailureDoesNotReachPeer(t *testing.T) {
	testlog.Start(t)
	h := startSession(t, &stubFetcher{}, &memSink{err: errors.New("disk full")})

	h.send(t, "frank")
	h.expect(t, protocol.ReplyConnected)
	h.send(t, protocol.MainHeadlines)
	h.expect(t, protocol.ReplyHeadlines)
	h.send(t, protocol.SubListAll)
	raw := h.payload(t)
	if status, _ := news.PayloadStatus([]byte(raw)); status != news.StatusOK {
		t.Fatalf("expected ok payload, got %q", raw)
	}
}

func TestNameValidation(t *testing.T) {
	testlog.Start(t)
	h := startSession(t, &stubFetcher{}, nil)

	h.send(t, "   ")
	h.expect(t, protocol.ReplyError)
	if _, err := h.peer.conn.Write([]byte{0, 0, 0, 2, 0xff, 0xfe}); err != nil {
		t.Fatalf("raw write: %v", err)
	}
	h.expect(t, protocol.ReplyError)
	waitState(t, h.server, StateAwaitingName)

	h.send(t, "grace")
	h.expect(t, protocol.ReplyConnected)
	if got := h.server.Info(); got.Name != "grace" || got.State != StateMainMenu.String() {
		t.Fatalf("unexpected info: %+v", got)
	}
}

func TestInvalidUTF8FilterValueKeepsSubmenu(t *testing.T) {
	testlog.Start(t)
	fetcher := &stubFetcher{}
	h := startSession(t, fetcher, nil)

	h.send(t, "heidi")
	h.expect(t, protocol.ReplyConnected)
	h.send(t, protocol.MainHeadlines)
	h.expect(t, protocol.ReplyHeadlines)
	h.send(t, "1")
	h.expect(t, protocol.ReplyReady)
	if _, err := h.peer.conn.Write([]byte{0, 0, 0, 1, 0xc3}); err != nil {
		t.Fatalf("raw write: %v", err)
	}
	h.expect(t, protocol.ReplyError)
	waitState(t, h.server, StateHeadlinesMenu)
	if len(fetcher.queries()) != 0 {
		t.Fatalf("invalid value reached fetcher")
	}
}

func TestPeerCloseEndsSessionQuietly(t *testing.T) {
	testlog.Start(t)
	h := startSession(t, &stubFetcher{}, nil)
	h.send(t, "ivan")
	h.expect(t, protocol.ReplyConnected)
	_ = h.peer.Close()
	if err := h.wait(t); err != nil {
		t.Fatalf("expected orderly end, got %v", err)
	}
}

func TestPeerCloseMidFrameIsTransportError(t *testing.T) {
	testlog.Start(t)
	h := startSession(t, &stubFetcher{}, nil)
	if _, err := h.peer.conn.Write([]byte{0, 0, 0, 9, 'a'}); err != nil {
		t.Fatalf("raw write: %v", err)
	}
	_ = h.peer.Close()
	if err := h.wait(t); !errors.Is(err, frame.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	testlog.Start(t)
	srvConn, cliConn := net.Pipe()
	defer cliConn.Close()
	srv := NewServer(srvConn, &stubFetcher{}, nil, ServerOptions{ID: "cancel"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve ignored cancellation")
	}
}

func TestResultKey(t *testing.T) {
	cases := map[string]news.Query{
		"Alice_keyword_GB5.json":          news.Headlines(protocol.FilterKeyword, "x"),
		"Alice_all_headlines_GB5.json":    news.Headlines(protocol.FilterAll, ""),
		"Alice_sources_language_GB5.json": news.Sources(protocol.FilterLanguage, "en"),
		"Alice_all_sources_GB5.json":      news.Sources(protocol.FilterAll, ""),
	}
	for want, q := range cases {
		if got := ResultKey("Alice", q, DefaultGroupID); got != want {
			t.Fatalf("ResultKey(%s)=%q want %q", q, got, want)
		}
	}
}
