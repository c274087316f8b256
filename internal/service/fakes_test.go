package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gowa-gateway/internal/model"
	"gowa-gateway/internal/wa"
)

type fakeSub struct {
	once sync.Once
	fn   func()
}

func (s *fakeSub) Unsubscribe() { s.once.Do(s.fn) }

// fakeClient implements the parts of wa.Client the lifecycle and bridge use.
type fakeClient struct {
	wa.Client

	opts      wa.Options
	initDelay time.Duration
	initErr   error
	logoutErr error
	// blockClose makes Close wait for its context to expire.
	blockClose bool

	mu        sync.Mutex
	transport wa.TransportStatus
	state     model.State
	next      int
	subs      map[model.EventType]map[int]func(model.Event)
	faults    map[int]func(error)
	calls     map[string]int
	media     *model.MessageMedia
	running   atomic.Bool
}

func newFakeClient(opts wa.Options) *fakeClient {
	return &fakeClient{
		opts:   opts,
		state:  model.StateConnected,
		subs:   make(map[model.EventType]map[int]func(model.Event)),
		faults: make(map[int]func(error)),
		calls:  make(map[string]int),
	}
}

func (f *fakeClient) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeClient) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) Initialize(ctx context.Context) error {
	f.record("initialize")
	if f.initDelay > 0 {
		time.Sleep(f.initDelay)
	}
	if f.initErr != nil {
		return f.initErr
	}
	f.mu.Lock()
	f.transport = wa.TransportReady
	f.mu.Unlock()
	f.running.Store(true)
	return nil
}

func (f *fakeClient) stop() {
	f.mu.Lock()
	f.transport = wa.TransportClosed
	f.mu.Unlock()
	f.running.Store(false)
}

func (f *fakeClient) Close(ctx context.Context) error {
	f.record("close")
	if f.blockClose {
		<-ctx.Done()
		return ctx.Err()
	}
	f.stop()
	return nil
}

func (f *fakeClient) Kill() {
	f.record("kill")
	f.stop()
}

func (f *fakeClient) Destroy(ctx context.Context) error {
	f.record("destroy")
	f.stop()
	return nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.record("logout")
	if f.logoutErr != nil {
		return f.logoutErr
	}
	f.stop()
	return nil
}

func (f *fakeClient) State(ctx context.Context) (model.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeClient) setState(s model.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeClient) setTransport(t wa.TransportStatus) {
	f.mu.Lock()
	f.transport = t
	f.mu.Unlock()
}

func (f *fakeClient) Transport() wa.TransportStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transport
}

func (f *fakeClient) Running() bool { return f.running.Load() }

func (f *fakeClient) QR() string { return "" }

func (f *fakeClient) Subscribe(t model.EventType, fn func(model.Event)) wa.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	if f.subs[t] == nil {
		f.subs[t] = make(map[int]func(model.Event))
	}
	f.subs[t][id] = fn
	return &fakeSub{fn: func() {
		f.mu.Lock()
		delete(f.subs[t], id)
		f.mu.Unlock()
	}}
}

func (f *fakeClient) OnFault(fn func(error)) wa.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.faults[id] = fn
	return &fakeSub{fn: func() {
		f.mu.Lock()
		delete(f.faults, id)
		f.mu.Unlock()
	}}
}

func (f *fakeClient) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.faults)
	for _, m := range f.subs {
		n += len(m)
	}
	return n
}

func (f *fakeClient) emit(e model.Event) {
	f.mu.Lock()
	var fns []func(model.Event)
	for _, fn := range f.subs[e.Type] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

func (f *fakeClient) fault(err error) {
	f.mu.Lock()
	var fns []func(error)
	for _, fn := range f.faults {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (f *fakeClient) DownloadMedia(ctx context.Context, msg *model.Message) (*model.MessageMedia, error) {
	f.record("download")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.media == nil {
		return nil, wa.ErrNoMedia
	}
	return f.media, nil
}

func (f *fakeClient) MarkSeen(ctx context.Context, msg *model.Message) error {
	f.record("seen")
	return nil
}

// fakeFactory builds fakeClients and remembers them per session.
type fakeFactory struct {
	mu        sync.Mutex
	clients   map[string][]*fakeClient
	configure func(*fakeClient)
}

func newFakeFactory(configure func(*fakeClient)) *fakeFactory {
	return &fakeFactory{clients: make(map[string][]*fakeClient), configure: configure}
}

func (f *fakeFactory) New(opts wa.Options) (wa.Client, error) {
	c := newFakeClient(opts)
	if f.configure != nil {
		f.configure(c)
	}
	f.mu.Lock()
	f.clients[opts.SessionID] = append(f.clients[opts.SessionID], c)
	f.mu.Unlock()
	return c, nil
}

func (f *fakeFactory) built(id string) []*fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeClient(nil), f.clients[id]...)
}

type delivery struct {
	SessionID string
	Type      model.EventType
	Payload   any
}

type recordingSink struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (s *recordingSink) Deliver(sessionID string, t model.EventType, payload any) {
	s.mu.Lock()
	s.deliveries = append(s.deliveries, delivery{sessionID, t, payload})
	s.mu.Unlock()
}

func (s *recordingSink) ofType(t model.EventType) []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []delivery
	for _, d := range s.deliveries {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

type panickingSink struct{}

func (panickingSink) Deliver(string, model.EventType, any) { panic("sink exploded") }

type fakeChannels struct {
	mu           sync.Mutex
	inits        map[string]int
	terminates   map[string]int
	terminateErr error
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{inits: make(map[string]int), terminates: make(map[string]int)}
}

func (c *fakeChannels) Init(id string) {
	c.mu.Lock()
	c.inits[id]++
	c.mu.Unlock()
}

func (c *fakeChannels) Terminate(id string) error {
	c.mu.Lock()
	c.terminates[id]++
	c.mu.Unlock()
	return c.terminateErr
}

func (c *fakeChannels) initialized(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inits[id]
}

func (c *fakeChannels) terminated(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminates[id]
}

var errBoom = errors.New("boom")

func testOptions(id string) wa.Options {
	return wa.Options{SessionID: id}
}
