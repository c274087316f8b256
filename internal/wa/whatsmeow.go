package wa

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"gowa-gateway/internal/model"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"
)

const storeFileName = "store.db"

// whatsmeowClient is the production Client backed by go.mau.fi/whatsmeow,
// with device credentials in a sqlite database inside the session folder.
type whatsmeowClient struct {
	opts      Options
	log       zerolog.Logger
	listeners *listeners
	cache     *messageCache

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	container *sqlstore.Container
	cli       *whatsmeow.Client
	qr        string
	conflict  bool
	closed    bool
}

var _ Client = (*whatsmeowClient)(nil)

// NewClient builds an uninitialised whatsmeow-backed client.
func NewClient(opts Options) (Client, error) {
	if opts.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if opts.Auth.ClientID == "" {
		opts.Auth.ClientID = opts.SessionID
	}
	if opts.Sandbox.DirMode == 0 {
		opts.Sandbox = DefaultSandbox
	}
	log := opts.Log.With().Str("component", "wa_client").Logger()
	return &whatsmeowClient{
		opts:      opts,
		log:       log,
		listeners: newListeners(log),
		cache:     newMessageCache(opts.MessageCacheSize),
	}, nil
}

func (c *whatsmeowClient) storeDSN() string {
	path := filepath.Join(c.opts.Auth.Dir(), storeFileName)
	params := url.Values{}
	for _, p := range c.opts.Sandbox.StorePragmas {
		params.Add("_pragma", p)
	}
	return "file:" + path + "?" + params.Encode()
}

func (c *whatsmeowClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cli != nil {
		return nil
	}

	dir := c.opts.Auth.Dir()
	if err := os.MkdirAll(dir, c.opts.Sandbox.DirMode); err != nil {
		return fmt.Errorf("create session folder: %w", err)
	}
	if err := acquireLock(dir); err != nil {
		return err
	}

	storeLog := waLog.Zerolog(c.log.With().Str("module", "store").Logger())
	container, err := sqlstore.New(ctx, "sqlite", c.storeDSN(), storeLog)
	if err != nil {
		_ = releaseLock(dir)
		return fmt.Errorf("open credential store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		_ = releaseLock(dir)
		return fmt.Errorf("load device: %w", err)
	}
	if c.opts.DeviceName != "" {
		store.DeviceProps.Os = proto.String(c.opts.DeviceName)
	}

	cli := whatsmeow.NewClient(device, waLog.Zerolog(c.log.With().Str("module", "client").Logger()))
	cli.AddEventHandler(c.handleEvent)

	c.ctx, c.cancel = context.WithCancel(context.Background())
	if device.ID == nil {
		qrChan, err := cli.GetQRChannel(c.ctx)
		if err != nil {
			c.cancel()
			_ = container.Close()
			_ = releaseLock(dir)
			return fmt.Errorf("get qr channel: %w", err)
		}
		go c.pumpQR(qrChan)
	}

	if err := cli.Connect(); err != nil {
		c.cancel()
		_ = container.Close()
		_ = releaseLock(dir)
		return fmt.Errorf("connect: %w", err)
	}

	c.container = container
	c.cli = cli
	c.closed = false
	return nil
}

func (c *whatsmeowClient) pumpQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			c.mu.Lock()
			c.qr = item.Code
			c.mu.Unlock()
			if !c.opts.Headless {
				c.log.Info().Str("qr", item.Code).Msg("Scan the pairing code")
			}
			c.listeners.emit(model.Event{Type: model.EventQR, Data: map[string]any{"qr": item.Code}})
		case whatsmeow.QRChannelEventError:
			c.log.Warn().Err(item.Error).Msg("Pairing failed")
			c.listeners.emit(model.Event{Type: model.EventAuthFailure, Data: map[string]any{"msg": item.Error.Error()}})
		case "success":
			c.mu.Lock()
			c.qr = ""
			c.mu.Unlock()
		default:
			c.log.Debug().Str("event", item.Event).Msg("Pairing channel event")
		}
	}
}

func (c *whatsmeowClient) client() (*whatsmeow.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.cli == nil {
		return nil, ErrNotInitialized
	}
	return c.cli, nil
}

// release frees the store and lock. Caller must hold c.mu.
func (c *whatsmeowClient) release() {
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.container != nil {
		if err := c.container.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Failed to close credential store")
		}
	}
	if err := releaseLock(c.opts.Auth.Dir()); err != nil {
		c.log.Warn().Err(err).Msg("Failed to remove lock file")
	}
}

func (c *whatsmeowClient) Close(ctx context.Context) error {
	cli, err := c.client()
	if err != nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		cli.Disconnect()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("graceful close: %w", ctx.Err())
	}
	c.mu.Lock()
	c.release()
	c.mu.Unlock()
	return nil
}

func (c *whatsmeowClient) Kill() {
	c.mu.Lock()
	cli := c.cli
	c.release()
	c.mu.Unlock()
	if cli != nil {
		go cli.Disconnect()
	}
}

func (c *whatsmeowClient) Destroy(ctx context.Context) error {
	cli, err := c.client()
	if err != nil {
		return nil
	}
	cli.Disconnect()
	c.mu.Lock()
	c.release()
	c.mu.Unlock()
	return nil
}

func (c *whatsmeowClient) Logout(ctx context.Context) error {
	cli, err := c.client()
	if err != nil {
		return err
	}
	if cli.Store.ID != nil {
		if err := cli.Logout(ctx); err != nil {
			return fmt.Errorf("remote logout: %w", err)
		}
	} else {
		cli.Disconnect()
	}
	c.mu.Lock()
	c.release()
	c.mu.Unlock()
	return c.opts.Auth.logout(ctx)
}

func (c *whatsmeowClient) State(ctx context.Context) (model.State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.closed || c.cli == nil:
		return model.StateUnlaunched, nil
	case c.conflict:
		return model.StateConflict, nil
	case !c.cli.IsConnected():
		return model.StateOpening, nil
	case !c.cli.IsLoggedIn():
		return model.StateUnpaired, nil
	default:
		return model.StateConnected, nil
	}
}

func (c *whatsmeowClient) Transport() TransportStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.closed:
		return TransportClosed
	case c.cli == nil || !c.cli.IsConnected():
		return TransportPending
	default:
		return TransportReady
	}
}

func (c *whatsmeowClient) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && c.cli != nil && c.cli.IsConnected()
}

func (c *whatsmeowClient) QR() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.qr
}

func (c *whatsmeowClient) Subscribe(t model.EventType, fn func(model.Event)) Subscription {
	return c.listeners.subscribe(t, fn)
}

func (c *whatsmeowClient) OnFault(fn func(error)) Subscription {
	return c.listeners.onFault(fn)
}

func (c *whatsmeowClient) Info(ctx context.Context) (*model.ClientInfo, error) {
	cli, err := c.client()
	if err != nil {
		return nil, err
	}
	if cli.Store.ID == nil {
		return nil, fmt.Errorf("not logged in")
	}
	return &model.ClientInfo{
		WID:      cli.Store.ID.ToNonAD().String(),
		PushName: cli.Store.PushName,
		Platform: cli.Store.Platform,
	}, nil
}

func acquireLock(dir string) error {
	path := filepath.Join(dir, LockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return ErrLocked
		}
		return fmt.Errorf("write lock: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d", os.Getpid())
	return err
}

func releaseLock(dir string) error {
	err := os.Remove(filepath.Join(dir, LockFileName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
