package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gowa-gateway/internal/model"
	"gowa-gateway/internal/wa"

	"github.com/rs/zerolog"
)

// Channels owns the per-session realtime channels.
type Channels interface {
	Init(sessionID string)
	Terminate(sessionID string) error
}

type LifecycleOptions struct {
	SessionsPath string
	// ReleaseLock clears a stale lock artifact from the session folder before setup.
	ReleaseLock      bool
	Headless         bool
	DeviceName       string
	MessageCacheSize int

	Factory  wa.Factory
	Registry *Registry
	Bridge   *Bridge
	Channels Channels
	Log      zerolog.Logger

	ValidateAttempts   int
	ValidateInterval   time.Duration
	CloseTimeout       time.Duration
	DisconnectPolls    int
	DisconnectInterval time.Duration
}

// Lifecycle creates, supervises and tears down sessions.
type Lifecycle struct {
	opts     LifecycleOptions
	registry *Registry
	bridge   *Bridge
	log      zerolog.Logger
}

func NewLifecycle(opts LifecycleOptions) *Lifecycle {
	if opts.Factory == nil {
		opts.Factory = wa.NewClient
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Bridge == nil {
		opts.Bridge = NewBridge(BridgeOptions{Log: opts.Log})
	}
	if opts.ValidateAttempts <= 0 {
		opts.ValidateAttempts = 3
	}
	if opts.ValidateInterval <= 0 {
		opts.ValidateInterval = time.Second
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = 5 * time.Second
	}
	if opts.DisconnectPolls <= 0 {
		opts.DisconnectPolls = 10
	}
	if opts.DisconnectInterval <= 0 {
		opts.DisconnectInterval = time.Second
	}
	return &Lifecycle{
		opts:     opts,
		registry: opts.Registry,
		bridge:   opts.Bridge,
		log:      opts.Log.With().Str("component", "lifecycle").Logger(),
	}
}

func (l *Lifecycle) Registry() *Registry {
	return l.registry
}

func (l *Lifecycle) Bridge() *Bridge {
	return l.bridge
}

// Session returns the live session for id or ErrSessionNotFound.
func (l *Lifecycle) Session(id string) (*Session, error) {
	s, ok := l.registry.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Setup starts a session. An id that is already live or being set up yields
// an unsuccessful result rather than an error; initialisation failures are
// returned as errors and leave the registry untouched.
func (l *Lifecycle) Setup(ctx context.Context, id string) (model.SetupResult, error) {
	if err := ValidateSessionID(id); err != nil {
		return model.SetupResult{Message: err.Error()}, err
	}
	log := l.log.With().Str("session_id", id).Logger()

	res, err := l.registry.Reserve(id)
	if err != nil {
		return model.SetupResult{Message: MsgSessionExists}, nil
	}
	defer res.Release()

	dir := SessionDir(l.opts.SessionsPath, id)
	if l.opts.ReleaseLock {
		if err := releaseStaleLock(dir, log); err != nil {
			log.Warn().Err(err).Msg("Failed to release stale lock")
		}
	}

	client, err := l.opts.Factory(wa.Options{
		SessionID: id,
		Auth: wa.LocalAuth{
			ClientID: id,
			DataPath: l.opts.SessionsPath,
			// Folder removal is ordered by Delete, not by the client's logout.
			Logout: func(context.Context) error { return nil },
		},
		Sandbox:          wa.DefaultSandbox,
		Headless:         l.opts.Headless,
		DeviceName:       l.opts.DeviceName,
		MessageCacheSize: l.opts.MessageCacheSize,
		Log:              log,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create client")
		return model.SetupResult{Message: err.Error()}, fmt.Errorf("create client: %w", err)
	}

	sess := &Session{ID: id, Client: client, CreatedAt: time.Now()}
	if l.opts.Channels != nil {
		l.opts.Channels.Init(id)
	}
	// Crash recovery is armed after Commit.
	sess.Binding = l.bridge.Attach(id, client, nil)

	if err := client.Initialize(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to initialize session")
		sess.Binding.Detach()
		if l.opts.Channels != nil {
			if terr := l.opts.Channels.Terminate(id); terr != nil {
				log.Warn().Err(terr).Msg("Failed to terminate websocket channel")
			}
		}
		return model.SetupResult{Message: err.Error()}, fmt.Errorf("initialize session %s: %w", id, err)
	}

	res.Commit(sess)
	l.watch(sess)
	log.Info().Msg("Session started")
	return model.SetupResult{Success: true, Message: "Session initiated successfully"}, nil
}

// restart replaces a crashed session's client with a fresh one.
func (l *Lifecycle) restart(id string, sess *Session) {
	log := l.log.With().Str("session_id", id).Logger()
	sess.Binding.Detach()
	l.registry.removeIf(id, sess)

	ctx, cancel := context.WithTimeout(context.Background(), l.opts.CloseTimeout)
	if err := sess.Client.Destroy(ctx); err != nil {
		log.Debug().Err(err).Msg("Destroy after crash failed")
	}
	cancel()

	result, err := l.Setup(context.Background(), id)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("Failed to restart session")
	case !result.Success:
		log.Warn().Str("reason", result.Message).Msg("Session was not restarted")
	}
}

func (l *Lifecycle) watch(sess *Session) {
	l.bridge.Watch(sess.Binding, sess.ID, sess.Client, func() { l.restart(sess.ID, sess) })
}

// resume undoes the teardown preparation of a Delete that failed, leaving the
// session registered with its channel and crash recovery in place.
func (l *Lifecycle) resume(sess *Session) {
	if l.opts.Channels != nil {
		l.opts.Channels.Init(sess.ID)
	}
	sess.Binding.ResumeFaults()
	l.watch(sess)
}

// Validate reports whether id is live and connected. It never returns an error.
func (l *Lifecycle) Validate(ctx context.Context, id string) model.ValidationResult {
	sess, ok := l.registry.Get(id)
	if !ok {
		return model.ValidationResult{Message: MsgSessionNotFound}
	}
	client := sess.Client

	ready := false
	for attempt := 0; attempt < l.opts.ValidateAttempts && !ready; attempt++ {
		switch client.Transport() {
		case wa.TransportReady:
			ready = true
		case wa.TransportClosed:
			return model.ValidationResult{Message: model.MsgBrowserTabClosed}
		default:
			if !sleep(ctx, l.opts.ValidateInterval) {
				return model.ValidationResult{Message: ctx.Err().Error()}
			}
		}
	}
	if !ready {
		return model.ValidationResult{Message: model.MsgSessionClosed}
	}

	state, err := client.State(ctx)
	if err != nil {
		return model.ValidationResult{Message: err.Error()}
	}
	if state != model.StateConnected {
		return model.ValidationResult{State: state, Message: model.MsgSessionNotConnected}
	}
	return model.ValidationResult{Success: true, State: state, Message: model.MsgSessionConnected}
}

// Reload closes a session's client and sets it up again, keeping its
// credentials on disk. An absent id is a no-op.
func (l *Lifecycle) Reload(ctx context.Context, id string) error {
	sess, ok := l.registry.Get(id)
	if !ok {
		return nil
	}
	log := l.log.With().Str("session_id", id).Logger()

	sess.Binding.Detach()
	l.closeClient(ctx, sess.Client, log)
	l.registry.removeIf(id, sess)

	result, err := l.Setup(ctx, id)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("reload session %s: %s", id, result.Message)
	}
	return nil
}

// closeClient closes gracefully within CloseTimeout and kills the client if
// that does not finish in time.
func (l *Lifecycle) closeClient(parent context.Context, client wa.Client, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(parent, l.opts.CloseTimeout)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Graceful close failed, killing client")
		client.Kill()
	}
}

// Delete logs out or destroys a session according to validation, then
// removes it from the registry and deletes its folder. An absent id is a no-op.
func (l *Lifecycle) Delete(ctx context.Context, id string, validation model.ValidationResult) error {
	sess, ok := l.registry.Get(id)
	if !ok {
		return nil
	}
	log := l.log.With().Str("session_id", id).Logger()

	sess.Binding.DetachFaults()
	if l.opts.Channels != nil {
		if err := l.opts.Channels.Terminate(id); err != nil {
			log.Warn().Err(err).Msg("Failed to terminate websocket channel")
		}
	}

	client := sess.Client
	switch {
	case validation.Success:
		if err := client.Logout(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to log out session")
			l.resume(sess)
			return fmt.Errorf("logout session %s: %w", id, err)
		}
	case validation.NotConnected():
		if err := client.Destroy(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to destroy session")
			l.resume(sess)
			return fmt.Errorf("destroy session %s: %w", id, err)
		}
	}

	for i := 0; i < l.opts.DisconnectPolls && client.Running(); i++ {
		if !sleep(ctx, l.opts.DisconnectInterval) {
			break
		}
	}
	if client.Running() {
		log.Warn().Msg("Client still running after disconnect wait")
	}

	sess.Binding.Detach()
	client.Kill()
	l.registry.removeIf(id, sess)
	if err := deleteSessionFolder(l.opts.SessionsPath, id); err != nil {
		log.Error().Err(err).Msg("Failed to delete session folder")
		return err
	}
	log.Info().Msg("Session deleted")
	return nil
}

// Flush deletes every session found on disk. With deleteOnlyInactive set,
// sessions that validate as connected are kept. A failure on one session
// does not stop the others; all failures are returned joined.
func (l *Lifecycle) Flush(ctx context.Context, deleteOnlyInactive bool) error {
	ids, err := ListSessionIDs(l.opts.SessionsPath)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		validation := l.Validate(ctx, id)
		if deleteOnlyInactive && validation.Success {
			continue
		}
		if _, live := l.registry.Get(id); live {
			err = l.Delete(ctx, id, validation)
		} else {
			err = deleteSessionFolder(l.opts.SessionsPath, id)
		}
		if err != nil {
			l.log.Error().Err(err).Str("session_id", id).Msg("Failed to flush session")
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Restore sets up every session that has a folder on disk. Setups run
// concurrently and failures are only logged.
func (l *Lifecycle) Restore(ctx context.Context) error {
	if err := os.MkdirAll(l.opts.SessionsPath, 0o755); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}
	ids, err := ListSessionIDs(l.opts.SessionsPath)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := l.Setup(ctx, id); err != nil {
				l.log.Error().Err(err).Str("session_id", id).Msg("Failed to restore session")
			}
		}(id)
	}
	wg.Wait()
	l.log.Info().Int("sessions", l.registry.Len()).Msg("Sessions restored")
	return nil
}

// Shutdown closes every live session without touching their folders.
func (l *Lifecycle) Shutdown(ctx context.Context) {
	for _, id := range l.registry.IDs() {
		sess, ok := l.registry.Get(id)
		if !ok {
			continue
		}
		sess.Binding.Detach()
		l.closeClient(ctx, sess.Client, l.log.With().Str("session_id", id).Logger())
		l.registry.removeIf(id, sess)
	}
	l.bridge.Wait()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
