// Package wa wraps the WhatsApp protocol client behind the small capability
// surface the session lifecycle needs.
package wa

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"gowa-gateway/internal/model"

	"github.com/rs/zerolog"
)

// LockFileName is the process-lock artifact written into a session folder
// while a client holds it open.
const LockFileName = "SingletonLock"

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNoMedia         = errors.New("message media not found")
	ErrNotInitialized  = errors.New("client not initialized")
	ErrClosed          = errors.New("client closed")
	ErrLocked          = errors.New("session folder is locked by another process")
)

// TransportStatus reports whether the client's transport can serve requests.
type TransportStatus int

const (
	TransportPending TransportStatus = iota
	TransportReady
	TransportClosed
)

func (s TransportStatus) String() string {
	switch s {
	case TransportReady:
		return "ready"
	case TransportClosed:
		return "closed"
	default:
		return "pending"
	}
}

// Subscription detaches a listener. Unsubscribe may be called more than once.
type Subscription interface {
	Unsubscribe()
}

// Client is one live messaging connection.
type Client interface {
	Initialize(ctx context.Context) error
	// Close shuts the connection down gracefully, honouring ctx's deadline.
	Close(ctx context.Context) error
	// Kill releases every resource immediately without waiting on the remote side.
	Kill()
	Destroy(ctx context.Context) error
	// Logout unlinks the device remotely and then runs the auth strategy's logout hook.
	Logout(ctx context.Context) error

	State(ctx context.Context) (model.State, error)
	Transport() TransportStatus
	// Running reports whether the underlying connection is still up.
	Running() bool
	// QR returns the latest pairing code, if any.
	QR() string

	Subscribe(t model.EventType, fn func(model.Event)) Subscription
	OnFault(fn func(error)) Subscription

	Messenger
}

// Messenger holds the message-level operations exposed over the REST API.
type Messenger interface {
	Info(ctx context.Context) (*model.ClientInfo, error)
	SendMessage(ctx context.Context, chatID string, content Content, opts SendOptions) (*model.Message, error)
	GetMessage(ctx context.Context, chatID, messageID string) (*model.Message, error)
	Reply(ctx context.Context, chatID, messageID string, content Content, opts SendOptions) (*model.Message, error)
	React(ctx context.Context, chatID, messageID, reaction string) error
	Forward(ctx context.Context, chatID, messageID, destChatID string) (*model.Message, error)
	DeleteMessage(ctx context.Context, chatID, messageID string, everyone bool) error
	Star(ctx context.Context, chatID, messageID string, starred bool) error
	Edit(ctx context.Context, chatID, messageID, text string) (*model.Message, error)
	GetQuotedMessage(ctx context.Context, chatID, messageID string) (*model.Message, error)
	GetMentions(ctx context.Context, chatID, messageID string) ([]model.Contact, error)
	DownloadMedia(ctx context.Context, msg *model.Message) (*model.MessageMedia, error)
	MarkSeen(ctx context.Context, msg *model.Message) error
	GetContact(ctx context.Context, contactID string) (*model.Contact, error)
	Contacts(ctx context.Context) ([]model.Contact, error)
	IsRegisteredUser(ctx context.Context, number string) (bool, string, error)
}

// Content is the body of an outgoing message. Exactly one field is set.
type Content struct {
	Text     string
	Media    *model.MessageMedia
	Location *Location
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type SendOptions struct {
	Caption            string   `json:"caption,omitempty"`
	SendMediaAsSticker bool     `json:"sendMediaAsSticker,omitempty"`
	QuotedMessageID    string   `json:"quotedMessageId,omitempty"`
	Mentions           []string `json:"mentions,omitempty"`
}

// LocalAuth keeps a session's credentials under DataPath/session-{ClientID}.
type LocalAuth struct {
	ClientID string
	DataPath string
	// Logout runs after a remote logout. nil removes the session folder.
	Logout func(ctx context.Context) error
}

func (a LocalAuth) Dir() string {
	return filepath.Join(a.DataPath, "session-"+a.ClientID)
}

func (a LocalAuth) logout(ctx context.Context) error {
	if a.Logout != nil {
		return a.Logout(ctx)
	}
	return os.RemoveAll(a.Dir())
}

// Sandbox restricts what the client may do on the host.
type Sandbox struct {
	DirMode      os.FileMode
	StorePragmas []string
}

// DefaultSandbox keeps session folders private to the service user and runs
// the credential store with foreign keys and a busy timeout.
var DefaultSandbox = Sandbox{
	DirMode:      0o700,
	StorePragmas: []string{"foreign_keys(1)", "busy_timeout(5000)", "journal_mode(WAL)"},
}

type Options struct {
	SessionID string
	Auth      LocalAuth
	Sandbox   Sandbox
	// Headless suppresses printing pairing codes to the log.
	Headless         bool
	DeviceName       string
	MessageCacheSize int
	Log              zerolog.Logger
}

// Factory builds a client for a session.
type Factory func(opts Options) (Client, error)
