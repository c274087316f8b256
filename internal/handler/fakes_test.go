package handler

import (
	"context"
	"sync"

	"gowa-gateway/internal/model"
	"gowa-gateway/internal/wa"
)

type nopSub struct{}

func (nopSub) Unsubscribe() {}

// fakeClient is a connected session with an in-memory message store.
type fakeClient struct {
	wa.Client

	mu        sync.Mutex
	state     model.State
	transport wa.TransportStatus
	messages  map[string]*model.Message
	sent      []wa.Content
	reactions []string
	starred   map[string]bool
	deleted   map[string]bool
	contacts  []model.Contact
	media     *model.MessageMedia
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		state:    model.StateConnected,
		messages: make(map[string]*model.Message),
		starred:  make(map[string]bool),
		deleted:  make(map[string]bool),
	}
}

func (f *fakeClient) put(msg *model.Message) {
	f.mu.Lock()
	f.messages[msg.ID] = msg
	f.mu.Unlock()
}

func (f *fakeClient) setState(s model.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeClient) Initialize(context.Context) error {
	f.mu.Lock()
	f.transport = wa.TransportReady
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) stop() {
	f.mu.Lock()
	f.transport = wa.TransportClosed
	f.mu.Unlock()
}

func (f *fakeClient) Close(context.Context) error   { f.stop(); return nil }
func (f *fakeClient) Kill()                         { f.stop() }
func (f *fakeClient) Destroy(context.Context) error { f.stop(); return nil }
func (f *fakeClient) Logout(context.Context) error  { f.stop(); return nil }
func (f *fakeClient) Running() bool                 { return f.Transport() == wa.TransportReady }
func (f *fakeClient) QR() string                    { return "" }

func (f *fakeClient) State(context.Context) (model.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeClient) Transport() wa.TransportStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transport
}

func (f *fakeClient) Subscribe(model.EventType, func(model.Event)) wa.Subscription { return nopSub{} }
func (f *fakeClient) OnFault(func(error)) wa.Subscription                          { return nopSub{} }

func (f *fakeClient) Info(context.Context) (*model.ClientInfo, error) {
	return &model.ClientInfo{WID: "6281234@s.whatsapp.net", PushName: "Alice"}, nil
}

func (f *fakeClient) SendMessage(_ context.Context, chatID string, content wa.Content, _ wa.SendOptions) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	msg := &model.Message{ID: "sent-1", ChatID: chatID, FromMe: true, Body: content.Text}
	f.messages[msg.ID] = msg
	return msg, nil
}

func (f *fakeClient) GetMessage(_ context.Context, _, messageID string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, wa.ErrMessageNotFound
	}
	return msg, nil
}

func (f *fakeClient) Reply(ctx context.Context, chatID, messageID string, content wa.Content, opts wa.SendOptions) (*model.Message, error) {
	if _, err := f.GetMessage(ctx, chatID, messageID); err != nil {
		return nil, err
	}
	opts.QuotedMessageID = messageID
	return f.SendMessage(ctx, chatID, content, opts)
}

func (f *fakeClient) React(ctx context.Context, chatID, messageID, reaction string) error {
	if _, err := f.GetMessage(ctx, chatID, messageID); err != nil {
		return err
	}
	f.mu.Lock()
	f.reactions = append(f.reactions, reaction)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Forward(ctx context.Context, chatID, messageID, dest string) (*model.Message, error) {
	msg, err := f.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	return &model.Message{ID: "fwd-1", ChatID: dest, FromMe: true, IsForwarded: true, Body: msg.Body}, nil
}

func (f *fakeClient) DeleteMessage(ctx context.Context, chatID, messageID string, everyone bool) error {
	if _, err := f.GetMessage(ctx, chatID, messageID); err != nil {
		return err
	}
	f.mu.Lock()
	f.deleted[messageID] = everyone
	delete(f.messages, messageID)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Star(ctx context.Context, chatID, messageID string, starred bool) error {
	if _, err := f.GetMessage(ctx, chatID, messageID); err != nil {
		return err
	}
	f.mu.Lock()
	f.starred[messageID] = starred
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Edit(ctx context.Context, chatID, messageID, text string) (*model.Message, error) {
	msg, err := f.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	edited := *msg
	edited.Body = text
	return &edited, nil
}

func (f *fakeClient) GetQuotedMessage(ctx context.Context, chatID, messageID string) (*model.Message, error) {
	msg, err := f.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.HasQuotedMsg {
		return nil, wa.ErrMessageNotFound
	}
	return f.GetMessage(ctx, chatID, msg.QuotedMessageID)
}

func (f *fakeClient) GetMentions(ctx context.Context, chatID, messageID string) ([]model.Contact, error) {
	msg, err := f.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Contact, 0, len(msg.MentionedIDs))
	for _, id := range msg.MentionedIDs {
		out = append(out, model.Contact{ID: id})
	}
	return out, nil
}

func (f *fakeClient) DownloadMedia(context.Context, *model.Message) (*model.MessageMedia, error) {
	if f.media == nil {
		return nil, wa.ErrNoMedia
	}
	return f.media, nil
}

func (f *fakeClient) GetContact(_ context.Context, contactID string) (*model.Contact, error) {
	for _, c := range f.contacts {
		if c.ID == contactID {
			c := c
			return &c, nil
		}
	}
	return &model.Contact{ID: contactID}, nil
}

func (f *fakeClient) Contacts(context.Context) ([]model.Contact, error) {
	return f.contacts, nil
}

func (f *fakeClient) IsRegisteredUser(_ context.Context, number string) (bool, string, error) {
	for _, c := range f.contacts {
		if c.Number == number {
			return true, c.ID, nil
		}
	}
	return false, "", nil
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
