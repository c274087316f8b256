package wa

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"gowa-gateway/internal/helper"
	"gowa-gateway/internal/model"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/appstate"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

func (c *whatsmeowClient) lookup(chatID, messageID string) (*cachedMessage, types.JID, error) {
	chat, err := helper.ParseChatID(chatID)
	if err != nil {
		return nil, types.JID{}, err
	}
	cached, ok := c.cache.get(chat.String(), messageID)
	if !ok {
		return nil, chat, ErrMessageNotFound
	}
	return cached, chat, nil
}

func (c *whatsmeowClient) GetMessage(ctx context.Context, chatID, messageID string) (*model.Message, error) {
	cached, _, err := c.lookup(chatID, messageID)
	if err != nil {
		return nil, err
	}
	msg := *cached.msg
	return &msg, nil
}

func (c *whatsmeowClient) buildContent(ctx context.Context, cli *whatsmeow.Client, content Content, opts SendOptions) (*waE2E.Message, error) {
	switch {
	case content.Location != nil:
		loc := content.Location
		return &waE2E.Message{LocationMessage: &waE2E.LocationMessage{
			DegreesLatitude:  proto.Float64(loc.Latitude),
			DegreesLongitude: proto.Float64(loc.Longitude),
			Name:             proto.String(loc.Name),
			Address:          proto.String(loc.Address),
		}}, nil

	case content.Media != nil:
		return c.buildMedia(ctx, cli, content.Media, opts)

	default:
		if content.Text == "" {
			return nil, fmt.Errorf("message content is empty")
		}
		return &waE2E.Message{Conversation: proto.String(content.Text)}, nil
	}
}

func (c *whatsmeowClient) buildMedia(ctx context.Context, cli *whatsmeow.Client, media *model.MessageMedia, opts SendOptions) (*waE2E.Message, error) {
	data, err := base64.StdEncoding.DecodeString(media.Data)
	if err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	mime := media.MimeType

	if opts.SendMediaAsSticker {
		if data, err = helper.ToSticker(data); err != nil {
			return nil, err
		}
		up, err := cli.Upload(ctx, data, whatsmeow.MediaImage)
		if err != nil {
			return nil, fmt.Errorf("upload sticker: %w", err)
		}
		return &waE2E.Message{StickerMessage: &waE2E.StickerMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Mimetype:      proto.String("image/webp"),
		}}, nil
	}

	var mediaType whatsmeow.MediaType
	switch {
	case strings.HasPrefix(mime, "image/"):
		mediaType = whatsmeow.MediaImage
	case strings.HasPrefix(mime, "video/"):
		mediaType = whatsmeow.MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		mediaType = whatsmeow.MediaAudio
	default:
		mediaType = whatsmeow.MediaDocument
	}
	up, err := cli.Upload(ctx, data, mediaType)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}

	switch mediaType {
	case whatsmeow.MediaImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption: proto.String(opts.Caption), Mimetype: proto.String(mime),
			URL: proto.String(up.URL), DirectPath: proto.String(up.DirectPath), MediaKey: up.MediaKey,
			FileEncSHA256: up.FileEncSHA256, FileSHA256: up.FileSHA256, FileLength: proto.Uint64(up.FileLength),
		}}, nil
	case whatsmeow.MediaVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption: proto.String(opts.Caption), Mimetype: proto.String(mime),
			URL: proto.String(up.URL), DirectPath: proto.String(up.DirectPath), MediaKey: up.MediaKey,
			FileEncSHA256: up.FileEncSHA256, FileSHA256: up.FileSHA256, FileLength: proto.Uint64(up.FileLength),
		}}, nil
	case whatsmeow.MediaAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype: proto.String(mime),
			URL:      proto.String(up.URL), DirectPath: proto.String(up.DirectPath), MediaKey: up.MediaKey,
			FileEncSHA256: up.FileEncSHA256, FileSHA256: up.FileSHA256, FileLength: proto.Uint64(up.FileLength),
		}}, nil
	default:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption: proto.String(opts.Caption), Mimetype: proto.String(mime), FileName: proto.String(media.FileName),
			URL: proto.String(up.URL), DirectPath: proto.String(up.DirectPath), MediaKey: up.MediaKey,
			FileEncSHA256: up.FileEncSHA256, FileSHA256: up.FileSHA256, FileLength: proto.Uint64(up.FileLength),
		}}, nil
	}
}

// withContext attaches ci to whichever sub-message msg carries, promoting a
// plain conversation to an extended text message first.
func withContext(msg *waE2E.Message, ci *waE2E.ContextInfo) {
	if msg.Conversation != nil {
		msg.ExtendedTextMessage = &waE2E.ExtendedTextMessage{Text: msg.Conversation}
		msg.Conversation = nil
	}
	switch {
	case msg.ExtendedTextMessage != nil:
		msg.ExtendedTextMessage.ContextInfo = ci
	case msg.ImageMessage != nil:
		msg.ImageMessage.ContextInfo = ci
	case msg.VideoMessage != nil:
		msg.VideoMessage.ContextInfo = ci
	case msg.AudioMessage != nil:
		msg.AudioMessage.ContextInfo = ci
	case msg.DocumentMessage != nil:
		msg.DocumentMessage.ContextInfo = ci
	case msg.StickerMessage != nil:
		msg.StickerMessage.ContextInfo = ci
	case msg.LocationMessage != nil:
		msg.LocationMessage.ContextInfo = ci
	}
}

func (c *whatsmeowClient) send(ctx context.Context, cli *whatsmeow.Client, to types.JID, raw *waE2E.Message) (*model.Message, error) {
	resp, err := cli.SendMessage(ctx, to, raw)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	own := types.EmptyJID
	if cli.Store.ID != nil {
		own = cli.Store.ID.ToNonAD()
	}
	info := types.MessageInfo{
		MessageSource: types.MessageSource{Chat: to, Sender: own, IsFromMe: true, IsGroup: to.Server == types.GroupServer},
		ID:            resp.ID,
		Timestamp:     resp.Timestamp,
	}
	msg := convertMessage(info, raw)
	c.cache.put(&cachedMessage{msg: msg, info: info, raw: raw})
	out := *msg
	return &out, nil
}

func (c *whatsmeowClient) SendMessage(ctx context.Context, chatID string, content Content, opts SendOptions) (*model.Message, error) {
	cli, err := c.client()
	if err != nil {
		return nil, err
	}
	to, err := helper.ParseChatID(chatID)
	if err != nil {
		return nil, err
	}
	raw, err := c.buildContent(ctx, cli, content, opts)
	if err != nil {
		return nil, err
	}

	ci := &waE2E.ContextInfo{}
	attach := false
	if len(opts.Mentions) > 0 {
		for _, m := range opts.Mentions {
			jid, err := helper.ParseChatID(m)
			if err != nil {
				return nil, err
			}
			ci.MentionedJID = append(ci.MentionedJID, jid.String())
		}
		attach = true
	}
	if opts.QuotedMessageID != "" {
		if quoted, ok := c.cache.get(to.String(), opts.QuotedMessageID); ok {
			ci.StanzaID = proto.String(quoted.info.ID)
			ci.Participant = proto.String(quoted.info.Sender.ToNonAD().String())
			ci.QuotedMessage = quoted.raw
			attach = true
		}
	}
	if attach {
		withContext(raw, ci)
	}
	return c.send(ctx, cli, to, raw)
}

func (c *whatsmeowClient) Reply(ctx context.Context, chatID, messageID string, content Content, opts SendOptions) (*model.Message, error) {
	if _, _, err := c.lookup(chatID, messageID); err != nil {
		return nil, err
	}
	opts.QuotedMessageID = messageID
	return c.SendMessage(ctx, chatID, content, opts)
}

func (c *whatsmeowClient) React(ctx context.Context, chatID, messageID, reaction string) error {
	cli, err := c.client()
	if err != nil {
		return err
	}
	cached, chat, err := c.lookup(chatID, messageID)
	if err != nil {
		return err
	}
	_, err = cli.SendMessage(ctx, chat, cli.BuildReaction(chat, cached.info.Sender, messageID, reaction))
	return err
}

func (c *whatsmeowClient) Forward(ctx context.Context, chatID, messageID, destChatID string) (*model.Message, error) {
	cli, err := c.client()
	if err != nil {
		return nil, err
	}
	cached, _, err := c.lookup(chatID, messageID)
	if err != nil {
		return nil, err
	}
	dest, err := helper.ParseChatID(destChatID)
	if err != nil {
		return nil, err
	}
	raw := proto.Clone(cached.raw).(*waE2E.Message)
	withContext(raw, &waE2E.ContextInfo{IsForwarded: proto.Bool(true), ForwardingScore: proto.Uint32(1)})
	return c.send(ctx, cli, dest, raw)
}

func (c *whatsmeowClient) DeleteMessage(ctx context.Context, chatID, messageID string, everyone bool) error {
	cli, err := c.client()
	if err != nil {
		return err
	}
	cached, chat, err := c.lookup(chatID, messageID)
	if err != nil {
		return err
	}
	if everyone {
		sender := types.EmptyJID
		if !cached.info.IsFromMe {
			sender = cached.info.Sender
		}
		if _, err := cli.SendMessage(ctx, chat, cli.BuildRevoke(chat, sender, messageID)); err != nil {
			return fmt.Errorf("revoke message: %w", err)
		}
	}
	c.cache.remove(chat.String(), messageID)
	return nil
}

func (c *whatsmeowClient) Star(ctx context.Context, chatID, messageID string, starred bool) error {
	cli, err := c.client()
	if err != nil {
		return err
	}
	cached, chat, err := c.lookup(chatID, messageID)
	if err != nil {
		return err
	}
	patch := appstate.BuildStar(chat, cached.info.Sender, messageID, cached.info.IsFromMe, starred)
	if err := cli.SendAppState(ctx, patch); err != nil {
		return fmt.Errorf("star message: %w", err)
	}
	updated := *cached.msg
	updated.IsStarred = starred
	c.cache.put(&cachedMessage{msg: &updated, info: cached.info, raw: cached.raw})
	return nil
}

func (c *whatsmeowClient) Edit(ctx context.Context, chatID, messageID, text string) (*model.Message, error) {
	cli, err := c.client()
	if err != nil {
		return nil, err
	}
	cached, chat, err := c.lookup(chatID, messageID)
	if err != nil {
		return nil, err
	}
	if !cached.info.IsFromMe {
		return nil, fmt.Errorf("only own messages can be edited")
	}
	edit := cli.BuildEdit(chat, messageID, &waE2E.Message{Conversation: proto.String(text)})
	if _, err := cli.SendMessage(ctx, chat, edit); err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	}
	updated := *cached.msg
	updated.Body = text
	c.cache.put(&cachedMessage{msg: &updated, info: cached.info, raw: &waE2E.Message{Conversation: proto.String(text)}})
	return &updated, nil
}

func (c *whatsmeowClient) GetQuotedMessage(ctx context.Context, chatID, messageID string) (*model.Message, error) {
	cached, chat, err := c.lookup(chatID, messageID)
	if err != nil {
		return nil, err
	}
	if !cached.msg.HasQuotedMsg {
		return nil, ErrMessageNotFound
	}
	if quoted, ok := c.cache.get(chat.String(), cached.msg.QuotedMessageID); ok {
		msg := *quoted.msg
		return &msg, nil
	}
	ci := contextInfoOf(cached.raw)
	participant, _ := types.ParseJID(ci.GetParticipant())
	info := types.MessageInfo{
		MessageSource: types.MessageSource{Chat: chat, Sender: participant, IsGroup: chat.Server == types.GroupServer},
		ID:            ci.GetStanzaID(),
	}
	return convertMessage(info, ci.GetQuotedMessage()), nil
}

func (c *whatsmeowClient) GetMentions(ctx context.Context, chatID, messageID string) ([]model.Contact, error) {
	cached, _, err := c.lookup(chatID, messageID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Contact, 0, len(cached.msg.MentionedIDs))
	for _, id := range cached.msg.MentionedIDs {
		ct, err := c.GetContact(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *ct)
	}
	return out, nil
}

func (c *whatsmeowClient) DownloadMedia(ctx context.Context, msg *model.Message) (*model.MessageMedia, error) {
	cli, err := c.client()
	if err != nil {
		return nil, err
	}
	cached, ok := c.cache.get(msg.ChatID, msg.ID)
	if !ok {
		return nil, ErrMessageNotFound
	}
	if !cached.msg.HasMedia {
		return nil, ErrNoMedia
	}
	data, err := cli.DownloadAny(ctx, cached.raw)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	return &model.MessageMedia{
		MimeType: cached.msg.MimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
		FileName: cached.msg.FileName,
		FileSize: len(data),
	}, nil
}

func (c *whatsmeowClient) MarkSeen(ctx context.Context, msg *model.Message) error {
	if msg.FromMe {
		return nil
	}
	cli, err := c.client()
	if err != nil {
		return err
	}
	cached, ok := c.cache.get(msg.ChatID, msg.ID)
	if !ok {
		return ErrMessageNotFound
	}
	return cli.MarkRead(ctx, []types.MessageID{cached.info.ID}, time.Now(), cached.info.Chat, cached.info.Sender)
}

func (c *whatsmeowClient) GetContact(ctx context.Context, contactID string) (*model.Contact, error) {
	cli, err := c.client()
	if err != nil {
		return nil, err
	}
	jid, err := helper.ParseChatID(contactID)
	if err != nil {
		return nil, err
	}
	info, err := cli.Store.Contacts.GetContact(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	ct := toContact(jid, info)
	return &ct, nil
}

func (c *whatsmeowClient) Contacts(ctx context.Context) ([]model.Contact, error) {
	cli, err := c.client()
	if err != nil {
		return nil, err
	}
	all, err := cli.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	out := make([]model.Contact, 0, len(all))
	for jid, info := range all {
		out = append(out, toContact(jid, info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// IsRegisteredUser reports whether number has a WhatsApp account, and its
// chat id when it does.
func (c *whatsmeowClient) IsRegisteredUser(ctx context.Context, number string) (bool, string, error) {
	cli, err := c.client()
	if err != nil {
		return false, "", err
	}
	phone, err := helper.FormatPhoneNumber(number)
	if err != nil {
		return false, "", err
	}
	res, err := cli.IsOnWhatsApp(ctx, []string{"+" + phone})
	if err != nil {
		return false, "", fmt.Errorf("check number: %w", err)
	}
	if len(res) == 0 || !res[0].IsIn {
		return false, "", nil
	}
	return true, res[0].JID.ToNonAD().String(), nil
}

func toContact(jid types.JID, info types.ContactInfo) model.Contact {
	return model.Contact{
		ID:           jid.ToNonAD().String(),
		Number:       jid.User,
		Name:         info.FullName,
		PushName:     info.PushName,
		BusinessName: info.BusinessName,
		IsMyContact:  info.Found && info.FullName != "",
	}
}
