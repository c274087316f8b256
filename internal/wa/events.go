package wa

import (
	"fmt"

	"gowa-gateway/internal/model"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

func (c *whatsmeowClient) emit(t model.EventType, data map[string]any) {
	c.listeners.emit(model.Event{Type: t, Data: data})
}

func (c *whatsmeowClient) setConflict(v bool) {
	c.mu.Lock()
	c.conflict = v
	c.mu.Unlock()
}

func (c *whatsmeowClient) handleEvent(raw interface{}) {
	switch evt := raw.(type) {
	case *events.Connected:
		c.setConflict(false)
		c.emit(model.EventAuthenticated, map[string]any{})
		c.emit(model.EventChangeState, map[string]any{"state": model.StateConnected})
		c.emit(model.EventReady, map[string]any{})

	case *events.PairSuccess:
		c.log.Info().Str("jid", evt.ID.String()).Str("platform", evt.Platform).Msg("Paired")

	case *events.Disconnected:
		c.emit(model.EventDisconnected, map[string]any{"reason": "DISCONNECTED"})

	case *events.LoggedOut:
		c.emit(model.EventDisconnected, map[string]any{"reason": "LOGOUT"})

	case *events.StreamReplaced:
		c.setConflict(true)
		c.emit(model.EventChangeState, map[string]any{"state": model.StateConflict})

	case *events.ConnectFailure:
		if evt.Reason.IsLoggedOut() {
			c.emit(model.EventAuthFailure, map[string]any{"msg": evt.Message})
			return
		}
		c.listeners.fault(fmt.Errorf("connect failure %d: %s", int(evt.Reason), evt.Message))

	case *events.StreamError:
		c.listeners.fault(fmt.Errorf("stream error: %s", evt.Code))

	case *events.Message:
		c.handleMessage(evt)

	case *events.Receipt:
		c.handleReceipt(evt)

	case *events.CallOffer:
		c.emit(model.EventCall, map[string]any{"call": map[string]any{
			"id":        evt.CallID,
			"from":      evt.From.ToNonAD().String(),
			"timestamp": evt.Timestamp,
			"fromMe":    false,
		}})

	case *events.GroupInfo:
		c.handleGroupInfo(evt)
	}
}

func (c *whatsmeowClient) handleMessage(evt *events.Message) {
	msg := convertMessage(evt.Info, evt.Message)

	if reaction := evt.Message.GetReactionMessage(); reaction != nil {
		c.emit(model.EventMessageReaction, map[string]any{"reaction": map[string]any{
			"id":        evt.Info.ID,
			"msgId":     reaction.GetKey().GetID(),
			"reaction":  reaction.GetText(),
			"senderId":  evt.Info.Sender.ToNonAD().String(),
			"timestamp": evt.Info.Timestamp,
		}})
		return
	}

	if protocol := evt.Message.GetProtocolMessage(); protocol != nil {
		targetID := protocol.GetKey().GetID()
		switch protocol.GetType() {
		case waE2E.ProtocolMessage_REVOKE:
			data := map[string]any{"message": msg, "revokedMsgId": targetID}
			if prev, ok := c.cache.get(msg.ChatID, targetID); ok {
				data["revoked_msg"] = prev.msg
			}
			c.emit(model.EventMessageRevokeEveryone, data)
		case waE2E.ProtocolMessage_MESSAGE_EDIT:
			newBody := messageBody(protocol.GetEditedMessage())
			data := map[string]any{"message": msg, "editedMsgId": targetID, "newBody": newBody}
			if prev, ok := c.cache.get(msg.ChatID, targetID); ok {
				data["prevBody"] = prev.msg.Body
				edited := *prev.msg
				edited.Body = newBody
				c.cache.put(&cachedMessage{msg: &edited, info: prev.info, raw: prev.raw})
			}
			c.emit(model.EventMessageEdit, data)
		}
		return
	}

	msg.IsNewMsg = true
	c.cache.put(&cachedMessage{msg: msg, info: evt.Info, raw: evt.Message})

	c.listeners.emit(model.Event{Type: model.EventMessageCreate, Data: map[string]any{"message": msg}, Message: msg})
	if !msg.FromMe {
		c.listeners.emit(model.Event{Type: model.EventMessage, Data: map[string]any{"message": msg}, Message: msg})
	}
}

func receiptAck(t types.ReceiptType) (int, bool) {
	switch t {
	case types.ReceiptTypeDelivered:
		return model.AckDevice, true
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		return model.AckRead, true
	case types.ReceiptTypePlayed:
		return model.AckPlayed, true
	case types.ReceiptTypeServerError:
		return model.AckError, true
	default:
		return 0, false
	}
}

func (c *whatsmeowClient) handleReceipt(evt *events.Receipt) {
	ack, ok := receiptAck(evt.Type)
	if !ok {
		return
	}
	for _, id := range evt.MessageIDs {
		var msg model.Message
		cached, found := c.cache.get(evt.Chat.String(), id)
		if !found {
			cached, found = c.cache.find(id)
		}
		if found {
			msg = *cached.msg
		} else {
			msg = model.Message{ID: id, ChatID: evt.Chat.String(), To: evt.Chat.String(), FromMe: !evt.IsFromMe, Timestamp: evt.Timestamp}
		}
		msg.Ack = ack
		c.listeners.emit(model.Event{
			Type:    model.EventMessageAck,
			Data:    map[string]any{"message": &msg, "ack": ack},
			Message: &msg,
		})
	}
}

func (c *whatsmeowClient) handleGroupInfo(evt *events.GroupInfo) {
	base := func() map[string]any {
		data := map[string]any{"chatId": evt.JID.String(), "timestamp": evt.Timestamp}
		if evt.Sender != nil {
			data["author"] = evt.Sender.ToNonAD().String()
		}
		return data
	}
	if len(evt.Join) > 0 {
		data := base()
		data["recipientIds"] = jidStrings(evt.Join)
		c.emit(model.EventGroupJoin, map[string]any{"notification": data})
	}
	if len(evt.Leave) > 0 {
		data := base()
		data["recipientIds"] = jidStrings(evt.Leave)
		c.emit(model.EventGroupLeave, map[string]any{"notification": data})
	}
	if evt.Name != nil || evt.Topic != nil {
		data := base()
		if evt.Name != nil {
			data["type"] = "subject"
			data["body"] = evt.Name.Name
		} else {
			data["type"] = "description"
			data["body"] = evt.Topic.Topic
		}
		c.emit(model.EventGroupUpdate, map[string]any{"notification": data})
	}
}

func jidStrings(jids []types.JID) []string {
	out := make([]string, 0, len(jids))
	for _, j := range jids {
		out = append(out, j.ToNonAD().String())
	}
	return out
}

type mediaMessage interface {
	GetMimetype() string
	GetFileLength() uint64
}

func mediaOf(raw *waE2E.Message) (mediaMessage, string) {
	switch {
	case raw.GetImageMessage() != nil:
		return raw.GetImageMessage(), "image"
	case raw.GetVideoMessage() != nil:
		return raw.GetVideoMessage(), "video"
	case raw.GetAudioMessage() != nil:
		if raw.GetAudioMessage().GetPTT() {
			return raw.GetAudioMessage(), "ptt"
		}
		return raw.GetAudioMessage(), "audio"
	case raw.GetDocumentMessage() != nil:
		return raw.GetDocumentMessage(), "document"
	case raw.GetStickerMessage() != nil:
		return raw.GetStickerMessage(), "sticker"
	}
	return nil, ""
}

func messageType(raw *waE2E.Message) string {
	if _, t := mediaOf(raw); t != "" {
		return t
	}
	switch {
	case raw.GetConversation() != "" || raw.GetExtendedTextMessage() != nil:
		return "chat"
	case raw.GetLocationMessage() != nil:
		return "location"
	case raw.GetContactMessage() != nil:
		return "vcard"
	case raw.GetReactionMessage() != nil:
		return "reaction"
	case raw.GetPollCreationMessage() != nil:
		return "poll_creation"
	case raw.GetProtocolMessage() != nil:
		return "protocol"
	}
	return "unknown"
}

func messageBody(raw *waE2E.Message) string {
	switch {
	case raw.GetConversation() != "":
		return raw.GetConversation()
	case raw.GetExtendedTextMessage() != nil:
		return raw.GetExtendedTextMessage().GetText()
	case raw.GetImageMessage() != nil:
		return raw.GetImageMessage().GetCaption()
	case raw.GetVideoMessage() != nil:
		return raw.GetVideoMessage().GetCaption()
	case raw.GetDocumentMessage() != nil:
		return raw.GetDocumentMessage().GetCaption()
	case raw.GetLocationMessage() != nil:
		return raw.GetLocationMessage().GetName()
	}
	return ""
}

func contextInfoOf(raw *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case raw.GetExtendedTextMessage() != nil:
		return raw.GetExtendedTextMessage().GetContextInfo()
	case raw.GetImageMessage() != nil:
		return raw.GetImageMessage().GetContextInfo()
	case raw.GetVideoMessage() != nil:
		return raw.GetVideoMessage().GetContextInfo()
	case raw.GetAudioMessage() != nil:
		return raw.GetAudioMessage().GetContextInfo()
	case raw.GetDocumentMessage() != nil:
		return raw.GetDocumentMessage().GetContextInfo()
	case raw.GetStickerMessage() != nil:
		return raw.GetStickerMessage().GetContextInfo()
	case raw.GetLocationMessage() != nil:
		return raw.GetLocationMessage().GetContextInfo()
	}
	return nil
}

func convertMessage(info types.MessageInfo, raw *waE2E.Message) *model.Message {
	sender := info.Sender.ToNonAD().String()
	msg := &model.Message{
		ID:         info.ID,
		ChatID:     info.Chat.String(),
		From:       sender,
		FromMe:     info.IsFromMe,
		Timestamp:  info.Timestamp,
		NotifyName: info.PushName,
		Type:       messageType(raw),
		Body:       messageBody(raw),
		Ack:        model.AckServer,
	}
	if info.IsGroup {
		msg.From = info.Chat.String()
		msg.Author = sender
	}
	if info.IsFromMe {
		msg.From = sender
		msg.To = info.Chat.String()
	}

	if media, _ := mediaOf(raw); media != nil {
		msg.HasMedia = true
		msg.MediaSize = media.GetFileLength()
		msg.MimeType = media.GetMimetype()
		if doc := raw.GetDocumentMessage(); doc != nil {
			msg.FileName = doc.GetFileName()
		}
	}

	if ci := contextInfoOf(raw); ci != nil {
		msg.IsForwarded = ci.GetIsForwarded()
		msg.MentionedIDs = ci.GetMentionedJID()
		if ci.GetStanzaID() != "" && ci.GetQuotedMessage() != nil {
			msg.HasQuotedMsg = true
			msg.QuotedMessageID = ci.GetStanzaID()
		}
	}
	return msg
}
