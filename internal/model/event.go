package model

import "time"

// EventType names an event emitted by a session's client.
type EventType string

const (
	EventAuthFailure           EventType = "auth_failure"
	EventAuthenticated         EventType = "authenticated"
	EventCall                  EventType = "call"
	EventChangeState           EventType = "change_state"
	EventDisconnected          EventType = "disconnected"
	EventGroupJoin             EventType = "group_join"
	EventGroupLeave            EventType = "group_leave"
	EventGroupUpdate           EventType = "group_update"
	EventMedia                 EventType = "media"
	EventMessage               EventType = "message"
	EventMessageAck            EventType = "message_ack"
	EventMessageCreate         EventType = "message_create"
	EventMessageEdit           EventType = "message_edit"
	EventMessageReaction       EventType = "message_reaction"
	EventMessageRevokeEveryone EventType = "message_revoke_everyone"
	EventQR                    EventType = "qr"
	EventReady                 EventType = "ready"
)

// Follow-up events reported after a successful REST message operation.
const (
	EventMessageContact        EventType = "message_contact"
	EventMessageDelete         EventType = "message_delete"
	EventMessageDownloadAsData EventType = "message_download_as_data"
	EventMessageDownloadMedia  EventType = "message_download_media"
	EventMessageForward        EventType = "message_forward"
	EventMessageInfo           EventType = "message_info"
	EventMessageMentions       EventType = "message_mentions"
	EventMessageQuoted         EventType = "message_quoted"
	EventMessageReact          EventType = "message_react"
	EventMessageReply          EventType = "message_reply"
	EventMessageSend           EventType = "message_send"
	EventMessageStar           EventType = "message_star"
	EventMessageUnstar         EventType = "message_unstar"
)

// ClientEventTypes lists every event a client can emit on its own.
// EventMedia is derived by the bridge and is not part of this list.
var ClientEventTypes = []EventType{
	EventAuthFailure,
	EventAuthenticated,
	EventCall,
	EventChangeState,
	EventDisconnected,
	EventGroupJoin,
	EventGroupLeave,
	EventGroupUpdate,
	EventMessage,
	EventMessageAck,
	EventMessageCreate,
	EventMessageEdit,
	EventMessageReaction,
	EventMessageRevokeEveryone,
	EventQR,
	EventReady,
}

// Event is a tagged payload emitted asynchronously by a client.
// Message is set for message-class events.
type Event struct {
	Type      EventType
	SessionID string
	Data      map[string]any
	Message   *Message
}

// Message acknowledgement levels
const (
	AckError   = -1
	AckPending = 0
	AckServer  = 1
	AckDevice  = 2
	AckRead    = 3
	AckPlayed  = 4
)

type Message struct {
	ID              string    `json:"id"`
	ChatID          string    `json:"chatId"`
	From            string    `json:"from"`
	To              string    `json:"to,omitempty"`
	Author          string    `json:"author,omitempty"`
	FromMe          bool      `json:"fromMe"`
	IsNewMsg        bool      `json:"isNewMsg"`
	IsForwarded     bool      `json:"isForwarded"`
	IsStarred       bool      `json:"isStarred"`
	Timestamp       time.Time `json:"timestamp"`
	Type            string    `json:"type"`
	Body            string    `json:"body"`
	NotifyName      string    `json:"notifyName,omitempty"`
	HasMedia        bool      `json:"hasMedia"`
	MediaSize       uint64    `json:"mediaSize,omitempty"`
	MimeType        string    `json:"mimetype,omitempty"`
	FileName        string    `json:"filename,omitempty"`
	HasQuotedMsg    bool      `json:"hasQuotedMsg"`
	QuotedMessageID string    `json:"quotedMsgId,omitempty"`
	MentionedIDs    []string  `json:"mentionedIds,omitempty"`
	Reaction        string    `json:"reaction,omitempty"`
	Ack             int       `json:"ack"`
}

// MessageMedia is a downloaded attachment. Data is base64 encoded.
type MessageMedia struct {
	MimeType string `json:"mimetype"`
	Data     string `json:"data"`
	FileName string `json:"filename,omitempty"`
	FileSize int    `json:"filesize,omitempty"`
}
