package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"gowa-gateway/internal/model"
	"gowa-gateway/internal/wa"

	"github.com/labstack/echo/v4"
)

type messageRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

func (r messageRequest) fields() map[string]interface{} {
	return map[string]interface{}{"chatId": r.ChatID, "messageId": r.MessageID}
}

func bindMessage(c echo.Context, req interface{}, base *messageRequest) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	if base.ChatID == "" || base.MessageID == "" {
		return errors.New("chatId and messageId are required")
	}
	return nil
}

func invalidRequest(c echo.Context, err error) error {
	return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
}

// POST /message/getClassInfo/:sessionId
// POST /message/getInfo/:sessionId
func (h *ClientHandler) MessageInfo(c echo.Context) error {
	var req messageRequest
	if err := bindMessage(c, &req, &req); err != nil {
		return invalidRequest(c, err)
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	msg, err := client.GetMessage(c.Request().Context(), req.ChatID, req.MessageID)
	if err != nil {
		return clientError(c, err)
	}
	h.notify(c, model.EventMessageInfo, req.fields())
	return SuccessResponse(c, http.StatusOK, "Message", msg)
}

type deleteRequest struct {
	messageRequest
	Everyone bool `json:"everyone"`
}

// POST /message/delete/:sessionId
func (h *ClientHandler) DeleteMessage(c echo.Context) error {
	var req deleteRequest
	if err := bindMessage(c, &req, &req.messageRequest); err != nil {
		return invalidRequest(c, err)
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	if err := client.DeleteMessage(c.Request().Context(), req.ChatID, req.MessageID, req.Everyone); err != nil {
		return clientError(c, err)
	}
	data := req.fields()
	data["deletedForEveryone"] = req.Everyone
	h.notify(c, model.EventMessageDelete, data)
	return SuccessResponse(c, http.StatusOK, "Message deleted", nil)
}

// POST /message/downloadMedia/:sessionId
func (h *ClientHandler) DownloadMedia(c echo.Context) error {
	var req messageRequest
	if err := bindMessage(c, &req, &req); err != nil {
		return invalidRequest(c, err)
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	ctx := c.Request().Context()
	msg, err := client.GetMessage(ctx, req.ChatID, req.MessageID)
	if err != nil {
		return clientError(c, err)
	}
	media, err := client.DownloadMedia(ctx, msg)
	if err != nil {
		return clientError(c, err)
	}
	data := req.fields()
	data["mediaInfo"] = map[string]interface{}{
		"mimetype": media.MimeType,
		"filename": media.FileName,
		"filesize": media.FileSize,
	}
	h.notify(c, model.EventMessageDownloadMedia, data)
	return SuccessResponse(c, http.StatusOK, "Media downloaded", media)
}

// POST /message/downloadMediaAsData/:sessionId
func (h *ClientHandler) DownloadMediaAsData(c echo.Context) error {
	var req messageRequest
	if err := bindMessage(c, &req, &req); err != nil {
		return invalidRequest(c, err)
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	ctx := c.Request().Context()
	msg, err := client.GetMessage(ctx, req.ChatID, req.MessageID)
	if err != nil {
		return clientError(c, err)
	}
	media, err := client.DownloadMedia(ctx, msg)
	if err != nil {
		return clientError(c, err)
	}
	data, err := base64.StdEncoding.DecodeString(media.Data)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Invalid media payload", "INTERNAL_ERROR", err.Error())
	}

	fields := req.fields()
	fields["filename"] = media.FileName
	h.notify(c, model.EventMessageDownloadAsData, fields)

	if media.FileName != "" {
		c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+url.PathEscape(media.FileName))
	}
	mimeType := media.MimeType
	if mimeType == "" {
		mimeType = echo.MIMEOctetStream
	}
	return c.Blob(http.StatusOK, mimeType, data)
}

// POST /message/getContact/:sessionId
func (h *ClientHandler) MessageContact(c echo.Context) error {
	var req messageRequest
	if err := bindMessage(c, &req, &req); err != nil {
		return invalidRequest(c, err)
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	ctx := c.Request().Context()
	msg, err := client.GetMessage(ctx, req.ChatID, req.MessageID)
	if err != nil {
		return clientError(c, err)
	}
	sender := msg.Author
	if sender == "" {
		sender = msg.From
	}
	contact, err := client.GetContact(ctx, sender)
	if err != nil {
		return clientError(c, err)
	}
	data := req.fields()
	data["contact"] = contact.ID
	h.notify(c, model.EventMessageContact, data)
	return SuccessResponse(c, http.StatusOK, "Contact", contact)
}

type forwardRequest struct {
	messageRequest
	DestinationChatID string `json:"destinationChatId"`
}

// POST /message/forward/:sessionId
func (h *ClientHandler) Forward(c echo.Context) error {
	var req forwardRequest
	if err := bindMessage(c, &req, &req.messageRequest); err != nil {
		return invalidRequest(c, err)
	}
	if req.DestinationChatID == "" {
		return ErrorResponse(c, http.StatusBadRequest, "destinationChatId is required", "INVALID_REQUEST", "")
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	msg, err := client.Forward(c.Request().Context(), req.ChatID, req.MessageID, req.DestinationChatID)
	if err != nil {
		return clientError(c, err)
	}
	data := req.fields()
	data["destinationChatId"] = req.DestinationChatID
	h.notify(c, model.EventMessageForward, data)
	return SuccessResponse(c, http.StatusOK, "Message forwarded", msg)
}

// POST /message/getMentions/:sessionId
func (h *ClientHandler) Mentions(c echo.Context) error {
	var req messageRequest
	if err := bindMessage(c, &req, &req); err != nil {
		return invalidRequest(c, err)
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	contacts, err := client.GetMentions(c.Request().Context(), req.ChatID, req.MessageID)
	if err != nil {
		return clientError(c, err)
	}
	data := req.fields()
	data["mentions"] = len(contacts)
	h.notify(c, model.EventMessageMentions, data)
	return SuccessResponse(c, http.StatusOK, "Mentions", contacts)
}

// POST /message/getQuotedMessage/:sessionId
func (h *ClientHandler) QuotedMessage(c echo.Context) error {
	var req messageRequest
	if err := bindMessage(c, &req, &req); err != nil {
		return invalidRequest(c, err)
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	quoted, err := client.GetQuotedMessage(c.Request().Context(), req.ChatID, req.MessageID)
	if err != nil {
		return clientError(c, err)
	}
	data := req.fields()
	data["quotedMessageId"] = quoted.ID
	h.notify(c, model.EventMessageQuoted, data)
	return SuccessResponse(c, http.StatusOK, "Quoted message", quoted)
}

type reactRequest struct {
	messageRequest
	Reaction string `json:"reaction"`
}

// POST /message/react/:sessionId
func (h *ClientHandler) React(c echo.Context) error {
	var req reactRequest
	if err := bindMessage(c, &req, &req.messageRequest); err != nil {
		return invalidRequest(c, err)
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	if err := client.React(c.Request().Context(), req.ChatID, req.MessageID, req.Reaction); err != nil {
		return clientError(c, err)
	}
	data := req.fields()
	data["reaction"] = req.Reaction
	h.notify(c, model.EventMessageReact, data)
	return SuccessResponse(c, http.StatusOK, "Reaction sent", nil)
}

type replyRequest struct {
	messageRequest
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content"`
	Options     wa.SendOptions  `json:"options"`
}

// POST /message/reply/:sessionId
func (h *ClientHandler) Reply(c echo.Context) error {
	var req replyRequest
	if err := bindMessage(c, &req, &req.messageRequest); err != nil {
		return invalidRequest(c, err)
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	ctx := c.Request().Context()
	content, err := h.parseContent(ctx, req.ContentType, req.Content)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid message content", "INVALID_CONTENT", err.Error())
	}
	msg, err := client.Reply(ctx, req.ChatID, req.MessageID, content, req.Options)
	if err != nil {
		return clientError(c, err)
	}
	data := req.fields()
	data["contentType"] = req.ContentType
	data["replyId"] = msg.ID
	h.notify(c, model.EventMessageReply, data)
	return SuccessResponse(c, http.StatusOK, "Reply sent", msg)
}

// POST /message/star/:sessionId
func (h *ClientHandler) Star(c echo.Context) error {
	return h.setStar(c, true)
}

// POST /message/unstar/:sessionId
func (h *ClientHandler) Unstar(c echo.Context) error {
	return h.setStar(c, false)
}

func (h *ClientHandler) setStar(c echo.Context, starred bool) error {
	var req messageRequest
	if err := bindMessage(c, &req, &req); err != nil {
		return invalidRequest(c, err)
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	if err := client.Star(c.Request().Context(), req.ChatID, req.MessageID, starred); err != nil {
		return clientError(c, err)
	}
	evt, msg := model.EventMessageStar, "Message starred"
	if !starred {
		evt, msg = model.EventMessageUnstar, "Message unstarred"
	}
	h.notify(c, evt, req.fields())
	return SuccessResponse(c, http.StatusOK, msg, nil)
}

type editRequest struct {
	messageRequest
	Content string `json:"content"`
}

// POST /message/edit/:sessionId
func (h *ClientHandler) Edit(c echo.Context) error {
	var req editRequest
	if err := bindMessage(c, &req, &req.messageRequest); err != nil {
		return invalidRequest(c, err)
	}
	if req.Content == "" {
		return ErrorResponse(c, http.StatusBadRequest, "content is required", "INVALID_REQUEST", "")
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	msg, err := client.Edit(c.Request().Context(), req.ChatID, req.MessageID, req.Content)
	if err != nil {
		return clientError(c, err)
	}
	data := req.fields()
	data["newBody"] = req.Content
	h.notify(c, model.EventMessageEdit, data)
	return SuccessResponse(c, http.StatusOK, "Message edited", msg)
}
