package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gowa-gateway/internal/helper"
	"gowa-gateway/internal/model"
	"gowa-gateway/internal/service"
	"gowa-gateway/internal/wa"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ClientHandler serves client-level and message-level operations of a live session.
type ClientHandler struct {
	lifecycle         *service.Lifecycle
	httpClient        *http.Client
	maxAttachmentSize int64
	log               zerolog.Logger
}

func NewClientHandler(lifecycle *service.Lifecycle, maxAttachmentSize int64, log zerolog.Logger) *ClientHandler {
	return &ClientHandler{
		lifecycle:         lifecycle,
		httpClient:        &http.Client{Timeout: 30 * time.Second},
		maxAttachmentSize: maxAttachmentSize,
		log:               log.With().Str("component", "client_handler").Logger(),
	}
}

func (h *ClientHandler) client(c echo.Context) (wa.Client, error) {
	sess, err := h.lifecycle.Session(c.Param("sessionId"))
	if err != nil {
		return nil, err
	}
	return sess.Client, nil
}

// notify sends a follow-up event for a completed operation.
func (h *ClientHandler) notify(c echo.Context, t model.EventType, data map[string]interface{}) {
	id := c.Param("sessionId")
	data["sessionId"] = id
	h.lifecycle.Bridge().Dispatch(id, t, data)
}

type locationContent struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
	Address     string  `json:"address"`
}

var errInvalidContentType = errors.New("invalid contentType")

// parseContent decodes a request body content according to contentType:
// string, MessageMedia, MessageMediaFromURL or Location.
func (h *ClientHandler) parseContent(ctx context.Context, contentType string, raw json.RawMessage) (wa.Content, error) {
	switch contentType {
	case "string":
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return wa.Content{}, fmt.Errorf("content must be a string: %w", err)
		}
		return wa.Content{Text: text}, nil
	case "MessageMedia":
		var media model.MessageMedia
		if err := json.Unmarshal(raw, &media); err != nil {
			return wa.Content{}, fmt.Errorf("content must be a MessageMedia object: %w", err)
		}
		if media.MimeType == "" || media.Data == "" {
			return wa.Content{}, errors.New("MessageMedia requires mimetype and data")
		}
		return wa.Content{Media: &media}, nil
	case "MessageMediaFromURL":
		var url string
		if err := json.Unmarshal(raw, &url); err != nil {
			return wa.Content{}, fmt.Errorf("content must be a URL string: %w", err)
		}
		media, err := helper.FetchMedia(ctx, h.httpClient, url, h.maxAttachmentSize)
		if err != nil {
			return wa.Content{}, err
		}
		return wa.Content{Media: media}, nil
	case "Location":
		var loc locationContent
		if err := json.Unmarshal(raw, &loc); err != nil {
			return wa.Content{}, fmt.Errorf("content must be a Location object: %w", err)
		}
		return wa.Content{Location: &wa.Location{
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Name:      loc.Description,
			Address:   loc.Address,
		}}, nil
	default:
		return wa.Content{}, errInvalidContentType
	}
}

type sendMessageRequest struct {
	ChatID      string          `json:"chatId"`
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content"`
	Options     wa.SendOptions  `json:"options"`
}

// POST /client/sendMessage/:sessionId
func (h *ClientHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if req.ChatID == "" {
		return ErrorResponse(c, http.StatusBadRequest, "chatId is required", "INVALID_REQUEST", "")
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
	msg, err := client.SendMessage(ctx, req.ChatID, content, req.Options)
	if err != nil {
		return clientError(c, err)
	}

	h.notify(c, model.EventMessageSend, map[string]interface{}{
		"to":          req.ChatID,
		"contentType": req.ContentType,
		"messageId":   msg.ID,
	})
	return SuccessResponse(c, http.StatusOK, "Message sent", msg)
}

// GET /client/getClassInfo/:sessionId
func (h *ClientHandler) ClassInfo(c echo.Context) error {
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	info, err := client.Info(c.Request().Context())
	if err != nil {
		return clientError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Session info", info)
}

// GET /client/getContacts/:sessionId
func (h *ClientHandler) Contacts(c echo.Context) error {
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	contacts, err := client.Contacts(c.Request().Context())
	if err != nil {
		return clientError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Contacts", map[string]interface{}{
		"contacts": contacts,
		"total":    len(contacts),
	})
}

// GET /client/exportContacts/:sessionId
func (h *ClientHandler) ExportContacts(c echo.Context) error {
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	contacts, err := client.Contacts(c.Request().Context())
	if err != nil {
		return clientError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=contacts-%s.xlsx", c.Param("sessionId")))
	res.WriteHeader(http.StatusOK)
	if err := helper.WriteContactsXLSX(res, contacts); err != nil {
		h.log.Error().Err(err).Str("session_id", c.Param("sessionId")).Msg("Failed to write contacts export")
	}
	return nil
}

type contactRequest struct {
	ContactID string `json:"contactId"`
}

// POST /client/getContactById/:sessionId
func (h *ClientHandler) ContactByID(c echo.Context) error {
	var req contactRequest
	if err := c.Bind(&req); err != nil || req.ContactID == "" {
		return ErrorResponse(c, http.StatusBadRequest, "contactId is required", "INVALID_REQUEST", "")
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	contact, err := client.GetContact(c.Request().Context(), req.ContactID)
	if err != nil {
		return clientError(c, err)
	}
	return SuccessResponse(c, http.StatusOK, "Contact", contact)
}

type numberRequest struct {
	Number string `json:"number"`
}

// POST /client/isRegisteredUser/:sessionId
func (h *ClientHandler) IsRegisteredUser(c echo.Context) error {
	var req numberRequest
	if err := c.Bind(&req); err != nil || req.Number == "" {
		return ErrorResponse(c, http.StatusBadRequest, "number is required", "INVALID_REQUEST", "")
	}
	phone, err := helper.FormatPhoneNumber(req.Number)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid phone number", "INVALID_PHONE", err.Error())
	}
	client, err := h.client(c)
	if err != nil {
		return clientError(c, err)
	}
	registered, chatID, err := client.IsRegisteredUser(c.Request().Context(), phone)
	if err != nil {
		return clientError(c, err)
	}
	if registered {
		phone = helper.ExtractPhoneFromJID(chatID)
	}
	return SuccessResponse(c, http.StatusOK, "Phone number checked", map[string]interface{}{
		"number":       phone,
		"isRegistered": registered,
		"chatId":       chatID,
	})
}
