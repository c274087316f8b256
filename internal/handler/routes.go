package handler

import (
	"fmt"
	"net/http"

	customMiddleware "gowa-gateway/internal/middleware"
	"gowa-gateway/internal/service"
	"gowa-gateway/internal/ws"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type RouteOptions struct {
	Lifecycle         *service.Lifecycle
	Hub               *ws.Hub
	APIKey            string
	JWTSecret         string
	MaxAttachmentSize int64
	Log               zerolog.Logger
}

// RegisterRoutes mounts the REST and websocket API on e.
func RegisterRoutes(e *echo.Echo, opts RouteOptions) {
	sessions := NewSessionHandler(opts.Lifecycle, opts.Log)
	clients := NewClientHandler(opts.Lifecycle, opts.MaxAttachmentSize, opts.Log)

	e.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "pong",
		})
	})

	auth := customMiddleware.APIKeyAuth(opts.APIKey, opts.JWTSecret)
	named := customMiddleware.SessionNameValidation()
	live := customMiddleware.SessionValidation(opts.Lifecycle)

	e.GET("/ws/:sessionId", WebSocketHandler(opts.Hub, opts.Log), auth, named)

	session := e.Group("/session", auth)
	session.GET("/start/:sessionId", sessions.Start, named)
	session.GET("/status/:sessionId", sessions.Status, named)
	session.GET("/qr/:sessionId", sessions.QR, named)
	session.GET("/restart/:sessionId", sessions.Restart, named)
	session.GET("/terminate/:sessionId", sessions.Terminate, named)
	session.GET("/terminateInactive", sessions.TerminateInactive)
	session.GET("/terminateAll", sessions.TerminateAll)
	session.GET("/list", sessions.List)

	client := e.Group("/client", auth)
	client.POST("/sendMessage/:sessionId", clients.SendMessage, named, live)
	client.GET("/getClassInfo/:sessionId", clients.ClassInfo, named, live)
	client.GET("/getContacts/:sessionId", clients.Contacts, named, live)
	client.GET("/exportContacts/:sessionId", clients.ExportContacts, named, live)
	client.POST("/getContactById/:sessionId", clients.ContactByID, named, live)
	client.POST("/isRegisteredUser/:sessionId", clients.IsRegisteredUser, named, live)

	message := e.Group("/message", auth)
	message.POST("/getClassInfo/:sessionId", clients.MessageInfo, named, live)
	message.POST("/getInfo/:sessionId", clients.MessageInfo, named, live)
	message.POST("/getContact/:sessionId", clients.MessageContact, named, live)
	message.POST("/downloadMediaAsData/:sessionId", clients.DownloadMediaAsData, named, live)
	message.POST("/delete/:sessionId", clients.DeleteMessage, named, live)
	message.POST("/downloadMedia/:sessionId", clients.DownloadMedia, named, live)
	message.POST("/forward/:sessionId", clients.Forward, named, live)
	message.POST("/getMentions/:sessionId", clients.Mentions, named, live)
	message.POST("/getQuotedMessage/:sessionId", clients.QuotedMessage, named, live)
	message.POST("/react/:sessionId", clients.React, named, live)
	message.POST("/reply/:sessionId", clients.Reply, named, live)
	message.POST("/star/:sessionId", clients.Star, named, live)
	message.POST("/unstar/:sessionId", clients.Unstar, named, live)
	message.POST("/edit/:sessionId", clients.Edit, named, live)
}

// HTTPErrorHandler renders echo errors in the API's response envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := "Internal Server Error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		message = fmt.Sprintf("%v", he.Message)
	}

	response := map[string]interface{}{
		"success": false,
		"message": message,
		"error":   map[string]string{"code": http.StatusText(code)},
	}
	switch code {
	case http.StatusMethodNotAllowed:
		response["message"] = "Method not allowed for this endpoint"
	case http.StatusNotFound:
		response["message"] = "Endpoint not found"
	case http.StatusTooManyRequests:
		response["message"] = "You can't make so many requests"
	}
	_ = c.JSON(code, response)
}
