package model

// State is the raw connection state reported by the underlying client.
type State string

const (
	StateConnected  State = "CONNECTED"
	StateOpening    State = "OPENING"
	StateUnpaired   State = "UNPAIRED"
	StateConflict   State = "CONFLICT"
	StateUnlaunched State = "UNLAUNCHED"
)

// Validation messages
const (
	MsgSessionConnected    = "session_connected"
	MsgSessionNotConnected = "session_not_connected"
	MsgBrowserTabClosed    = "browser tab closed"
	MsgSessionClosed       = "session closed"
)

type SetupResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ValidationResult struct {
	Success bool   `json:"success"`
	State   State  `json:"state"`
	Message string `json:"message"`
}

// NotConnected reports whether validation positively observed a session
// that exists but is not in the CONNECTED state.
func (r ValidationResult) NotConnected() bool {
	return !r.Success && r.Message == MsgSessionNotConnected
}

// ClientInfo describes the account a session is logged in as.
type ClientInfo struct {
	WID      string `json:"wid"`
	PushName string `json:"pushname"`
	Platform string `json:"platform"`
}

type Contact struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	Name         string `json:"name,omitempty"`
	PushName     string `json:"pushname,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
	IsMyContact  bool   `json:"isMyContact"`
}
