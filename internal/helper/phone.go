package helper

import (
	"fmt"
	"regexp"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

var (
	validPhoneFormat = regexp.MustCompile(`^[\d\s\+\-\(\)]+$`)
	nonDigits        = regexp.MustCompile(`[^\d]`)
)

// ParseChatID accepts a chat id in any of the forms clients send us:
// "628123@c.us", "628123@s.whatsapp.net", "1203...@g.us" or a bare phone
// number, and returns the protocol JID.
func ParseChatID(chatID string) (types.JID, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return types.JID{}, fmt.Errorf("chat id is empty")
	}

	if strings.Contains(chatID, "@") {
		user, server, _ := strings.Cut(chatID, "@")
		if server == "c.us" {
			chatID = user + "@" + types.DefaultUserServer
		}
		jid, err := types.ParseJID(chatID)
		if err != nil {
			return types.JID{}, fmt.Errorf("invalid chat id %q: %w", chatID, err)
		}
		return jid, nil
	}

	phone, err := FormatPhoneNumber(chatID)
	if err != nil {
		return types.JID{}, err
	}
	return types.NewJID(phone, types.DefaultUserServer), nil
}

// FormatPhoneNumber strips formatting characters from a phone number.
func FormatPhoneNumber(phone string) (string, error) {
	if !validPhoneFormat.MatchString(phone) {
		return "", fmt.Errorf("invalid phone number format: contains invalid characters")
	}
	cleaned := nonDigits.ReplaceAllString(phone, "")
	if len(cleaned) < 7 || len(cleaned) > 15 {
		return "", fmt.Errorf("invalid phone number length")
	}
	return cleaned, nil
}

func ExtractPhoneFromJID(jid string) string {
	// "6285148107612:43@s.whatsapp.net" -> "6285148107612"
	beforeAt, _, _ := strings.Cut(jid, "@")
	user, _, _ := strings.Cut(beforeAt, ":")
	return user
}
