package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/types"
)

func TestParseChatID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want types.JID
	}{
		{"628123456789@c.us", types.NewJID("628123456789", types.DefaultUserServer)},
		{"628123456789@s.whatsapp.net", types.NewJID("628123456789", types.DefaultUserServer)},
		{"120363025246125486@g.us", types.NewJID("120363025246125486", types.GroupServer)},
		{"+62 812-3456-789", types.NewJID("628123456789", types.DefaultUserServer)},
	}
	for _, tt := range tests {
		got, err := ParseChatID(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseChatIDRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "abc", "12"} {
		_, err := ParseChatID(in)
		assert.Error(t, err, in)
	}
}

func TestExtractPhoneFromJID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "6285148107612", ExtractPhoneFromJID("6285148107612:43@s.whatsapp.net"))
	assert.Equal(t, "6285148107612", ExtractPhoneFromJID("6285148107612@s.whatsapp.net"))
	assert.Equal(t, "6285148107612", ExtractPhoneFromJID("6285148107612"))
}
