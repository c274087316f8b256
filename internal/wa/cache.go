package wa

import (
	"sync"

	"gowa-gateway/internal/model"

	"github.com/elliotchance/orderedmap/v3"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
)

const defaultMessageCacheSize = 1000

type cachedMessage struct {
	msg  *model.Message
	info types.MessageInfo
	raw  *waE2E.Message
}

// messageCache keeps the most recent messages of a session so they can be
// addressed by (chat, id). Oldest entries are evicted first.
type messageCache struct {
	mu      sync.Mutex
	size    int
	entries *orderedmap.OrderedMap[string, *cachedMessage]
}

func newMessageCache(size int) *messageCache {
	if size <= 0 {
		size = defaultMessageCacheSize
	}
	return &messageCache{
		size:    size,
		entries: orderedmap.NewOrderedMap[string, *cachedMessage](),
	}
}

func cacheKey(chatID, messageID string) string {
	return chatID + "/" + messageID
}

func (c *messageCache) put(entry *cachedMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(entry.msg.ChatID, entry.msg.ID)
	c.entries.Delete(key)
	c.entries.Set(key, entry)
	for c.entries.Len() > c.size {
		c.entries.Delete(c.entries.Front().Key)
	}
}

func (c *messageCache) get(chatID, messageID string) (*cachedMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(cacheKey(chatID, messageID))
}

// find looks a message up by id alone, for receipts addressed to another form of the chat jid.
func (c *messageCache) find(messageID string) (*cachedMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.entries.Back(); el != nil; el = el.Prev() {
		if el.Value.msg.ID == messageID {
			return el.Value, true
		}
	}
	return nil, false
}

func (c *messageCache) remove(chatID, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Delete(cacheKey(chatID, messageID))
}
