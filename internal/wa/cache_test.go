package wa

import (
	"fmt"
	"testing"

	"gowa-gateway/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cached(chat, id string) *cachedMessage {
	return &cachedMessage{msg: &model.Message{ID: id, ChatID: chat}}
}

func TestMessageCacheEvictsOldest(t *testing.T) {
	t.Parallel()

	c := newMessageCache(3)
	for i := 0; i < 5; i++ {
		c.put(cached("chat", fmt.Sprintf("m%d", i)))
	}

	_, ok := c.get("chat", "m0")
	assert.False(t, ok)
	_, ok = c.get("chat", "m1")
	assert.False(t, ok)
	for _, id := range []string{"m2", "m3", "m4"} {
		_, ok := c.get("chat", id)
		assert.True(t, ok, id)
	}
}

func TestMessageCachePutRefreshesPosition(t *testing.T) {
	t.Parallel()

	c := newMessageCache(2)
	c.put(cached("chat", "a"))
	c.put(cached("chat", "b"))
	c.put(cached("chat", "a"))
	c.put(cached("chat", "c"))

	_, ok := c.get("chat", "a")
	assert.True(t, ok)
	_, ok = c.get("chat", "b")
	assert.False(t, ok)
}

func TestMessageCacheFindAndRemove(t *testing.T) {
	t.Parallel()

	c := newMessageCache(0)
	c.put(cached("one", "x"))
	c.put(cached("two", "y"))

	got, ok := c.find("y")
	require.True(t, ok)
	assert.Equal(t, "two", got.msg.ChatID)

	c.remove("two", "y")
	_, ok = c.find("y")
	assert.False(t, ok)
}
