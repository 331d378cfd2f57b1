package peak

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationsAlwaysAdmittedRegardlessOfCapacity(t *testing.T) {
	b := New(0)
	ok := b.TryPush(Entry{Kind: KindNotification, Blocks: [][]byte{{1}}})
	assert.True(t, ok)
	ok = b.TryPush(Entry{Kind: KindCommand, Blocks: [][]byte{{2}}})
	assert.True(t, ok)
	assert.Equal(t, 2, b.Len())
}

func TestMessagesGatedByCapacity(t *testing.T) {
	b := New(1)
	assert.True(t, b.TryPush(Entry{Kind: KindMessage, Blocks: [][]byte{{1}}}))
	assert.False(t, b.TryPush(Entry{Kind: KindMessage, Blocks: [][]byte{{2}}}))
	assert.Equal(t, 1, b.Len())
}

func TestNotificationDoesNotCountAgainstMessageCapacity(t *testing.T) {
	b := New(1)
	assert.True(t, b.TryPush(Entry{Kind: KindMessage, Blocks: [][]byte{{1}}}))
	assert.True(t, b.TryPush(Entry{Kind: KindNotification, Blocks: [][]byte{{2}}}))
	assert.Equal(t, 2, b.Len())
}

func TestFIFOOrder(t *testing.T) {
	b := New(10)
	b.TryPush(Entry{Kind: KindMessage, Blocks: [][]byte{{1}}})
	b.TryPush(Entry{Kind: KindMessage, Blocks: [][]byte{{2}}})
	b.TryPush(Entry{Kind: KindMessage, Blocks: [][]byte{{3}}})

	e, ok := b.Peek()
	require.True(t, ok)
	assert.Equal(t, byte(1), e.Blocks[0][0])
	b.Pop()

	e, ok = b.Peek()
	require.True(t, ok)
	assert.Equal(t, byte(2), e.Blocks[0][0])
	b.Pop()

	assert.Equal(t, 1, b.Len())
}

func TestSetCapacityShrinksAdmission(t *testing.T) {
	b := New(5)
	b.TryPush(Entry{Kind: KindMessage})
	b.SetCapacity(1)
	assert.False(t, b.TryPush(Entry{Kind: KindMessage}))
}

func TestClearResetsMessageCount(t *testing.T) {
	b := New(1)
	b.TryPush(Entry{Kind: KindMessage})
	b.Clear()
	assert.True(t, b.Empty())
	assert.True(t, b.TryPush(Entry{Kind: KindMessage}))
}

func TestPopOnEmptyIsNoop(t *testing.T) {
	b := New(1)
	assert.NotPanics(t, func() { b.Pop() })
}
