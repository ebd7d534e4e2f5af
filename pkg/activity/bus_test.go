package activity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	b := NewBus(0)
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	e := b.Publish(context.Background(), TaskCreated, 7, map[string]any{"task_name": "x"})

	assert.Equal(t, e, <-ch1)
	assert.Equal(t, e, <-ch2)
	assert.Equal(t, int64(7), e.TaskID)
	assert.NotEmpty(t, e.ID)
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	b := NewBus(0)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < cap(ch)+10; i++ {
		b.Publish(context.Background(), TaskUpdated, int64(i), nil)
	}
	assert.Len(t, ch, cap(ch))
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	b := NewBus(0)
	ch := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers())
}

func TestHistoryIsBounded(t *testing.T) {
	b := NewBus(3)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, b.Publish(context.Background(), MemoCreated, 0, nil).ID)
	}

	recent := b.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[4], recent[2].ID)
	assert.Len(t, b.Recent(2), 2)
}

func TestSince(t *testing.T) {
	b := NewBus(10)
	first := b.Publish(context.Background(), TaskCreated, 1, nil)
	second := b.Publish(context.Background(), TaskCreated, 2, nil)
	third := b.Publish(context.Background(), TaskCreated, 3, nil)

	after := b.Since(first.ID, 10)
	require.Len(t, after, 2)
	assert.Equal(t, second.ID, after[0].ID)
	assert.Equal(t, third.ID, after[1].ID)

	assert.Empty(t, b.Since(third.ID, 10))
	assert.Len(t, b.Since("unknown", 1), 1)
}

func TestEventIDsAreTimeOrdered(t *testing.T) {
	b := NewBus(0)
	a := b.Publish(context.Background(), TaskCreated, 1, nil)
	c := b.Publish(context.Background(), TaskCreated, 2, nil)

	assert.Less(t, a.ID, c.ID)
}
