package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBus(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	first, unsubFirst := bus.Subscribe()
	second, unsubSecond := bus.Subscribe()
	defer unsubSecond()

	bus.Publish(New(TypeLotCreated, "admin-1", map[string]int64{"id": 7}))

	got := <-first
	assert.Equal(t, TypeLotCreated, got.Type)
	assert.Equal(t, "admin-1", got.ActorID)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, got.ID, (<-second).ID)

	unsubFirst()
	unsubFirst()
	_, open := <-first
	assert.False(t, open)

	bus.Publish(New(TypeLotUpdated, "", nil))
	assert.Equal(t, TypeLotUpdated, (<-second).Type)
}

func TestInMemoryBusDropsWhenFull(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsub := bus.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(New(TypeTokenRevoked, "", i))
	}
	require.Len(t, ch, subscriberBuffer)
}

func TestTypePublic(t *testing.T) {
	t.Parallel()

	assert.True(t, TypeLotDeactivated.Public())
	assert.False(t, TypeTokenRotated.Public())
	assert.False(t, TypeUserRegistered.Public())
}
