package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubCurrentReturnsInitial(t *testing.T) {
	snap := Default()
	h := NewHub(snap)
	assert.Same(t, snap, h.Current())
}

func TestHubReconfigureSwapsAndNotifies(t *testing.T) {
	h := NewHub(Default())
	var gotOld, gotNew *Snapshot
	h.Subscribe(func(old, next *Snapshot) {
		gotOld = old
		gotNew = next
	})

	next, err := Build(WithService("svc"))
	assert.NoError(t, err)
	h.Reconfigure(next)

	assert.Same(t, next, h.Current())
	assert.Same(t, next, gotNew)
	assert.NotSame(t, next, gotOld)
}

func TestHubUnsubscribeStopsNotifications(t *testing.T) {
	h := NewHub(Default())
	calls := 0
	unsub := h.Subscribe(func(old, next *Snapshot) { calls++ })
	unsub()

	h.Reconfigure(Default())
	assert.Equal(t, 0, calls)
}

func TestHubSubscriberPanicDoesNotCorruptState(t *testing.T) {
	h := NewHub(Default())
	h.Subscribe(func(old, next *Snapshot) { panic("boom") })
	next := Default()
	assert.NotPanics(t, func() { h.Reconfigure(next) })
	assert.Same(t, next, h.Current())
}
