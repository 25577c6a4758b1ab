package service

import (
	"testing"
	"time"

	"buybot/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestTokenStateStore(t *testing.T) {
	s := NewTokenStateStore()
	now := time.Now()

	s.Put(entity.TokenMonitorState{TokenAddress: "0xBB", LastBuyCount: 2, LastCheckedAt: now})
	s.Put(entity.TokenMonitorState{TokenAddress: "0xaa", LastBuyCount: 1})

	st, ok := s.State("0xbb")
	assert.True(t, ok)
	assert.Equal(t, 2, st.LastBuyCount)
	assert.Equal(t, 2, s.Len())

	states := s.States()
	assert.Equal(t, "0xaa", states[0].TokenAddress)
	assert.Equal(t, "0xbb", states[1].TokenAddress)

	// returned values are copies
	states[0].LastBuyCount = 99
	st, _ = s.State("0xaa")
	assert.Equal(t, 1, st.LastBuyCount)

	s.Put(entity.TokenMonitorState{TokenAddress: "0xaa", LastVolume: 5})
	st, _ = s.State("0xAA")
	assert.Zero(t, st.LastBuyCount)
	assert.Equal(t, 5.0, st.LastVolume)

	s.Delete("0xAA")
	_, ok = s.State("0xaa")
	assert.False(t, ok)

	s.Reset()
	assert.Zero(t, s.Len())
}
