package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterestRegistry_RegisterAndDrain(t *testing.T) {
	r := newInterestRegistry()
	var order []int
	_, err := r.Register(InterestStop, NewCallback(func(Event) { order = append(order, 1) }))
	require.NoError(t, err)
	_, err = r.Register(InterestStop, NewCallback(func(Event) { order = append(order, 2) }))
	require.NoError(t, err)

	require.False(t, r.Empty(InterestStop))
	appended := r.Drain(InterestStop)
	require.False(t, appended)
	require.Equal(t, []int{1, 2}, order)
	require.True(t, r.Empty(InterestStop))
}

func TestInterestRegistry_UnknownName(t *testing.T) {
	r := newInterestRegistry()
	_, err := r.Register(InterestName(99), NewCallback(func(Event) {}))
	require.ErrorIs(t, err, ErrUnknownInterest)
}

func TestInterestRegistry_DrainDetectsReentrantAppend(t *testing.T) {
	r := newInterestRegistry()
	_, _ = r.Register(InterestStop, NewCallback(func(Event) {
		_, _ = r.Register(InterestStop, NewCallback(func(Event) {}))
	}))
	appended := r.Drain(InterestStop)
	require.True(t, appended)
	require.False(t, r.Empty(InterestStop))
}

func TestInterestRegistry_CancelBeforeDrain(t *testing.T) {
	r := newInterestRegistry()
	fired := false
	a, err := r.Register(InterestReload, NewCallback(func(Event) { fired = true }))
	require.NoError(t, err)
	a.Cancel()
	r.Drain(InterestReload)
	require.False(t, fired)
}

func TestInterestRegistry_StopAndReloadAreIndependent(t *testing.T) {
	r := newInterestRegistry()
	stopFired, reloadFired := false, false
	_, _ = r.Register(InterestStop, NewCallback(func(Event) { stopFired = true }))
	_, _ = r.Register(InterestReload, NewCallback(func(Event) { reloadFired = true }))

	r.Drain(InterestStop)
	require.True(t, stopFired)
	require.False(t, reloadFired)
}
