package hash

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wanproxy-go/reactor"
)

func TestMethod_Algorithms(t *testing.T) {
	m := NewMethod()
	algs := m.Algorithms()
	require.ElementsMatch(t, []Algorithm{MD5, SHA1, SHA256}, algs)
}

func TestInstance_Submit(t *testing.T) {
	loop, err := reactor.New()
	require.NoError(t, err)
	defer loop.Close()

	m := NewMethod()
	inst, err := m.NewInstance(SHA256)
	require.NoError(t, err)

	want := sha256.Sum256([]byte("hello world"))

	var got reactor.Event
	inst.Submit(loop, []byte("hello world"), reactor.NewCallback(func(ev reactor.Event) {
		got = ev
		loop.Stop()
	}))

	require.NoError(t, loop.Start())
	require.Equal(t, reactor.EventDone, got.Type)
	require.Equal(t, want[:], got.Buffer)
}

func TestInstance_Submit_Reused(t *testing.T) {
	loop, err := reactor.New()
	require.NoError(t, err)
	defer loop.Close()

	m := NewMethod()
	inst, err := m.NewInstance(MD5)
	require.NoError(t, err)

	var results [][]byte
	for _, payload := range [][]byte{[]byte("a"), []byte("b")} {
		payload := payload
		inst.Submit(loop, payload, reactor.NewCallback(func(ev reactor.Event) {
			results = append(results, ev.Buffer)
		}))
	}
	loop.Schedule(reactor.NewCallback(func(reactor.Event) { loop.Stop() }))

	require.NoError(t, loop.Start())
	require.Len(t, results, 2)
	require.NotEqual(t, results[0], results[1])
}

func TestNewInstance_UnsupportedAlgorithm(t *testing.T) {
	m := NewMethod()
	_, err := m.NewInstance(Algorithm(99))
	require.Error(t, err)
}
