package player_test

import (
	"sync"
	"testing"
	"time"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
)

func TestSignalHubDeliversInOrder(t *testing.T) {
	hub := player.NewSignalHub(4)
	defer hub.Close()

	var mu sync.Mutex
	var got []player.SignalKind
	hub.Subscribe(func(sig player.Signal) {
		mu.Lock()
		got = append(got, sig.Kind)
		mu.Unlock()
	})

	want := []player.SignalKind{
		player.SignalMetadataLoaded,
		player.SignalCanPlay,
		player.SignalStarted,
		player.SignalPaused,
		player.SignalEnded,
	}
	for _, k := range want {
		hub.Emit(player.Signal{Kind: k})
	}

	waitFor(t, "hub delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	})

	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("signal %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSignalHubUnsubscribe(t *testing.T) {
	hub := player.NewSignalHub(0)
	defer hub.Close()

	var mu sync.Mutex
	count := 0
	unsubscribe := hub.Subscribe(func(player.Signal) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	hub.Emit(player.Signal{Kind: player.SignalCanPlay})
	waitFor(t, "hub delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	unsubscribe()
	hub.Emit(player.Signal{Kind: player.SignalCanPlay})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("count = %d after unsubscribe, want 1", count)
	}
}

func TestSignalHubEmitAfterCloseDoesNotBlock(t *testing.T) {
	hub := player.NewSignalHub(1)
	hub.Close()
	hub.Close()

	done := make(chan struct{})
	go func() {
		hub.Emit(player.Signal{Kind: player.SignalCanPlay}, player.Signal{Kind: player.SignalCanPlay})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked after Close")
	}
}
