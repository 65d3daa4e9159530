package bridge

import (
	"testing"
	"time"

	"github.com/andyrewlee/amux/internal/config"
)

func testConfig() config.BridgeConfig {
	return config.BridgeConfig{
		RestartBackoffMs:    10,
		RestartBackoffCapMs: 100,
		RapidCrashWindowMs:  1000,
		MaxRapidCrashes:     3,
	}
}

func TestGivesUpAfterMaxRapidCrashesWithinWindow(t *testing.T) {
	b := New("/bin/true", nil, "", testConfig())

	for i := 0; i < 3; i++ {
		if b.recordCrashAndMaybeGiveUp() {
			t.Fatalf("gave up too early on crash %d", i+1)
		}
	}
	if !b.recordCrashAndMaybeGiveUp() {
		t.Fatal("expected give up after exceeding MaxRapidCrashes within the window")
	}
	if !b.GaveUp() {
		t.Fatal("GaveUp() should report true once exceeded")
	}
}

func TestOnGiveUpCallbackFires(t *testing.T) {
	b := New("/bin/true", nil, "", testConfig())
	fired := make(chan struct{}, 1)
	b.OnGiveUp(func() { fired <- struct{}{} })

	for i := 0; i < 4; i++ {
		b.recordCrashAndMaybeGiveUp()
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("OnGiveUp callback never fired")
	}
}

func TestCrashesOutsideWindowDoNotAccumulate(t *testing.T) {
	cfg := testConfig()
	cfg.RapidCrashWindowMs = 20
	b := New("/bin/true", nil, "", cfg)

	for i := 0; i < 3; i++ {
		if b.recordCrashAndMaybeGiveUp() {
			t.Fatalf("gave up too early on crash %d", i+1)
		}
		time.Sleep(30 * time.Millisecond)
	}
	if b.GaveUp() {
		t.Fatal("crashes spaced outside the rapid-crash window should not trigger give-up")
	}
}
