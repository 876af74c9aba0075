package session

import (
	"testing"
	"time"
)

func TestConnectorWaitForRetryBacksOffExponentially(t *testing.T) {
	sub := NewSubscriber()
	sc := sub.connector
	sc.RetryInterval = 10
	sc.MaxRetryInterval = 1000

	cases := []struct {
		attempt  int32
		minDelay time.Duration
	}{
		{attempt: 0, minDelay: 0},
		{attempt: 1, minDelay: 0},
		{attempt: 2, minDelay: 15 * time.Millisecond}, // 10 * 2^1 = 20ms
		{attempt: 3, minDelay: 35 * time.Millisecond}, // 10 * 2^2 = 40ms
	}

	for _, c := range cases {
		sc.connectAttempt = c.attempt

		start := time.Now()
		sc.waitForRetry(sub)
		elapsed := time.Since(start)

		if elapsed < c.minDelay {
			t.Fatalf("attempt %d: waitForRetry returned after %v, want at least %v", c.attempt, elapsed, c.minDelay)
		}
	}
}

func TestConnectorWaitForRetryCappedAtMax(t *testing.T) {
	sub := NewSubscriber()
	sc := sub.connector
	sc.RetryInterval = 1000
	sc.MaxRetryInterval = 20
	sc.connectAttempt = 10 // uncapped delay would be 1000*2^9, far beyond MaxRetryInterval

	start := time.Now()
	sc.waitForRetry(sub)
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("waitForRetry took %v, want capped near MaxRetryInterval (20ms)", elapsed)
	}
}

func TestConnectorCancelSetsFlagAndStopsTimer(t *testing.T) {
	sc := NewConnector()

	// Cancel with no active wait timer or reconnect thread must be a no-op,
	// not a nil-pointer panic.
	sc.Cancel()

	if !sc.cancel.IsSet() {
		t.Fatal("Cancel should set the cancel flag")
	}

	sc.ResetConnection()

	// Arm a long-lived timer as waitForRetry would, then confirm Cancel stops
	// it before it fires.
	sc.waitTimerMutex.Lock()
	sc.waitTimer = time.NewTimer(time.Hour)
	timer := sc.waitTimer
	sc.waitTimerMutex.Unlock()

	sc.Cancel()

	select {
	case <-timer.C:
		t.Fatal("timer fired after Cancel; Stop was not effective")
	default:
	}

	if !sc.cancel.IsSet() {
		t.Fatal("Cancel should leave the cancel flag set")
	}
}

func TestConnectorResetConnection(t *testing.T) {
	sc := NewConnector()
	sc.connectAttempt = 7
	sc.cancel.Set()

	sc.ResetConnection()

	if sc.connectAttempt != 0 {
		t.Fatalf("connectAttempt = %d, want 0", sc.connectAttempt)
	}

	if sc.cancel.IsSet() {
		t.Fatal("cancel flag should be cleared after ResetConnection")
	}
}
