package session

import (
	"encoding/binary"
	"testing"

	"github.com/gridstream-io/sttp-go/guid"
)

func TestSignalIndexCacheDecodeRoundTrip(t *testing.T) {
	sub := NewSubscriber()

	source := NewSignalIndexCache()
	subscriberID := guid.New()

	signalA := guid.New()
	signalB := guid.New()

	source.addRecord(sub, 0, signalA, "PPA:1", 101, 1)
	source.addRecord(sub, 1, signalB, "PPA:2", 102, 1)
	source.unauthorizedIDs = []guid.Guid{guid.New()}

	buffer := source.Serialize(subscriberID, false)

	decoded := NewSignalIndexCache()
	var decodedSubscriberID guid.Guid

	if err := decoded.decode(sub, buffer, &decodedSubscriberID); err != nil {
		t.Fatalf("decode returned error: %v", err)
	}

	if decodedSubscriberID != subscriberID {
		t.Fatalf("decoded subscriber ID = %v, want %v", decodedSubscriberID, subscriberID)
	}

	if decoded.Count() != 2 {
		t.Fatalf("decoded Count() = %d, want 2", decoded.Count())
	}

	if got := decoded.SignalID(0); got != signalA {
		t.Fatalf("SignalID(0) = %v, want %v", got, signalA)
	}

	if got := decoded.SignalID(1); got != signalB {
		t.Fatalf("SignalID(1) = %v, want %v", got, signalB)
	}

	if got := decoded.Source(0); got != "PPA:1" {
		t.Fatalf("Source(0) = %q, want PPA:1", got)
	}

	if got := decoded.ID(1); got != 102 {
		t.Fatalf("ID(1) = %d, want 102", got)
	}

	if len(decoded.UnauthorizedSignalIDs()) != 1 {
		t.Fatalf("len(UnauthorizedSignalIDs()) = %d, want 1", len(decoded.UnauthorizedSignalIDs()))
	}
}

func TestSignalIndexCacheDecodeSwappedEndianness(t *testing.T) {
	sub := NewSubscriber()
	sub.SwapGuidEndianness = true

	source := NewSignalIndexCache()
	subscriberID := guid.New()
	signalID := guid.New()

	source.addRecord(sub, 5, signalID, "PPA:5", 500, 1)

	buffer := source.Serialize(subscriberID, true)

	decoded := NewSignalIndexCache()
	var decodedSubscriberID guid.Guid

	if err := decoded.decode(sub, buffer, &decodedSubscriberID); err != nil {
		t.Fatalf("decode returned error: %v", err)
	}

	if decodedSubscriberID != subscriberID {
		t.Fatalf("decoded subscriber ID = %v, want %v", decodedSubscriberID, subscriberID)
	}

	if got := decoded.SignalID(5); got != signalID {
		t.Fatalf("SignalID(5) = %v, want %v", got, signalID)
	}
}

func TestSignalIndexCacheDecodeTruncatedBuffer(t *testing.T) {
	sub := NewSubscriber()
	decoded := NewSignalIndexCache()
	var subscriberID guid.Guid

	if err := decoded.decode(sub, []byte{0, 0}, &subscriberID); err == nil {
		t.Fatal("decode on a 2-byte buffer should have returned an error")
	}

	// A binaryLength header that overstates the actual buffer size must fail
	// rather than read out of bounds.
	overstated := make([]byte, 8)
	overstated[3] = 100 // binaryLength = 100, but buffer is only 8 bytes

	if err := decoded.decode(sub, overstated, &subscriberID); err == nil {
		t.Fatal("decode with an overstated binaryLength should have returned an error")
	}
}

func TestSignalIndexCacheDecodeNoUnauthorizedTrailer(t *testing.T) {
	sub := NewSubscriber()

	source := NewSignalIndexCache()
	subscriberID := guid.New()
	signalID := guid.New()

	source.addRecord(sub, 0, signalID, "PPA:1", 1, 1)

	full := source.Serialize(subscriberID, false)

	// Strip the trailing 4-byte unauthorized-count field entirely, simulating
	// an older publisher revision that never sends it, and correct the
	// binaryLength header to match so the stripped payload still reports
	// itself as complete.
	truncated := append([]byte(nil), full[:len(full)-4]...)
	binary.BigEndian.PutUint32(truncated, uint32(len(truncated)))

	decoded := NewSignalIndexCache()
	var decodedSubscriberID guid.Guid

	if err := decoded.decode(sub, truncated, &decodedSubscriberID); err != nil {
		t.Fatalf("decode without unauthorized trailer returned error: %v", err)
	}

	if decoded.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", decoded.Count())
	}
}
