package transceiver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/loraguard/slll/internal/aead"
	"github.com/loraguard/slll/internal/keystore"
	"github.com/loraguard/slll/internal/protocol"
	"github.com/loraguard/slll/internal/radio/loopback"
)

var testKey = []byte("0123456789abcdef") // 16 bytes

// queueRadio is a direct-control test double: Send records the last
// frame transmitted, Receive drains frames pushed via inject.
type queueRadio struct {
	mu  sync.Mutex
	out []byte
	in  chan []byte
}

func newQueueRadio() *queueRadio {
	return &queueRadio{in: make(chan []byte, 16)}
}

func (q *queueRadio) Send(ctx context.Context, frame []byte) error {
	q.mu.Lock()
	q.out = frame
	q.mu.Unlock()
	return nil
}

func (q *queueRadio) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f := <-q.in:
		return f, nil
	case <-ctx.Done():
		return nil, nil
	}
}

func (q *queueRadio) inject(frame []byte) { q.in <- frame }

func buildFrame(t *testing.T, senderID uint32, kind protocol.Kind, counter uint64, key, payload []byte) []byte {
	t.Helper()
	pkt := protocol.New(senderID, kind, counter)
	ciphertext, tag, err := aead.Seal(key, pkt.Nonce[:], payload, pkt.Header.Encode())
	if err != nil {
		t.Fatalf("aead.Seal: %v", err)
	}
	pkt.Ciphertext = ciphertext
	copy(pkt.Tag[:], tag)
	return pkt.Serialize()
}

func newTestTransceiver(t *testing.T, senderID uint32, r interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
}, peerID uint32) (*Transceiver, *keystore.KeyStore) {
	t.Helper()
	ks := keystore.New()
	if err := ks.Add(senderID, testKey); err != nil {
		t.Fatalf("Add own key: %v", err)
	}
	if peerID != 0 {
		if err := ks.Add(peerID, testKey); err != nil {
			t.Fatalf("Add peer key: %v", err)
		}
	}
	tr, err := New(Config{SenderID: senderID, Radio: r, KeyStore: ks, PollInterval: 2 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(tr.Stop)
	return tr, ks
}

func TestSendReceiveRoundTripOverLoopback(t *testing.T) {
	board := loopback.NewSwitchboard()
	radioA := loopback.New(board)
	radioB := loopback.New(board)
	defer radioA.Close()
	defer radioB.Close()

	a, _ := newTestTransceiver(t, 1, radioA, 2)
	b, _ := newTestTransceiver(t, 2, radioB, 1)

	if err := a.Send(protocol.KindData, []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	d, err := b.Receive(500 * time.Millisecond)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if d == nil {
		t.Fatal("Receive = nil, want a delivery")
	}
	if d.SenderID != 1 || d.Kind != protocol.KindData || string(d.Payload) != "hello" {
		t.Fatalf("Receive = %+v, want sender 1 DATA \"hello\"", d)
	}
}

func TestMissingKeyOnSend(t *testing.T) {
	ks := keystore.New() // no key for sender id 9
	r := newQueueRadio()
	tr, err := New(Config{SenderID: 9, Radio: r, KeyStore: ks})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Stop()

	if err := tr.Send(protocol.KindData, []byte("x")); err == nil {
		t.Fatal("Send = nil error, want ErrMissingKey")
	}
}

func TestPayloadTooLargeOnSend(t *testing.T) {
	r := newQueueRadio()
	tr, _ := newTestTransceiver(t, 1, r, 0)

	big := make([]byte, protocol.MaxPayloadSize+1)
	if err := tr.Send(protocol.KindData, big); err == nil {
		t.Fatal("Send = nil error, want ErrPayloadTooLarge")
	}
}

func TestSelfEchoDropped(t *testing.T) {
	r := newQueueRadio()
	tr, _ := newTestTransceiver(t, 1, r, 0)

	if err := tr.Send(protocol.KindData, []byte("echo")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	r.inject(r.out)

	if d, _ := tr.Receive(200 * time.Millisecond); d != nil {
		t.Fatalf("Receive = %+v, want nil (self-echo)", d)
	}
	if tr.Stats().SelfEchoes == 0 {
		t.Fatal("Stats().SelfEchoes = 0, want >= 1")
	}
}

func TestReplayRejectsDuplicateCounter(t *testing.T) {
	r := newQueueRadio()
	tr, _ := newTestTransceiver(t, 2, r, 1)

	frame := buildFrame(t, 1, protocol.KindData, 1, testKey, []byte("first"))
	r.inject(frame)
	d, err := tr.Receive(200 * time.Millisecond)
	if err != nil || d == nil || string(d.Payload) != "first" {
		t.Fatalf("first Receive = %+v, %v", d, err)
	}

	r.inject(frame) // duplicate counter
	if d, _ := tr.Receive(100 * time.Millisecond); d != nil {
		t.Fatalf("Receive after replay = %+v, want nil", d)
	}
	if tr.Stats().Replays == 0 {
		t.Fatal("Stats().Replays = 0, want >= 1")
	}
}

func TestAuthFailureOnTamperedCiphertext(t *testing.T) {
	r := newQueueRadio()
	tr, _ := newTestTransceiver(t, 2, r, 1)

	frame := buildFrame(t, 1, protocol.KindData, 1, testKey, []byte("payload"))
	frame[protocol.HeaderSize] ^= 0xFF
	r.inject(frame)

	if d, _ := tr.Receive(200 * time.Millisecond); d != nil {
		t.Fatalf("Receive = %+v, want nil (auth failure)", d)
	}
	if tr.Stats().AuthFailures == 0 {
		t.Fatal("Stats().AuthFailures = 0, want >= 1")
	}
}

func TestUnknownSenderDropped(t *testing.T) {
	r := newQueueRadio()
	tr, _ := newTestTransceiver(t, 2, r, 0) // no key registered for sender 1

	frame := buildFrame(t, 1, protocol.KindData, 1, testKey, []byte("x"))
	r.inject(frame)

	if d, _ := tr.Receive(200 * time.Millisecond); d != nil {
		t.Fatalf("Receive = %+v, want nil (unknown sender)", d)
	}
	if tr.Stats().UnknownSender == 0 {
		t.Fatal("Stats().UnknownSender = 0, want >= 1")
	}
}

func TestDiscoveryNeverQueuedButUpdatesPeers(t *testing.T) {
	r := newQueueRadio()
	tr, _ := newTestTransceiver(t, 2, r, 1)

	payload := []byte{0, 0, 0, 1}
	frame := buildFrame(t, 1, protocol.KindDiscovery, 1, testKey, payload)
	r.inject(frame)

	time.Sleep(50 * time.Millisecond)
	if d, _ := tr.Receive(50 * time.Millisecond); d != nil {
		t.Fatalf("Receive = %+v, want nil (discovery invisible)", d)
	}

	peers := tr.GetPeers()
	if _, ok := peers[1]; !ok {
		t.Fatal("GetPeers() missing sender 1 after discovery")
	}
}

func TestQueueFullDropsOldest(t *testing.T) {
	ks := keystore.New()
	ks.Add(2, testKey)
	ks.Add(1, testKey)
	r := newQueueRadio()
	tr, err := New(Config{SenderID: 2, Radio: r, KeyStore: ks, QueueSize: 2, PollInterval: 2 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Stop()

	r.inject(buildFrame(t, 1, protocol.KindData, 1, testKey, []byte("one")))
	r.inject(buildFrame(t, 1, protocol.KindData, 2, testKey, []byte("two")))
	r.inject(buildFrame(t, 1, protocol.KindData, 3, testKey, []byte("three")))

	time.Sleep(100 * time.Millisecond)

	first, _ := tr.Receive(100 * time.Millisecond)
	second, _ := tr.Receive(100 * time.Millisecond)
	if first == nil || second == nil {
		t.Fatalf("expected two surviving deliveries, got %+v, %+v", first, second)
	}
	if string(first.Payload) != "two" || string(second.Payload) != "three" {
		t.Fatalf("got %q, %q; want \"two\", \"three\" (oldest dropped)", first.Payload, second.Payload)
	}
}
