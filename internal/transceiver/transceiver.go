// Package transceiver implements the Transceiver component described
// in spec.md §4.6: it owns the radio, the outbound counter, the peer
// table and the RX queue, and runs the two cooperating background
// tasks (RX loop, discovery beacon) that the application-facing
// Send/Receive calls sit on top of.
//
// The lifecycle pattern — stopChan + sync.WaitGroup + a per-task
// ticker-driven loop selecting on stopChan/ctx.Done() — is generalized
// from the teacher's internal/engine/engine.go (cloudSyncLoop,
// commandRetryLoop, timeSyncLoop), with the agricultural dispatch
// logic replaced by the packet state machine spec.md §4.6 specifies.
package transceiver

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loraguard/slll/internal/aead"
	"github.com/loraguard/slll/internal/keystore"
	"github.com/loraguard/slll/internal/protocol"
	"github.com/loraguard/slll/internal/radio"
	"github.com/loraguard/slll/internal/replay"
)

const (
	discoveryWarmup          = 1 * time.Second
	defaultDiscoveryInterval = 5 * time.Second
	defaultPollInterval      = 10 * time.Millisecond
	defaultQueueSize         = 64
	stopJoinTimeout          = 1 * time.Second
)

// CounterStore is the optional persistence hook for the outbound
// counter, satisfied by *store.Store. Kept as an interface here so
// transceiver does not import the sqlite-specific store package
// directly, and so tests can use an in-memory fake.
type CounterStore interface {
	LoadCounter(senderID uint32) (uint64, bool, error)
	SaveCounter(senderID uint32, counter uint64) error
	UpsertPeer(senderID uint32, lastCounter uint64) error
}

// Config configures a Transceiver.
type Config struct {
	SenderID uint32
	Radio    radio.Radio
	KeyStore *keystore.KeyStore

	// DiscoveryInterval is T_discovery; zero uses the 5s default.
	DiscoveryInterval time.Duration
	// PollInterval bounds how long the RX task waits on Radio.Receive
	// per iteration before checking for shutdown; zero uses 10ms.
	PollInterval time.Duration
	// QueueSize bounds the RX queue; zero uses 64.
	QueueSize int
	// Debug enables verbose per-drop logging for the RX state machine.
	Debug bool
	// Store, if set, persists the outbound counter across restarts and
	// records peer high-water marks. Optional — spec.md §9 leaves
	// counter persistence as a deployment choice.
	Store CounterStore
}

// Delivery is an application-visible packet: a decrypted payload along
// with the kind and sender that produced it. DISCOVERY packets never
// appear here (spec.md §8 invariant 6).
type Delivery struct {
	SenderID uint32
	Kind     protocol.Kind
	Payload  []byte
}

// PeerInfo is what GetPeers exposes per known sender.
type PeerInfo struct {
	LastSeen time.Time
}

// Stats counts receive-side dispositions for observability. Never
// exposed as errors per spec.md §7's propagation policy — only
// counted.
type Stats struct {
	ParseErrors   atomic.Uint64
	SelfEchoes    atomic.Uint64
	UnknownSender atomic.Uint64
	AuthFailures  atomic.Uint64
	Replays       atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats suitable for logging or
// display.
type Snapshot struct {
	ParseErrors, SelfEchoes, UnknownSender, AuthFailures, Replays uint64
}

func (s *Stats) snapshot() Snapshot {
	return Snapshot{
		ParseErrors:   s.ParseErrors.Load(),
		SelfEchoes:    s.SelfEchoes.Load(),
		UnknownSender: s.UnknownSender.Load(),
		AuthFailures:  s.AuthFailures.Load(),
		Replays:       s.Replays.Load(),
	}
}

// Transceiver is the concurrent C6 component of SLLL.
type Transceiver struct {
	senderID uint32
	radio    radio.Radio
	keys     *keystore.KeyStore
	replay   *replay.Guard
	store    CounterStore
	debug    bool

	discoveryInterval time.Duration
	pollInterval      time.Duration

	sendMu  sync.Mutex
	counter uint64

	peersMu sync.RWMutex
	peers   map[uint32]time.Time

	rxQueue chan Delivery

	stats Stats

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs a Transceiver and immediately starts its RX loop and
// discovery beacon — scoped-resource construction per spec.md §6:
// acquisition starts the tasks, and every exit path must call Stop.
func New(cfg Config) (*Transceiver, error) {
	if cfg.Radio == nil {
		return nil, fmt.Errorf("transceiver: Radio is required")
	}
	if cfg.KeyStore == nil {
		return nil, fmt.Errorf("transceiver: KeyStore is required")
	}

	discoveryInterval := cfg.DiscoveryInterval
	if discoveryInterval <= 0 {
		discoveryInterval = defaultDiscoveryInterval
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transceiver{
		senderID:          cfg.SenderID,
		radio:             cfg.Radio,
		keys:              cfg.KeyStore,
		replay:            replay.New(),
		store:             cfg.Store,
		debug:             cfg.Debug,
		discoveryInterval: discoveryInterval,
		pollInterval:      pollInterval,
		peers:             make(map[uint32]time.Time),
		rxQueue:           make(chan Delivery, queueSize),
		ctx:               ctx,
		cancel:            cancel,
		stopChan:          make(chan struct{}),
	}

	if t.store != nil {
		if counter, ok, err := t.store.LoadCounter(cfg.SenderID); err != nil {
			log.Printf("transceiver: loading persisted counter: %v", err)
		} else if ok {
			t.counter = counter
		}
	}

	t.wg.Add(2)
	go t.rxLoop()
	go t.discoveryLoop()

	return t, nil
}

// Send encrypts payload under this node's own key and hands the
// serialized packet to the Radio. It does not block on RX-side work.
func (t *Transceiver) Send(kind protocol.Kind, payload []byte) error {
	if len(payload) > protocol.MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	key, ok := t.keys.Get(t.senderID)
	if !ok {
		return ErrMissingKey
	}
	if t.counter == math.MaxUint64 {
		return ErrCounterExhausted
	}
	counter := t.counter + 1

	pkt := protocol.New(t.senderID, kind, counter)
	ciphertext, tag, err := aead.Seal(key, pkt.Nonce[:], payload, pkt.Header.Encode())
	if err != nil {
		return fmt.Errorf("transceiver: seal: %w", err)
	}
	pkt.Ciphertext = ciphertext
	copy(pkt.Tag[:], tag)

	if err := t.radio.Send(t.ctx, pkt.Serialize()); err != nil {
		return fmt.Errorf("%w: %v", ErrRadio, err)
	}

	t.counter = counter
	if t.store != nil {
		if err := t.store.SaveCounter(t.senderID, counter); err != nil {
			log.Printf("transceiver: persisting counter: %v", err)
		}
	}
	return nil
}

// Receive waits up to timeout for a queued application packet. A
// timeout of zero or less is non-blocking.
func (t *Transceiver) Receive(timeout time.Duration) (*Delivery, error) {
	if timeout <= 0 {
		select {
		case d := <-t.rxQueue:
			return &d, nil
		default:
			return nil, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case d := <-t.rxQueue:
		return &d, nil
	case <-timer.C:
		return nil, nil
	case <-t.stopChan:
		return nil, nil
	}
}

// GetPeers returns a snapshot of every sender this node has received
// an authentic DISCOVERY from.
func (t *Transceiver) GetPeers() map[uint32]PeerInfo {
	t.peersMu.RLock()
	defer t.peersMu.RUnlock()
	out := make(map[uint32]PeerInfo, len(t.peers))
	for id, ts := range t.peers {
		out[id] = PeerInfo{LastSeen: ts}
	}
	return out
}

// GetSenderID returns this node's own sender id.
func (t *Transceiver) GetSenderID() uint32 {
	return t.senderID
}

// Stats returns a point-in-time snapshot of receive-side disposition
// counters.
func (t *Transceiver) Stats() Snapshot {
	return t.stats.snapshot()
}

// Stop signals both background tasks to exit and joins them, with a
// single 1-second allowance shared by both tasks (there is no separate
// timeout per task); tasks that have not exited in time are abandoned
// rather than blocking the caller forever.
func (t *Transceiver) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.cancel()
	})

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		log.Println("transceiver: background tasks did not exit within join timeout, abandoning")
	}
}

func (t *Transceiver) rxLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(t.ctx, t.pollInterval)
		frame, err := t.radio.Receive(ctx)
		cancel()
		if err != nil {
			if t.debug {
				log.Printf("transceiver: radio receive error: %v", err)
			}
			continue
		}
		if frame == nil {
			continue
		}
		t.handleFrame(frame)
	}
}

func (t *Transceiver) handleFrame(frame []byte) {
	pkt, err := protocol.Parse(frame)
	if err != nil {
		t.stats.ParseErrors.Add(1)
		if t.debug {
			log.Printf("transceiver: parse error: %v", err)
		}
		return
	}

	if pkt.SenderID == t.senderID {
		t.stats.SelfEchoes.Add(1)
		return
	}

	key, ok := t.keys.Get(pkt.SenderID)
	if !ok {
		t.stats.UnknownSender.Add(1)
		if t.debug {
			log.Printf("transceiver: unknown sender %#08x", pkt.SenderID)
		}
		return
	}

	plaintext, err := aead.Open(key, pkt.Nonce[:], pkt.Ciphertext, pkt.Tag[:], pkt.Header.Encode())
	if err != nil {
		t.stats.AuthFailures.Add(1)
		if t.debug {
			log.Printf("transceiver: auth failure from %#08x", pkt.SenderID)
		}
		return
	}

	counter := protocol.CounterFromNonce(pkt.Nonce)
	if !t.replay.CheckAndUpdate(pkt.SenderID, counter) {
		t.stats.Replays.Add(1)
		if t.debug {
			log.Printf("transceiver: replay from %#08x at counter %d", pkt.SenderID, counter)
		}
		return
	}

	if t.store != nil {
		if err := t.store.UpsertPeer(pkt.SenderID, counter); err != nil {
			log.Printf("transceiver: persisting peer: %v", err)
		}
	}

	if pkt.Kind == protocol.KindDiscovery {
		t.peersMu.Lock()
		t.peers[pkt.SenderID] = time.Now()
		t.peersMu.Unlock()
		return
	}

	t.enqueue(Delivery{SenderID: pkt.SenderID, Kind: pkt.Kind, Payload: plaintext})
}

// enqueue applies the drop-oldest back-pressure policy: if the queue
// is full, the oldest undelivered packet is evicted to make room for
// the new one. Chosen over drop-newest because the freshest telemetry
// is worth more than stale queued data for this link layer's
// intended use, consistent with the replay guard's "loss is accepted
// silently" posture.
func (t *Transceiver) enqueue(d Delivery) {
	select {
	case t.rxQueue <- d:
		return
	default:
	}

	select {
	case <-t.rxQueue:
	default:
	}

	select {
	case t.rxQueue <- d:
	default:
	}
}

func (t *Transceiver) discoveryLoop() {
	defer t.wg.Done()

	warmup := time.NewTimer(discoveryWarmup)
	defer warmup.Stop()
	select {
	case <-warmup.C:
	case <-t.stopChan:
		return
	}
	t.beacon()

	ticker := time.NewTicker(t.discoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.beacon()
		case <-t.stopChan:
			return
		}
	}
}

func (t *Transceiver) beacon() {
	payload := make([]byte, protocol.SenderIDSize)
	binary.BigEndian.PutUint32(payload, t.senderID)
	if err := t.Send(protocol.KindDiscovery, payload); err != nil {
		log.Printf("transceiver: discovery beacon: %v", err)
	}
}
