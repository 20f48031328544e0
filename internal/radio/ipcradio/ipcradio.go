// Package ipcradio provides a ZeroMQ PUB/SUB mediated Radio, the
// "IPC-mediated test net" spec.md §1/§6 names as an example Radio
// implementation for exercising multiple SLLL nodes as separate
// processes without real LoRa hardware.
//
// Each node binds its own PUB socket and SUB-dials every peer's PUB
// endpoint, so the set of nodes forms a full broadcast mesh — the same
// single-channel, half-duplex topology a shared LoRa frequency
// presents. This is grounded on internal/lora/concentratord.go's
// ZeroMQ dial/event-loop pattern, generalized from a single
// Concentratord daemon connection into a peer mesh, and with the
// ChirpStack-specific gw wire format dropped since there is no real
// gateway daemon on the other end.
package ipcradio

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/go-zeromq/zmq4"

	"github.com/loraguard/slll/internal/radio"
)

// Config configures an ipcradio.Radio. The LoRa-parameter fields are
// inert here (no real RF is involved) but are validated through the
// same GetParam/SetParam contract a hardware radio would use, so
// ErrInvalidParameter behavior is exercised in tests without hardware.
type Config struct {
	PublishEndpoint string   // e.g. "tcp://127.0.0.1:5556"
	PeerEndpoints   []string // PUB endpoints of every other node in the mesh

	Frequency       uint32 // Hz
	SpreadingFactor uint8  // SF7-SF12
	Bandwidth       uint32 // Hz
	CodingRate      uint8  // 5-8 (4/5 .. 4/8)
	TxPower         int8   // dBm
	SyncWord        uint8
}

// DefaultConfig returns sensible defaults for US 915 MHz, matching the
// teacher's lora.DefaultConfig field-for-field.
func DefaultConfig() Config {
	return Config{
		Frequency:       915000000,
		SpreadingFactor: 10,
		Bandwidth:       125000,
		CodingRate:      5,
		TxPower:         20,
		SyncWord:        0x34,
	}
}

// Radio is a ZeroMQ-mediated radio.Radio and radio.ParamRadio.
type Radio struct {
	pub zmq4.Socket
	sub zmq4.Socket

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	inbox  chan []byte

	mu  sync.Mutex
	cfg Config
}

var _ radio.ParamRadio = (*Radio)(nil)

// New binds cfg.PublishEndpoint and dials every cfg.PeerEndpoints
// entry, then starts the background receive loop.
func New(cfg Config) (*Radio, error) {
	ctx, cancel := context.WithCancel(context.Background())

	pub := zmq4.NewPub(ctx)
	if err := pub.Listen(cfg.PublishEndpoint); err != nil {
		cancel()
		return nil, fmt.Errorf("ipcradio: listen %s: %w", cfg.PublishEndpoint, err)
	}

	sub := zmq4.NewSub(ctx)
	if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		pub.Close()
		cancel()
		return nil, fmt.Errorf("ipcradio: subscribe: %w", err)
	}
	for _, ep := range cfg.PeerEndpoints {
		if err := sub.Dial(ep); err != nil {
			pub.Close()
			sub.Close()
			cancel()
			return nil, fmt.Errorf("ipcradio: dial peer %s: %w", ep, err)
		}
	}

	r := &Radio{
		pub:    pub,
		sub:    sub,
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan []byte, 256),
		cfg:    cfg,
	}

	r.wg.Add(1)
	go r.recvLoop()

	log.Printf("ipcradio: listening on %s, meshed with %d peers", cfg.PublishEndpoint, len(cfg.PeerEndpoints))
	return r, nil
}

func (r *Radio) recvLoop() {
	defer r.wg.Done()
	for {
		msg, err := r.sub.Recv()
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			continue
		}
		if len(msg.Frames) == 0 {
			continue
		}
		select {
		case r.inbox <- msg.Frames[0]:
		default:
			log.Println("ipcradio: inbox full, dropping frame")
		}
	}
}

// Send publishes frame to every peer subscribed to this node.
func (r *Radio) Send(ctx context.Context, frame []byte) error {
	if err := r.pub.Send(zmq4.NewMsg(frame)); err != nil {
		return fmt.Errorf("ipcradio: send: %w", err)
	}
	return nil
}

// Receive returns the next frame published by a peer, or (nil, nil)
// if none is available before ctx is done.
func (r *Radio) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-r.inbox:
		if !ok {
			return nil, nil
		}
		return frame, nil
	default:
	}

	select {
	case frame, ok := <-r.inbox:
		if !ok {
			return nil, nil
		}
		return frame, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// Close stops the receive loop and closes both sockets.
func (r *Radio) Close() error {
	r.cancel()
	r.wg.Wait()
	r.pub.Close()
	return r.sub.Close()
}

// Parameters enumerates the inert LoRa radio knobs this mesh exposes
// for introspection/ops tooling.
func (r *Radio) Parameters() []radio.ParamDescriptor {
	return []radio.ParamDescriptor{
		{Name: "frequency", Kind: radio.ParamInt, Min: 137000000, Max: 1020000000, Unit: "Hz", Description: "Center frequency", Step: 1},
		{Name: "spreading_factor", Kind: radio.ParamInt, Min: 7, Max: 12, Unit: "SF", Description: "LoRa spreading factor", Step: 1},
		{Name: "bandwidth", Kind: radio.ParamEnum, Enum: []string{"125000", "250000", "500000"}, Unit: "Hz", Description: "Channel bandwidth"},
		{Name: "coding_rate", Kind: radio.ParamInt, Min: 5, Max: 8, Description: "Coding rate denominator (4/5..4/8)", Step: 1},
		{Name: "tx_power", Kind: radio.ParamInt, Min: -4, Max: 23, Unit: "dBm", Description: "Transmit power", Step: 1},
		{Name: "sync_word", Kind: radio.ParamInt, Min: 0, Max: 255, Description: "Private-network sync word", Step: 1},
	}
}

// GetParam returns the current value of a declared parameter.
func (r *Radio) GetParam(name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch name {
	case "frequency":
		return float64(r.cfg.Frequency), nil
	case "spreading_factor":
		return float64(r.cfg.SpreadingFactor), nil
	case "bandwidth":
		return fmt.Sprintf("%d", r.cfg.Bandwidth), nil
	case "coding_rate":
		return float64(r.cfg.CodingRate), nil
	case "tx_power":
		return float64(r.cfg.TxPower), nil
	case "sync_word":
		return float64(r.cfg.SyncWord), nil
	default:
		return nil, fmt.Errorf("%w: %q", radio.ErrUnknownParameter, name)
	}
}

// SetParam validates and applies a new value for a declared parameter.
func (r *Radio) SetParam(name string, value any) error {
	var desc *radio.ParamDescriptor
	for _, d := range r.Parameters() {
		if d.Name == name {
			d := d
			desc = &d
			break
		}
	}
	if desc == nil {
		return fmt.Errorf("%w: %q", radio.ErrUnknownParameter, name)
	}
	if err := radio.ValidateSet(*desc, value); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch name {
	case "frequency":
		r.cfg.Frequency = uint32(value.(float64))
	case "spreading_factor":
		r.cfg.SpreadingFactor = uint8(value.(float64))
	case "bandwidth":
		var bw uint32
		fmt.Sscanf(value.(string), "%d", &bw)
		r.cfg.Bandwidth = bw
	case "coding_rate":
		r.cfg.CodingRate = uint8(value.(float64))
	case "tx_power":
		r.cfg.TxPower = int8(value.(float64))
	case "sync_word":
		r.cfg.SyncWord = uint8(value.(float64))
	}
	return nil
}
