// Package protocol defines the SLLL wire format and its (de)serialization.
//
// A packet is a fixed 18-byte header (version, sender id, kind, nonce)
// followed by a ciphertext of the same length as the plaintext and a
// trailing 16-byte AES-GCM authentication tag. Parsing never
// authenticates a packet; that is the aead package's job.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Wire format constants.
const (
	Version = 1

	SenderIDSize = 4
	KindSize     = 1
	NonceSize    = 12
	TagSize      = 16

	HeaderSize = 1 + SenderIDSize + KindSize + NonceSize // 18
	Overhead   = HeaderSize + TagSize                    // 34

	// MaxPayloadSize is the largest application payload a single SLLL
	// packet may carry, chosen to fit one LoRa frame at common SF/BW
	// settings.
	MaxPayloadSize = 128
)

// Kind is the 1-byte message-kind enumeration.
type Kind uint8

const (
	KindData      Kind = 1
	KindAck       Kind = 2
	KindCommand   Kind = 3
	KindResponse  Kind = 4
	KindDiscovery Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindAck:
		return "ACK"
	case KindCommand:
		return "COMMAND"
	case KindResponse:
		return "RESPONSE"
	case KindDiscovery:
		return "DISCOVERY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// IsKnown reports whether k is one of the enumerated kinds. Parse
// rejects frames whose kind is not known with ErrUnknownKind.
func IsKnown(k Kind) bool {
	switch k {
	case KindData, KindAck, KindCommand, KindResponse, KindDiscovery:
		return true
	default:
		return false
	}
}

// Header is the 18-byte authenticated-but-unencrypted span of a packet.
type Header struct {
	Version  uint8
	SenderID uint32
	Kind     Kind
	Nonce    [NonceSize]byte
}

// Encode serializes the header.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Version
	binary.BigEndian.PutUint32(buf[1:5], h.SenderID)
	buf[5] = uint8(h.Kind)
	copy(buf[6:18], h.Nonce[:])
	return buf
}

// DecodeHeader parses a header from the start of data. data must be at
// least HeaderSize bytes; callers that have already checked the packet
// length via Parse may call this directly.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	var h Header
	h.Version = data[0]
	h.SenderID = binary.BigEndian.Uint32(data[1:5])
	h.Kind = Kind(data[5])
	copy(h.Nonce[:], data[6:18])
	return h, nil
}

// BuildNonce constructs the 12-byte nonce from a sender's outbound
// counter and its own sender id: big-endian(counter, 8) ∥
// big-endian(senderID, 4). Counter and sender-id uniqueness together
// guarantee the pair is never reused under a given key.
func BuildNonce(counter uint64, senderID uint32) [NonceSize]byte {
	var nonce [NonceSize]byte
	binary.BigEndian.PutUint64(nonce[0:8], counter)
	binary.BigEndian.PutUint32(nonce[8:12], senderID)
	return nonce
}

// Packet is a fully decoded (but not yet decrypted) SLLL frame.
type Packet struct {
	Header
	Ciphertext []byte
	Tag        [TagSize]byte
}

// Serialize writes header || ciphertext || tag.
func (p *Packet) Serialize() []byte {
	buf := make([]byte, HeaderSize+len(p.Ciphertext)+TagSize)
	copy(buf[:HeaderSize], p.Header.Encode())
	copy(buf[HeaderSize:HeaderSize+len(p.Ciphertext)], p.Ciphertext)
	copy(buf[HeaderSize+len(p.Ciphertext):], p.Tag[:])
	return buf
}

// HeaderAndCiphertext returns header || ciphertext: every byte of the
// frame except the trailing tag. The AEAD layer binds only the header
// (Header.Encode) as associated data; AES-GCM authenticates the
// ciphertext itself. It is kept as a named accessor, rather than
// re-slicing ad hoc, because the header/tag boundary is easy to get
// wrong by one byte.
func (p *Packet) HeaderAndCiphertext() []byte {
	buf := make([]byte, HeaderSize+len(p.Ciphertext))
	copy(buf[:HeaderSize], p.Header.Encode())
	copy(buf[HeaderSize:], p.Ciphertext)
	return buf
}

// Parse decodes a wire frame into a Packet without authenticating it.
// It rejects frames shorter than Overhead, frames with the wrong
// version, and frames whose kind is outside the enumeration.
func Parse(data []byte) (*Packet, error) {
	if len(data) < Overhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}

	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}
	if !IsKnown(h.Kind) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(h.Kind))
	}

	ctLen := len(data) - Overhead
	p := &Packet{Header: h}
	if ctLen > 0 {
		p.Ciphertext = make([]byte, ctLen)
		copy(p.Ciphertext, data[HeaderSize:HeaderSize+ctLen])
	}
	copy(p.Tag[:], data[HeaderSize+ctLen:])
	return p, nil
}

// CounterFromNonce recovers the outbound counter encoded in the first
// 8 bytes of a nonce built by BuildNonce.
func CounterFromNonce(nonce [NonceSize]byte) uint64 {
	return binary.BigEndian.Uint64(nonce[0:8])
}

// New builds a Packet ready for AEAD encryption and serialization.
func New(senderID uint32, kind Kind, counter uint64) *Packet {
	return &Packet{
		Header: Header{
			Version:  Version,
			SenderID: senderID,
			Kind:     kind,
			Nonce:    BuildNonce(counter, senderID),
		},
	}
}
