package packets

import (
	"fmt"
	"io"
)

// FixedHeader is the first 2-5 bytes of every MQTT control packet:
// one byte of packet type and flags, followed by a Variable Byte Integer
// remaining length.
type FixedHeader struct {
	PacketType      uint8
	Flags           uint8
	RemainingLength int
}

func (h *FixedHeader) firstByte() byte {
	return (h.PacketType << 4) | (h.Flags & 0x0F)
}

// appendBytes appends the wire form of the fixed header to dst. Packet
// Encode methods use this to build a full packet in one contiguous buffer
// before handing it to a writer or a connection.
func (h *FixedHeader) appendBytes(dst []byte) []byte {
	dst = append(dst, h.firstByte())
	return appendVarInt(dst, h.RemainingLength)
}

// WriteTo streams the fixed header directly to w, writing the length byte
// by byte when w exposes WriteByte so no intermediate slice is needed.
func (h *FixedHeader) WriteTo(w io.Writer) (int64, error) {
	if bw, ok := w.(io.ByteWriter); ok {
		return h.writeByteAtATime(bw)
	}

	var buf [5]byte
	full := h.appendBytes(buf[:0])
	nw, err := w.Write(full)
	return int64(nw), err
}

func (h *FixedHeader) writeByteAtATime(bw io.ByteWriter) (int64, error) {
	var written int64

	if err := bw.WriteByte(h.firstByte()); err != nil {
		return written, err
	}
	written++

	remaining := h.RemainingLength
	for {
		digit := byte(remaining % 128)
		remaining /= 128
		if remaining > 0 {
			digit |= 0x80
		}
		if err := bw.WriteByte(digit); err != nil {
			return written, err
		}
		written++
		if remaining == 0 {
			return written, nil
		}
	}
}

// DecodeFixedHeader reads and parses a fixed header from r.
func DecodeFixedHeader(r io.Reader) (*FixedHeader, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, err
	}

	remainingLength, err := decodeVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode remaining length: %w", err)
	}

	return &FixedHeader{
		PacketType:      first[0] >> 4,
		Flags:           first[0] & 0x0F,
		RemainingLength: remainingLength,
	}, nil
}
