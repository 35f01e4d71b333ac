package filter

import (
	"encoding/binary"
	"errors"
	"fmt"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

// ErrChecksum is returned when a chunk fails Fletcher-32 verification.
var ErrChecksum = errors.New("filter: fletcher32 checksum mismatch")

// Fletcher32 appends a checksum on write and verifies it on read.
type Fletcher32 struct{}

func (Fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (Fletcher32) Encode(input []byte) ([]byte, error) {
	out := make([]byte, len(input), len(input)+4)
	copy(out, input)
	return binary.LittleEndian.AppendUint32(out, binpkg.Fletcher32(input)), nil
}

func (Fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("%w: input too short", ErrChecksum)
	}
	data := input[:len(input)-4]
	stored := binary.LittleEndian.Uint32(input[len(input)-4:])
	if got := binpkg.Fletcher32(data); got != stored {
		return nil, fmt.Errorf("%w (stored=0x%08x, computed=0x%08x)", ErrChecksum, stored, got)
	}
	return data, nil
}
