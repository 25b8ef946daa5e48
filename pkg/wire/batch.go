package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/voxpod/voxpod/pkg/audio"
)

// Outbound audio batches pack several Opus frames into one binary
// message, each frame preceded by a 2-byte big-endian length:
//
//	[len][frame][len][frame]...
//
// Batching amortizes per-message transport overhead on links where the
// device reads one transport message into one buffer.

// EncodeBatch packs frames into a single batch payload.
func EncodeBatch(frames []audio.Frame) ([]byte, error) {
	size := 0
	for _, f := range frames {
		if len(f) > math.MaxUint16 {
			return nil, fmt.Errorf("wire: frame too large: %d bytes", len(f))
		}
		size += 2 + len(f)
	}
	buf := make([]byte, 0, size)
	for _, f := range frames {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(f)))
		buf = append(buf, f...)
	}
	return buf, nil
}

// DecodeBatch unpacks a batch payload into frames. The returned frames
// alias data.
func DecodeBatch(data []byte) ([]audio.Frame, error) {
	var frames []audio.Frame
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, fmt.Errorf("wire: truncated batch header")
		}
		n := int(binary.BigEndian.Uint16(data))
		data = data[2:]
		if len(data) < n {
			return nil, fmt.Errorf("wire: truncated frame: want %d bytes, have %d", n, len(data))
		}
		frames = append(frames, audio.Frame(data[:n]))
		data = data[n:]
	}
	return frames, nil
}
