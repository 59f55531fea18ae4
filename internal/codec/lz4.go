package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// maxLZ4Size bounds the decoded size accepted from a peer.
const maxLZ4Size = 128 << 20

var lz4CompressorPool = sync.Pool{
	New: func() any { return &lz4.Compressor{} },
}

// LZ4Compressor writes an LZ4 block prefixed with the decoded length, so
// decompression allocates exactly once.
type LZ4Compressor struct{}

var _ Codec = (*LZ4Compressor)(nil)

func NewLZ4Compressor() LZ4Compressor { return LZ4Compressor{} }

func (LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dst := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	binary.BigEndian.PutUint32(dst, uint32(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst[4:])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible: CompressBlock leaves dst untouched.
		return nil, errors.New("lz4: incompressible block")
	}
	return dst[:4+n], nil
}

func (LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("lz4: short block (%d bytes)", len(data))
	}
	size := binary.BigEndian.Uint32(data)
	if size > maxLZ4Size {
		return nil, fmt.Errorf("lz4: block claims %d bytes, limit %d", size, maxLZ4Size)
	}
	buf := make([]byte, size)
	n, err := lz4.UncompressBlock(data[4:], buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
