package codec

// ZstdCompressor compresses with Zstandard. The implementation is chosen at
// build time: pure Go by default, libzstd via cgo with -tags gozstd.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

func NewZstdCompressor() ZstdCompressor { return ZstdCompressor{} }
