package codec

import (
	"fmt"
	"strings"
)

// Compressor compresses one payload. The returned slice is owned by the
// caller; the input is not modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor of the same Type.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions.
type Codec interface {
	Compressor
	Decompressor
}

// Type names a compression algorithm. Its ID travels in frame headers.
type Type byte

const (
	None Type = iota
	Zstd
	S2
	LZ4
)

var typeNames = map[Type]string{
	None: "none",
	Zstd: "zstd",
	S2:   "s2",
	LZ4:  "lz4",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

// ParseType maps a flag value such as "zstd" to its Type.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return None, nil
	}
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return None, fmt.Errorf("unknown codec %q (want none, zstd, s2 or lz4)", s)
}

// Names lists the supported codec names.
func Names() []string {
	return []string{"none", "zstd", "s2", "lz4"}
}

// CreateCodec returns the codec for t. target describes the caller for error
// messages.
func CreateCodec(t Type, target string) (Codec, error) {
	switch t {
	case None:
		return NewNoOpCompressor(), nil
	case Zstd:
		return NewZstdCompressor(), nil
	case S2:
		return NewS2Compressor(), nil
	case LZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, t)
	}
}

var builtinCodecs = map[Type]Codec{
	None: NewNoOpCompressor(),
	Zstd: NewZstdCompressor(),
	S2:   NewS2Compressor(),
	LZ4:  NewLZ4Compressor(),
}

// GetCodec returns the shared built-in codec for t.
func GetCodec(t Type) (Codec, error) {
	if c, ok := builtinCodecs[t]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("unsupported compression type: %s", t)
}
