//go:build gozstd && cgo

package codec

import "github.com/valyala/gozstd"

func (ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, 3), nil
}

func (ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return gozstd.Decompress(nil, data)
}
