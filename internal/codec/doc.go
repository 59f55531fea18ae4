// Package codec compresses payloads that leave the process: queue frames sent
// over the network and partials stored in the checkpoint file.
//
// Supported algorithms:
//   - none: payload copied as-is
//   - zstd: best ratio; pure Go by default, cgo libzstd with the gozstd build tag
//   - s2: fast with a good ratio
//   - lz4: fastest decompression
//
// All codecs are safe for concurrent use.
package codec
