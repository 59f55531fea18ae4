// Package fastq reads the fixed four-line FASTQ layout by byte range.
//
// A chunk handed to a worker may start anywhere inside a record. Resolve snaps
// such an offset to the next true record start and QualityScanner then walks
// only the quality lines of the records whose header starts inside the chunk.
// A record is always attributed to the chunk that holds its first byte.
package fastq
