package fastq

import (
	"bufio"
	"fmt"
	"io"
)

const (
	// Sentinel starts every header line. It is also a legal quality character.
	Sentinel byte = '@'
	// PhredOffset is subtracted from a quality byte to get its score.
	PhredOffset = 33
	// MaxPhred is the highest score representable in the Phred+33 range.
	MaxPhred = 126 - PhredOffset
)

const defaultBufferSize = 64 << 10

// FormatError reports a malformed record.
type FormatError struct {
	Path   string
	Offset int64
	Msg    string
}

func (e *FormatError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("fastq: %s: %s", e.Path, e.Msg)
	}
	if e.Path == "" {
		return fmt.Sprintf("fastq: offset %d: %s", e.Offset, e.Msg)
	}
	return fmt.Sprintf("fastq: %s: offset %d: %s", e.Path, e.Offset, e.Msg)
}

// LineReader reads '\n' terminated lines and tracks the absolute byte offset
// of the next unread line.
type LineReader struct {
	r   *bufio.Reader
	pos int64
}

// NewLineReader wraps r, whose next byte lives at offset pos.
func NewLineReader(r io.Reader, pos int64, bufSize int) *LineReader {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return &LineReader{r: bufio.NewReaderSize(r, bufSize), pos: pos}
}

// Offset is the byte offset of the next unread line.
func (lr *LineReader) Offset() int64 { return lr.pos }

// ReadLine returns the next line including its terminator. The slice is only
// valid until the next call. io.EOF is returned only when nothing was read.
func (lr *LineReader) ReadLine() ([]byte, error) {
	line, err := lr.r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		buf := append([]byte(nil), line...)
		for err == bufio.ErrBufferFull {
			line, err = lr.r.ReadSlice('\n')
			buf = append(buf, line...)
		}
		line = buf
	}
	lr.pos += int64(len(line))
	if err == io.EOF && len(line) > 0 {
		err = nil
	}
	return line, err
}

func (lr *LineReader) readByte() (byte, error) {
	b, err := lr.r.ReadByte()
	if err == nil {
		lr.pos++
	}
	return b, err
}

// trimEOL strips a trailing "\n" or "\r\n".
func trimEOL(line []byte) []byte {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}
	return line[:n]
}

func isBlank(line []byte) bool {
	for _, c := range line {
		switch c {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}
