package fastq

import "io"

// QualityScanner yields the quality line of every record whose header starts
// before stop. Records that start before stop are read in full even when they
// end past it. The reader must already be positioned on a record start.
type QualityScanner struct {
	lr    *LineReader
	path  string
	stop  int64
	qual  []byte
	start int64
	err   error
}

// NewQualityScanner scans r, whose next byte lives at offset start.
func NewQualityScanner(r io.Reader, path string, start, stop int64) *QualityScanner {
	return &QualityScanner{lr: NewLineReader(r, start, 0), path: path, stop: stop, start: start}
}

// Scan advances to the next record. It returns false at stop, at end of input,
// on a truncated final record, or on error.
func (s *QualityScanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.lr.Offset() < s.stop {
		recStart := s.lr.Offset()
		header, err := s.lr.ReadLine()
		if err == io.EOF {
			return false
		}
		if err != nil {
			s.err = err
			return false
		}
		if isBlank(header) {
			continue
		}
		if header[0] != Sentinel {
			s.err = &FormatError{Path: s.path, Offset: recStart, Msg: "record header does not start with '@'"}
			return false
		}

		// sequence + separator
		for i := 0; i < 2; i++ {
			if _, err := s.lr.ReadLine(); err != nil {
				if err != io.EOF {
					s.err = err
				}
				return false
			}
		}
		qual, err := s.lr.ReadLine()
		if err != nil {
			if err != io.EOF {
				s.err = err
			}
			return false
		}
		s.qual = trimEOL(qual)
		s.start = recStart
		return true
	}
	return false
}

// Quality returns the current quality line without its terminator. It is only
// valid until the next call to Scan.
func (s *QualityScanner) Quality() []byte { return s.qual }

// RecordOffset is the byte offset of the current record's header.
func (s *QualityScanner) RecordOffset() int64 { return s.start }

// Offset is the byte offset of the next unread line.
func (s *QualityScanner) Offset() int64 { return s.lr.Offset() }

// Path is the source the scanner reads.
func (s *QualityScanner) Path() string { return s.path }

// Err returns the first non-EOF error.
func (s *QualityScanner) Err() error { return s.err }
