package fastq

import (
	"fmt"
	"io"
)

// Resolve moves rs to the first record start at or after start and returns
// its offset. The result is never beyond limit: when no record starts in
// [start, limit) the chunk is empty and limit is returned.
//
// A line starting with the sentinel is only a candidate. Quality lines may
// start with '@' too, so one more line is read: if that line also starts with
// '@' the candidate was the previous record's quality line and the record
// starts at the second line. A partial first line (start not preceded by a
// newline) is never a candidate.
func Resolve(rs io.ReadSeeker, start, limit int64) (int64, error) {
	if start < 0 || start > limit {
		return 0, fmt.Errorf("fastq: invalid range [%d, %d)", start, limit)
	}
	if start == limit {
		if _, err := rs.Seek(limit, io.SeekStart); err != nil {
			return 0, err
		}
		return limit, nil
	}

	from := start
	if start > 0 {
		from = start - 1
	}
	if _, err := rs.Seek(from, io.SeekStart); err != nil {
		return 0, err
	}
	lr := NewLineReader(rs, from, 0)
	if start > 0 {
		b, err := lr.readByte()
		if err != nil {
			if err == io.EOF {
				return seekTo(rs, limit)
			}
			return 0, err
		}
		if b != '\n' {
			if _, err := lr.ReadLine(); err != nil && err != io.EOF {
				return 0, err
			}
		}
	}

	off, err := resolveLines(lr, limit)
	if err != nil {
		return 0, err
	}
	return seekTo(rs, off)
}

func resolveLines(lr *LineReader, limit int64) (int64, error) {
	for lr.Offset() < limit {
		first := lr.Offset()
		line, err := lr.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if len(line) == 0 || line[0] != Sentinel {
			continue
		}

		second := lr.Offset()
		next, err := lr.ReadLine()
		if err != nil && err != io.EOF {
			return 0, err
		}
		if len(next) > 0 && next[0] == Sentinel {
			return min(second, limit), nil
		}
		return first, nil
	}
	return limit, nil
}

func seekTo(rs io.Seeker, off int64) (int64, error) {
	if _, err := rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return off, nil
}
