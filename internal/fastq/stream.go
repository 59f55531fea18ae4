package fastq

import (
	"context"
	"fmt"
	"io"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// StreamQualities reads every record of a whole FASTQ stream and calls fn
// with its quality string. path may be "-" for stdin; gzip input is detected.
// Cancellation is checked between records.
func StreamQualities(ctx context.Context, path string, fn func(qual []byte) error) error {
	r, err := fastx.NewReader(seq.Unlimit, path, fastx.DefaultIDRegexp)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	for n := 0; ; n++ {
		if n&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if rec.Seq.Qual == nil && len(rec.Seq.Seq) > 0 {
			return &FormatError{Path: path, Offset: -1, Msg: fmt.Sprintf("record %q has no quality line", rec.ID)}
		}
		if err := fn(rec.Seq.Qual); err != nil {
			return err
		}
	}
}
