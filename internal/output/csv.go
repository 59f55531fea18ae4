package output

import (
	"bufio"
	"io"
	"strconv"

	"phredmean/internal/stats"
)

// WriteCSV prints one "i,mean" line per position. With withSource the source
// path is printed on its own line first.
func WriteCSV(w io.Writer, res stats.Result, withSource bool) error {
	bw := bufio.NewWriter(w)
	if withSource {
		bw.WriteString(res.Source)
		bw.WriteByte('\n')
	}
	var num []byte
	for i, m := range res.Means {
		num = strconv.AppendInt(num[:0], int64(i), 10)
		bw.Write(num)
		bw.WriteByte(',')
		bw.WriteString(FormatMean(m))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
