package session

import (
	"bufio"
	"fmt"
	"io"
)

func formatKey(key uint64) string {
	return fmt.Sprintf("%012X", key&0xffffffffffff)
}

// WriteReport prints the key count followed by one 12-digit hex key per line.
func WriteReport(w io.Writer, keys []uint64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Keys found: %d\n", len(keys))
	for _, k := range keys {
		fmt.Fprintln(bw, formatKey(k))
	}
	return bw.Flush()
}
