package proxy

import (
	"encoding/hex"
	"log"
	"unicode/utf8"

	"listview/ajax"
)

const dumpLimit = 256

// dumpRows logs the head of a finished rows response. Non-text bodies are
// shown as hex.
func dumpRows(logger *log.Logger, id string, req *ajax.Request) {
	if logger == nil || req == nil {
		return
	}
	b := req.ResponseBody()
	head, size := dumpHead(b)
	logger.Printf("ROWS %s %s status=%d %d bytes (first %d shown): %s", id, req.URL(), req.Status(), len(b), size, head)
}

// dumpHead returns at most dumpLimit bytes of b, cut on a rune boundary, and
// the number of bytes it covers.
func dumpHead(b []byte) (string, int) {
	size := len(b)
	if size > dumpLimit {
		size = dumpLimit
	}
	if size < len(b) {
		for i := 0; i < utf8.UTFMax-1 && size > 0 && !utf8.RuneStart(b[size]); i++ {
			size--
		}
	}
	if head := b[:size]; utf8.Valid(head) {
		return string(head), size
	}
	return hexBlock(b, 0, size), size
}

func hexBlock(b []byte, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(b) {
		end = len(b)
	}
	if start >= end {
		return ""
	}
	segment := b[start:end]
	dst := make([]byte, hex.EncodedLen(len(segment)))
	hex.Encode(dst, segment)
	return string(dst)
}
