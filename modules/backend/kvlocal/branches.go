package kvlocal

import (
	"bytes"
	"fmt"
	"io"

	"github.com/attaca-vcs/attaca/modules/digest"
)

// encodeBranchesRaw/decodeBranches implement the "Branches" packed message
// from §6.1 ({entries: [{name, hash}]}) as a small fixed binary layout:
// leb128(count), then per entry leb128(name_len) || name || 32-byte hash.
func encodeBranchesRaw(m map[string]digest.Digest) []byte {
	var buf bytes.Buffer
	putUvarint(&buf, uint64(len(m)))
	for name, d := range m {
		putUvarint(&buf, uint64(len(name)))
		buf.WriteString(name)
		buf.Write(d[:])
	}
	return buf.Bytes()
}

func decodeBranches(raw []byte, out map[string]digest.Digest) error {
	r := bytes.NewReader(raw)
	count, err := readUvarint(r)
	if err != nil {
		return fmt.Errorf("kvlocal: malformed branches count: %w", err)
	}
	for i := uint64(0); i < count; i++ {
		nameLen, err := readUvarint(r)
		if err != nil {
			return fmt.Errorf("kvlocal: malformed branch name length: %w", err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return fmt.Errorf("kvlocal: truncated branch name: %w", err)
		}
		var d digest.Digest
		if _, err := io.ReadFull(r, d[:]); err != nil {
			return fmt.Errorf("kvlocal: truncated branch hash: %w", err)
		}
		out[string(name)] = d
	}
	return nil
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [10]byte
	n := 0
	for v >= 0x80 {
		tmp[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	tmp[n] = byte(v)
	buf.Write(tmp[:n+1])
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	var x uint64
	var s uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b < 0x80 {
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
}
