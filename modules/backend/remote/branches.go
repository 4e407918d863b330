package remote

import (
	"bytes"
	"fmt"
	"io"

	"github.com/attaca-vcs/attaca/modules/digest"
)

// encodeBranches/decodeBranches use the same packed layout as the
// kvlocal backend's "Branches" record: leb128(count), then per entry
// leb128(name_len) || name || 32-byte hash.
func encodeBranches(m map[string]digest.Digest) []byte {
	var buf bytes.Buffer
	putUvarint(&buf, uint64(len(m)))
	for name, d := range m {
		putUvarint(&buf, uint64(len(name)))
		buf.WriteString(name)
		buf.Write(d[:])
	}
	return buf.Bytes()
}

func decodeBranches(raw []byte) (map[string]digest.Digest, error) {
	out := make(map[string]digest.Digest)
	r := bytes.NewReader(raw)
	count, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("remote: malformed branches count: %w", err)
	}
	for i := uint64(0); i < count; i++ {
		nameLen, err := readUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("remote: malformed branch name length: %w", err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("remote: truncated branch name: %w", err)
		}
		var d digest.Digest
		if _, err := io.ReadFull(r, d[:]); err != nil {
			return nil, fmt.Errorf("remote: truncated branch hash: %w", err)
		}
		out[string(name)] = d
	}
	return out, nil
}

func equalBranches(a, b map[string]digest.Digest) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
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
