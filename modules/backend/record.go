package backend

import (
	"bytes"
	"fmt"
	"io"

	"github.com/attaca-vcs/attaca/modules/digest"
)

// EncodeRecord serialises a StoredBlob as §6.1/§6.2's wire record:
//
//	leb128(blob_len) || blob_bytes || canonical-ref-encoding
//
// where canonical-ref-encoding is leb128(ref_count) followed by each
// reference's 32-byte digest, in order. Every concrete Store
// implementation (fsblob, kvlocal, remote) shares this framing so a blob
// written by one is byte-identical to one written by another.
func EncodeRecord(blob StoredBlob) []byte {
	var buf bytes.Buffer
	putUvarint(&buf, uint64(len(blob.Bytes)))
	buf.Write(blob.Bytes)
	putUvarint(&buf, uint64(len(blob.Refs)))
	for _, r := range blob.Refs {
		buf.Write(r[:])
	}
	return buf.Bytes()
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
			if s >= 64 || (s == 63 && b > 1) {
				return 0, fmt.Errorf("backend: uvarint overflow")
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
}

// DecodeRecord is EncodeRecord's inverse.
func DecodeRecord(raw []byte) (StoredBlob, error) {
	r := bytes.NewReader(raw)
	blobLen, err := readUvarint(r)
	if err != nil {
		return StoredBlob{}, fmt.Errorf("backend: malformed record length: %w", err)
	}
	body := make([]byte, blobLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return StoredBlob{}, fmt.Errorf("backend: truncated record body: %w", err)
	}
	refCount, err := readUvarint(r)
	if err != nil {
		return StoredBlob{}, fmt.Errorf("backend: malformed ref count: %w", err)
	}
	refs := make([]digest.Digest, refCount)
	for i := range refs {
		if _, err := io.ReadFull(r, refs[i][:]); err != nil {
			return StoredBlob{}, fmt.Errorf("backend: truncated ref list: %w", err)
		}
	}
	return StoredBlob{Bytes: body, Refs: refs}, nil
}
