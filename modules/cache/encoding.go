package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// encodeEntry/decodeEntry implement a small packed message for one cache
// record, in the same fixed-schema-via-leb128 spirit as the Branches
// message (§6.1): a presence byte per optional field followed by its
// payload, so the schema can grow new optional fields without breaking old
// readers.
func encodeEntry(e entry) []byte {
	var buf bytes.Buffer
	if e.hasDigest {
		buf.WriteByte(1)
		buf.Write(e.digest[:])
	} else {
		buf.WriteByte(0)
	}
	putUvarint(&buf, e.inode.Generation)
	putUvarint(&buf, e.inode.Number)
	if e.inode.HasVersion {
		buf.WriteByte(1)
		putUvarint(&buf, e.inode.Version)
	} else {
		buf.WriteByte(0)
		putUvarint(&buf, uint64(e.inode.CtimeNs))
		putUvarint(&buf, uint64(e.inode.MtimeNs))
	}
	putUvarint(&buf, uint64(e.timestampNs))
	return buf.Bytes()
}

func decodeEntry(raw []byte) (entry, error) {
	r := bytes.NewReader(raw)
	var e entry

	hasDigest, err := r.ReadByte()
	if err != nil {
		return entry{}, fmt.Errorf("cache entry: %w", err)
	}
	if hasDigest == 1 {
		e.hasDigest = true
		if _, err := readFull(r, e.digest[:]); err != nil {
			return entry{}, err
		}
	}

	gen, err := readUvarint(r)
	if err != nil {
		return entry{}, err
	}
	num, err := readUvarint(r)
	if err != nil {
		return entry{}, err
	}
	e.inode.Generation = gen
	e.inode.Number = num

	hasVersion, err := r.ReadByte()
	if err != nil {
		return entry{}, fmt.Errorf("cache entry: %w", err)
	}
	if hasVersion == 1 {
		e.inode.HasVersion = true
		v, err := readUvarint(r)
		if err != nil {
			return entry{}, err
		}
		e.inode.Version = v
	} else {
		c, err := readUvarint(r)
		if err != nil {
			return entry{}, err
		}
		m, err := readUvarint(r)
		if err != nil {
			return entry{}, err
		}
		e.inode.CtimeNs = int64(c)
		e.inode.MtimeNs = int64(m)
	}

	ts, err := readUvarint(r)
	if err != nil {
		return entry{}, err
	}
	e.timestampNs = int64(ts)
	return e, nil
}

func readFull(r *bytes.Reader, dst []byte) (int, error) {
	n := 0
	for n < len(dst) {
		dn, err := r.Read(dst[n:])
		n += dn
		if err != nil {
			return n, fmt.Errorf("cache entry: %w", err)
		}
	}
	return n, nil
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("cache entry: %w", err)
	}
	return v, nil
}
