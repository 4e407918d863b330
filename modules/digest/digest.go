// Package digest implements the content-addressing digest scheme: a
// 32-byte SHA3-256 identifier with a streaming writer interface, plus the
// canonical LEB128-framed encoding that mixes a blob's own bytes with the
// digests of everything it references.
package digest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"

	"golang.org/x/crypto/sha3"
)

const (
	Size    = 32
	HexSize = Size * 2

	hashName = "SHA3-256"

	reverseHexTable = "" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09\xff\xff\xff\xff\xff\xff" +
		"\xff\x0a\x0b\x0c\x0d\x0e\x0f\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\x0a\x0b\x0c\x0d\x0e\x0f\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff"
)

// Digest is a SHA3-256 content identifier, portable across backends.
type Digest [Size]byte

var Zero Digest

func (d Digest) IsZero() bool {
	return d == Zero
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Digest) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// New builds a Digest from raw hex text, ignoring malformed input the way
// the teacher's NewHash does; use Parse when the error matters.
func New(s string) Digest {
	var d Digest
	b, _ := hex.DecodeString(s)
	copy(d[:], b)
	return d
}

func ValidHex(s string) bool {
	if len(s) != HexSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		if reverseHexTable[s[i]] > 0x0f {
			return false
		}
	}
	return true
}

func Parse(s string) (Digest, error) {
	if !ValidHex(s) {
		return Zero, fmt.Errorf("digest: %q is not a valid SHA3-256 hex digest", s)
	}
	return New(s), nil
}

// Slice attaches sort.Interface to []Digest in ascending byte order.
type Slice []Digest

func (s Slice) Len() int           { return len(s) }
func (s Slice) Less(i, j int) bool { return bytes.Compare(s[i][:], s[j][:]) < 0 }
func (s Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func Sort(s []Digest) { sort.Sort(Slice(s)) }

// Hasher is a streaming SHA3-256 writer.
type Hasher struct {
	hash.Hash
}

func NewHasher() Hasher {
	return Hasher{Hash: sha3.New256()}
}

func (h Hasher) Sum() (d Digest) {
	copy(d[:], h.Hash.Sum(nil))
	return
}

// Of is a convenience one-shot digest of a single byte string with no
// references, used by tests and by callers hashing already-framed bytes.
func Of(b []byte) Digest {
	h := NewHasher()
	_, _ = h.Write(b)
	return h.Sum()
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

// Frame builds the canonical digest-input framing described by §4.2:
//
//	<hash-name>\0<leb128 hash-size><leb128 blob-len><leb128 ref-count>0<digest(blob)><digest(ref_1)>...<digest(ref_n)>
//
// and returns its SHA3-256 digest. blob is the object's own canonical
// bytes; refs are the digests of its references in declared order.
func Frame(blob []byte, refs []Digest) Digest {
	var buf bytes.Buffer
	buf.WriteString(hashName)
	buf.WriteByte(0)
	putUvarint(&buf, Size)
	putUvarint(&buf, uint64(len(blob)))
	putUvarint(&buf, uint64(len(refs)))
	buf.WriteByte(0)
	selfHasher := NewHasher()
	_, _ = selfHasher.Write(blob)
	selfDigest := selfHasher.Sum()
	buf.Write(selfDigest[:])
	for _, r := range refs {
		buf.Write(r[:])
	}
	return Of(buf.Bytes())
}
