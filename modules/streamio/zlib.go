package streamio

import (
	"bytes"
	"compress/zlib"
	"io"
	"sync"
)

var zlibInitBytes = []byte{0x78, 0x9c, 0x01, 0x00, 0x00, 0xff, 0xff, 0x00, 0x00, 0x00, 0x01}

var (
	zlibReader = sync.Pool{
		New: func() any {
			r, _ := zlib.NewReader(bytes.NewReader(zlibInitBytes))
			return &ZlibDecoder{reader: r.(zlibReadCloser)}
		},
	}
	zlibWriter = sync.Pool{
		New: func() any {
			return &ZlibEncoder{Writer: zlib.NewWriter(nil)}
		},
	}
)

type zlibReadCloser interface {
	io.ReadCloser
	zlib.Resetter
}

// ZlibDecoder is a poolable zlib reader, dict-reset from a pooled byte slice
// so repeated small-object inflation (§4.3 codec) doesn't allocate per call.
type ZlibDecoder struct {
	Reader io.Reader
	reader zlibReadCloser
	dict   *[]byte
}

// GetZlibReader returns a ZlibDecoder that is managed by a sync.Pool.
//
// After use, the ZlibDecoder should be put back into the sync.Pool by
// calling PutZlibReader.
func GetZlibReader(r io.Reader) (*ZlibDecoder, error) {
	z := zlibReader.Get().(*ZlibDecoder)
	z.dict = GetByteSlice()
	if err := z.reader.Reset(r, *z.dict); err != nil {
		return z, err
	}
	z.Reader = z.reader
	return z, nil
}

// PutZlibReader puts z back into its sync.Pool, returning its dictionary
// byte slice to the pool as well.
func PutZlibReader(z *ZlibDecoder) {
	if z.dict != nil {
		PutByteSlice(z.dict)
		z.dict = nil
	}
	zlibReader.Put(z)
}

// ZlibEncoder is a poolable zlib writer.
type ZlibEncoder struct {
	*zlib.Writer
}

// GetZlibWriter returns a ZlibEncoder that is managed by a sync.Pool.
// Returns a writer that is reset with w and ready for use.
//
// After use, the ZlibEncoder should be put back into the sync.Pool by
// calling PutZlibWriter.
func GetZlibWriter(w io.Writer) *ZlibEncoder {
	z := zlibWriter.Get().(*ZlibEncoder)
	z.Reset(w)
	return z
}

// PutZlibWriter puts w back into its sync.Pool. Callers must Close w
// themselves first to flush any buffered output.
func PutZlibWriter(w *ZlibEncoder) {
	zlibWriter.Put(w)
}
