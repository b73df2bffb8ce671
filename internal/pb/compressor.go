package pb

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

// zstdCompressor implements google.golang.org/grpc/encoding.Compressor so
// large StreamTransactions batches travel the wire zstd-compressed instead
// of raw JSON. Encoders and decoders aren't safe for concurrent use, so each
// is pooled and Reset for the duration of a single Compress/Decompress call.
type zstdCompressor struct {
	encoders sync.Pool
	decoders sync.Pool
}

func (z *zstdCompressor) Name() string { return "zstd" }

type pooledWriter struct {
	*zstd.Encoder
	pool *sync.Pool
}

func (w *pooledWriter) Close() error {
	err := w.Encoder.Close()
	w.pool.Put(w.Encoder)
	return err
}

func (z *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	enc := z.encoders.Get().(*zstd.Encoder)
	enc.Reset(w)
	return &pooledWriter{Encoder: enc, pool: &z.encoders}, nil
}

type pooledReader struct {
	*zstd.Decoder
	pool *sync.Pool
}

func (r *pooledReader) Read(p []byte) (int, error) {
	if r.Decoder == nil {
		return 0, io.EOF
	}
	n, err := r.Decoder.Read(p)
	if err == io.EOF {
		r.pool.Put(r.Decoder)
		r.Decoder = nil
	}
	return n, err
}

func (z *zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	dec := z.decoders.Get().(*zstd.Decoder)
	if err := dec.Reset(r); err != nil {
		z.decoders.Put(dec)
		return nil, err
	}
	return &pooledReader{Decoder: dec, pool: &z.decoders}, nil
}

func init() {
	c := &zstdCompressor{}
	c.encoders.New = func() interface{} {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			panic(err)
		}
		return enc
	}
	c.decoders.New = func() interface{} {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic(err)
		}
		return dec
	}
	encoding.RegisterCompressor(c)
}
