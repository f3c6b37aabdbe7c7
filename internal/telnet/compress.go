package telnet

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zlib"
)

// StartSequence returns the subnegotiation announcing that everything
// after it is compressed, or nil for an unsupported option.
func StartSequence(opt byte) []byte {
	switch opt {
	case OptCompress:
		return []byte{IAC, SB, OptCompress, WILL, SE}
	case OptCompress2:
		return []byte{IAC, SB, OptCompress2, IAC, SE}
	}
	return nil
}

// Compressor is one connection's outbound MCCP stream.  Each Compress
// call ends on a sync flush so the client can decode everything written
// so far.
type Compressor struct {
	opt byte
	out bytes.Buffer
	zw  *zlib.Writer
}

// NewCompressor starts a stream for the given option.
func NewCompressor(opt byte) (*Compressor, error) {
	if !IsCompressOption(opt) {
		return nil, fmt.Errorf("telnet: unsupported compression option %d", opt)
	}
	c := &Compressor{opt: opt}
	zw, err := zlib.NewWriterLevel(&c.out, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	c.zw = zw
	return c, nil
}

// Option returns the negotiated option code.
func (c *Compressor) Option() byte { return c.opt }

// Compress returns the compressed form of p.  The returned slice is only
// valid until the next call.
func (c *Compressor) Compress(p []byte) ([]byte, error) {
	c.out.Reset()
	if _, err := c.zw.Write(p); err != nil {
		return nil, err
	}
	if err := c.zw.Flush(); err != nil {
		return nil, err
	}
	return c.out.Bytes(), nil
}

// Finish terminates the stream and returns its trailing bytes.
func (c *Compressor) Finish() ([]byte, error) {
	c.out.Reset()
	if err := c.zw.Close(); err != nil {
		return nil, err
	}
	return c.out.Bytes(), nil
}
