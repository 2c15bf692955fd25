package cache

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec compresses cached payloads with zstd. The zero value is not usable;
// create one with NewCodec. A Codec is safe for concurrent use.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

func (c *Codec) Encode(raw []byte) []byte {
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
}

func (c *Codec) Decode(compressed []byte) ([]byte, error) {
	raw, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return raw, nil
}
