// File: pkg/cache/codec.go

package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"github.com/ruslano69/wrangle/pkg/core/table"
)

// Формат блока кеша:
//
//	[0:4]   магическая последовательность "WRC1"
//	[4:12]  xxh3-хеш несжатого текста растра (big-endian)
//	[12:]   текст растра, сжатый zstd
//
// Хеш вычисляется до сжатия, поэтому повреждение ловится и в самих
// данных, и в сжатом контейнере.
var blockMagic = []byte("WRC1")

const headerSize = 12

// Codec сериализует растры в компактные блоки и обратно.
// Использует zstd для сжатия и xxh3 (64-bit) для проверки целостности.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec создает готовый к использованию кодек.
// level: 1 (самый быстрый) - 22 (лучшее сжатие). Значение <= 0 дает уровень 3.
func NewCodec(level int) (*Codec, error) {
	if level <= 0 {
		level = 3
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(2),
	)
	if err != nil {
		return nil, fmt.Errorf("cache: create zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(2))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("cache: create zstd decoder: %w", err)
	}

	return &Codec{enc: enc, dec: dec}, nil
}

// Encode упаковывает растр в блок кеша.
func (c *Codec) Encode(r *table.Raster) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cache: cannot encode nil raster")
	}

	payload := table.EncodeRaster(r)

	header := make([]byte, headerSize)
	copy(header, blockMagic)
	binary.BigEndian.PutUint64(header[len(blockMagic):], xxh3.Hash(payload))

	// EncodeAll дописывает сжатые данные к переданному буферу.
	return c.enc.EncodeAll(payload, header), nil
}

// Decode распаковывает блок кеша и проверяет контрольную сумму.
func (c *Codec) Decode(block []byte) (*table.Raster, error) {
	if len(block) < headerSize {
		return nil, fmt.Errorf("cache: block too short: %d bytes", len(block))
	}
	if !bytes.Equal(block[:len(blockMagic)], blockMagic) {
		return nil, fmt.Errorf("cache: bad block magic")
	}

	expected := binary.BigEndian.Uint64(block[len(blockMagic):headerSize])

	payload, err := c.dec.DecodeAll(block[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("cache: decompress block: %w", err)
	}

	if actual := xxh3.Hash(payload); actual != expected {
		return nil, fmt.Errorf(
			"cache: checksum mismatch: expected %016x, got %016x (data corruption detected)",
			expected, actual,
		)
	}

	raster, err := table.DecodeRaster(payload)
	if err != nil {
		return nil, fmt.Errorf("cache: decode raster: %w", err)
	}
	return raster, nil
}

// Close освобождает ресурсы кодека.
func (c *Codec) Close() {
	if c.enc != nil {
		c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
}
