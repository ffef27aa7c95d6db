package terrain

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Terrain buffers travel as base64(zstd(bytes)). A full 2000x1000 map is
// 2 MB raw; zstd gets the typical land/water runs down to a few percent.

func EncodeBuffer(cells []byte) (string, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return "", err
	}
	if _, err := enc.Write(cells); err != nil {
		_ = enc.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func DecodeBuffer(encoded string, maxLen int) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("terrain base64: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(raw, make([]byte, 0, maxLen))
	if err != nil {
		return nil, fmt.Errorf("terrain zstd: %w", err)
	}
	if len(out) > maxLen {
		return nil, fmt.Errorf("terrain buffer is %d bytes, cap %d", len(out), maxLen)
	}
	return out, nil
}

// FromInit decodes an encoded terrain buffer and builds the Store.
func FromInit(width, height int, encoded string, landTiles int) (*Store, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("bad dimensions %dx%d", width, height)
	}
	if width*height > maxTiles {
		return nil, fmt.Errorf("map too large: %d tiles", width*height)
	}
	cells, err := DecodeBuffer(encoded, width*height)
	if err != nil {
		return nil, err
	}
	return New(width, height, cells, landTiles)
}
