package tiled

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// DecodeData returns the raw cells of a layer or chunk payload. A JSON
// array is read as-is; a JSON string is base64 with the given compression.
// want is the expected cell count.
func DecodeData(raw json.RawMessage, encoding, compression string, want int) ([]uint32, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("tiled: layer has no data")
	}

	var cells []uint32
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &cells); err != nil {
			return nil, fmt.Errorf("tiled: decode csv data: %w", err)
		}
	} else {
		if encoding != "" && encoding != "base64" {
			return nil, fmt.Errorf("tiled: unsupported encoding %q", encoding)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("tiled: decode data string: %w", err)
		}
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("tiled: decode base64 data: %w", err)
		}
		b, err = decompress(b, compression)
		if err != nil {
			return nil, err
		}
		if len(b)%4 != 0 {
			return nil, fmt.Errorf("tiled: data length %d is not a multiple of 4", len(b))
		}
		cells = make([]uint32, len(b)/4)
		for i := range cells {
			cells[i] = binary.LittleEndian.Uint32(b[i*4:])
		}
	}

	if want >= 0 && len(cells) != want {
		return nil, fmt.Errorf("tiled: got %d cells, want %d", len(cells), want)
	}
	return cells, nil
}

func decompress(b []byte, compression string) ([]byte, error) {
	var r io.Reader
	switch compression {
	case "":
		return b, nil
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("tiled: gzip: %w", err)
		}
		defer gr.Close()
		r = gr
	case "zlib":
		zr, err := zlib.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("tiled: zlib: %w", err)
		}
		defer zr.Close()
		r = zr
	case "zstd":
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("tiled: zstd: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(b, nil)
		if err != nil {
			return nil, fmt.Errorf("tiled: zstd: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tiled: unsupported compression %q", compression)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("tiled: %s: %w", compression, err)
	}
	return out, nil
}
