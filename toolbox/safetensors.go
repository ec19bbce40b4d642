package toolbox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
)

type SafeTensorInfo struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets []int  `json:"data_offsets"`
}

// maxSafeTensorsHeader bounds the JSON header ReadSafeTensors will allocate.
const maxSafeTensorsHeader = 100 << 20

// WriteSafeTensors writes tensors in the safetensors layout: an 8-byte
// little-endian header length, a JSON header, then the F32 payloads in key
// order.
func WriteSafeTensors(w io.Writer, tensors map[string]*AF32) error {
	keys := slices.Sorted(maps.Keys(tensors))

	header := make(map[string]SafeTensorInfo, len(keys))
	offset := 0
	for _, k := range keys {
		t := tensors[k]
		if err := checkStorage(k, t); err != nil {
			return err
		}
		size := 4 * len(t.V)
		header[k] = SafeTensorInfo{
			DType:       "F32",
			Shape:       t.Shape,
			DataOffsets: []int{offset, offset + size},
		}
		offset += size
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	buf := make([]byte, 8, 8+len(headerBytes)+offset)
	binary.LittleEndian.PutUint64(buf, uint64(len(headerBytes)))
	buf = append(buf, headerBytes...)
	for _, k := range keys {
		for _, v := range tensors[k].V {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("while writing tensors: %w", err)
	}
	return nil
}

func checkStorage(key string, t *AF32) error {
	size := 1
	for _, s := range t.Shape {
		size *= s
	}
	if size != len(t.V) {
		return fmt.Errorf("%w: %s has %d values for shape %v", ErrDimensionMismatch, key, len(t.V), t.Shape)
	}
	return nil
}

func ReadSafeTensors(r io.Reader) (map[string]*AF32, error) {
	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}

	if headerLen > maxSafeTensorsHeader {
		return nil, fmt.Errorf("header length %d exceeds limit of %d bytes", headerLen, maxSafeTensorsHeader)
	}

	headerBytes := make([]byte, int(headerLen))
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header: %w", err)
	}

	header := map[string]SafeTensorInfo{}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("while reading header: %w", err)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("while reading tensor payload: %w", err)
	}

	tensors := map[string]*AF32{}
	for k, hdr := range header {
		if hdr.DType != "F32" {
			return nil, fmt.Errorf("unsupported dtype %s", hdr.DType)
		}
		if len(hdr.DataOffsets) != 2 {
			return nil, fmt.Errorf("bad data offsets %v for %s", hdr.DataOffsets, k)
		}

		size := 1
		for _, s := range hdr.Shape {
			if s < 1 {
				return nil, fmt.Errorf("bad shape %v", hdr.Shape)
			}
			size *= s
		}

		begin, end := hdr.DataOffsets[0], hdr.DataOffsets[1]
		if begin < 0 || end > len(payload) || end-begin != size*4 {
			return nil, fmt.Errorf("data offsets %v for %s do not match shape %v", hdr.DataOffsets, k, hdr.Shape)
		}

		tensors[k] = &AF32{
			V:     decodeF32(payload[begin:end]),
			Shape: hdr.Shape,
		}
	}

	return tensors, nil
}

func decodeF32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
