package vector

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
)

// Encode packs vec as little-endian IEEE 754 float32 values. The length is
// derived from the blob size on decode.
func Encode(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// Decode unpacks a blob produced by Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector: invalid blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// Blob is an embedding column stored as an encoded BLOB. An empty Blob is
// written as NULL.
type Blob []float32

// GormDataType maps the column to the dialect's binary type.
func (Blob) GormDataType() string {
	return "bytes"
}

// Value implements driver.Valuer.
func (b Blob) Value() (driver.Value, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return Encode(b), nil
}

// Scan implements sql.Scanner.
func (b *Blob) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b = nil
		return nil
	case []byte:
		vec, err := Decode(v)
		if err != nil {
			return err
		}
		*b = vec
		return nil
	case string:
		vec, err := Decode([]byte(v))
		if err != nil {
			return err
		}
		*b = vec
		return nil
	default:
		return fmt.Errorf("vector: cannot scan %T into Blob", src)
	}
}
