package store

import (
	"encoding/binary"
	"math"
)

// embeddingToBytes packs a float32 slice into a little-endian byte blob for
// SQLite BLOB storage.
func embeddingToBytes(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToEmbedding unpacks a blob produced by embeddingToBytes back into a
// float32 slice. A nil or empty blob yields a nil slice.
func bytesToEmbedding(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	n := len(buf) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
