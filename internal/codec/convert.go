package codec

import (
	"encoding/binary"
	"math"
)

// ConvertSamples converts interleaved PCM bytes from one sample
// representation to another. It is a pure function: no shared state, no
// I/O, safe to call concurrently on independent buffers.
func ConvertSamples(data []byte, from, to SampleFormat) []byte {
	if from == to {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}

	floats := toFloat64(data, from)
	return fromFloat64(floats, to)
}

func toFloat64(data []byte, f SampleFormat) []float64 {
	bps := f.BytesPerSample()
	if bps == 0 || len(data)%bps != 0 {
		return nil
	}
	n := len(data) / bps
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		chunk := data[i*bps : (i+1)*bps]
		switch f {
		case SampleInt16:
			v := int16(binary.LittleEndian.Uint16(chunk))
			out[i] = float64(v) / 32768.0
		case SampleInt24:
			v := int32(chunk[0]) | int32(chunk[1])<<8 | int32(chunk[2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			out[i] = float64(v) / 8388608.0
		case SampleInt32:
			v := int32(binary.LittleEndian.Uint32(chunk))
			out[i] = float64(v) / 2147483648.0
		case SampleFloat32:
			bits := binary.LittleEndian.Uint32(chunk)
			out[i] = float64(math.Float32frombits(bits))
		case SampleFloat64:
			bits := binary.LittleEndian.Uint64(chunk)
			out[i] = math.Float64frombits(bits)
		}
	}
	return out
}

func fromFloat64(samples []float64, f SampleFormat) []byte {
	bps := f.BytesPerSample()
	out := make([]byte, len(samples)*bps)
	for i, s := range samples {
		chunk := out[i*bps : (i+1)*bps]
		switch f {
		case SampleInt16:
			v := int16(clamp(s) * 32767.0)
			binary.LittleEndian.PutUint16(chunk, uint16(v))
		case SampleInt24:
			v := int32(clamp(s) * 8388607.0)
			chunk[0] = byte(v)
			chunk[1] = byte(v >> 8)
			chunk[2] = byte(v >> 16)
		case SampleInt32:
			v := int32(clamp(s) * 2147483647.0)
			binary.LittleEndian.PutUint32(chunk, uint32(v))
		case SampleFloat32:
			binary.LittleEndian.PutUint32(chunk, math.Float32bits(float32(s)))
		case SampleFloat64:
			binary.LittleEndian.PutUint64(chunk, math.Float64bits(s))
		}
	}
	return out
}

func clamp(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	if s < -1.0 {
		return -1.0
	}
	return s
}
