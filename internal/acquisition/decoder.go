package acquisition

import (
	"encoding/binary"
	"math"
)

// cast24BitToInt32 sign-extends a big-endian 24-bit integer into a signed
// 32-bit value.
func cast24BitToInt32(b []byte) int32 {
	v := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	if v&0x800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

// decodeTransaction parses one TransactionSize-byte datagram into
// NumPackages samples, using recvTime as the host receive timestamp
// before the device-clock correction of §4.2/§4.5 is applied.
func decodeTransaction(b []byte, recvTime float64) []Sample {
	samples := make([]Sample, NumPackages)

	offsetLast := (NumPackages - 1) * PackageSize
	tLast := deviceTimestamp(b, offsetLast)

	for p := 0; p < NumPackages; p++ {
		off := p * PackageSize
		var ch [NumChannels]float64

		// package counter
		ch[ChanPackageCounter] = float64(b[off])

		// 16 consecutive 24-bit big-endian signed ints -> channels 1..16
		for i, tmp := 4, 0; i < 20; i, tmp = i+1, tmp+1 {
			raw := cast24BitToInt32(b[off+5+3*(i-4) : off+5+3*(i-4)+3])
			var scale float64
			switch {
			case tmp < 8:
				scale = eegScaleMainBoard
			case tmp == 9 || tmp == 14:
				scale = eegScaleSisterBoard
			default:
				scale = emgScale
			}
			ch[i-3] = scale * float64(raw)
		}

		// battery
		ch[ChanBattery] = float64(b[off+53])

		// temperature: uint16 LE, deg C = raw/100
		temp := binary.LittleEndian.Uint16(b[off+54:])
		ch[ChanTemperatureC] = float64(temp) / 100.0

		// PPG red / infrared: int32 LE
		ch[ChanPPGRed] = float64(int32(binary.LittleEndian.Uint32(b[off+56:])))
		ch[ChanPPGInfrared] = float64(int32(binary.LittleEndian.Uint32(b[off+60:])))

		// EDA: float32 LE
		ch[ChanEDA] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off+1:])))

		tCur := deviceTimestamp(b, off)
		delta := tLast - tCur

		var ts float64
		if delta < 0 {
			ts = recvTime
		} else {
			ts = recvTime - delta
		}

		samples[p] = Sample{
			Timestamp: ts,
			Channels:  ch,
		}
	}

	return samples
}

// deviceTimestamp reads the float64-LE microsecond device clock at
// off+64 and converts it to seconds.
func deviceTimestamp(b []byte, off int) float64 {
	raw := math.Float64frombits(binary.LittleEndian.Uint64(b[off+64:]))
	return raw / 1e6
}
