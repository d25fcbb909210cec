package txbuilder

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// bcsWriter encodes the pure argument subset the campaign entry points take:
// u8, u64, bool, strings, addresses and vectors of those.
type bcsWriter struct {
	buf bytes.Buffer
}

func (w *bcsWriter) uleb128(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func (w *bcsWriter) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *bcsWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *bcsWriter) boolean(v bool) {
	if v {
		w.buf.WriteByte(1)
		return
	}
	w.buf.WriteByte(0)
}

func (w *bcsWriter) byteVector(v []byte) {
	w.uleb128(uint64(len(v)))
	w.buf.Write(v)
}

func (w *bcsWriter) str(v string) {
	w.byteVector([]byte(v))
}

func (w *bcsWriter) address(v string) error {
	raw, err := addressBytes(v)
	if err != nil {
		return err
	}
	w.buf.Write(raw)
	return nil
}

func (w *bcsWriter) bytes() []byte {
	return w.buf.Bytes()
}

func addressBytes(address string) ([]byte, error) {
	h := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(address)), "0x")
	if h == "" || len(h) > 64 {
		return nil, errors.Errorf("invalid address %q", address)
	}
	h = strings.Repeat("0", 64-len(h)) + h
	raw, err := hex.DecodeString(h)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid address %q", address)
	}
	return raw, nil
}

func encodeU8(v uint8) []byte {
	var w bcsWriter
	w.u8(v)
	return w.bytes()
}

func encodeU64(v uint64) []byte {
	var w bcsWriter
	w.u64(v)
	return w.bytes()
}

func encodeString(v string) []byte {
	var w bcsWriter
	w.str(v)
	return w.bytes()
}

func encodeBytes(v []byte) []byte {
	var w bcsWriter
	w.byteVector(v)
	return w.bytes()
}

func encodeU8Vector(v []uint8) []byte {
	return encodeBytes(v)
}

func encodeBoolVector(v []bool) []byte {
	var w bcsWriter
	w.uleb128(uint64(len(v)))
	for _, b := range v {
		w.boolean(b)
	}
	return w.bytes()
}

func encodeU64Vector(v []uint64) []byte {
	var w bcsWriter
	w.uleb128(uint64(len(v)))
	for _, n := range v {
		w.u64(n)
	}
	return w.bytes()
}

func encodeStringVector(v []string) []byte {
	var w bcsWriter
	w.uleb128(uint64(len(v)))
	for _, s := range v {
		w.str(s)
	}
	return w.bytes()
}

func encodeAddressVector(v []string) ([]byte, error) {
	var w bcsWriter
	w.uleb128(uint64(len(v)))
	for _, a := range v {
		if err := w.address(a); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}
