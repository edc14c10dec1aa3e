package block

import "encoding/binary"

// sizeofU16 is the width of a length or offset field in an entry or block
// header.
const sizeofU16 = 2

// Entry is a single key-value pair as stored in a block or a WAL record:
// | u16 klen | key | u16 vlen | value |.
type Entry struct {
	Key   []byte
	Value []byte
}

// EncodedLen returns the number of bytes Encode appends for this entry.
func (e Entry) EncodedLen() int {
	return sizeofU16 + len(e.Key) + sizeofU16 + len(e.Value)
}

// Encode appends the entry's wire encoding to dst and returns the result.
func Encode(dst []byte, key, value []byte) []byte {
	var lenBuf [sizeofU16]byte

	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(key)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, key...)

	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(value)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, value...)

	return dst
}

// DecodeEntry reads one entry off the front of data and returns it along
// with the unconsumed remainder. ok is false if data does not hold a
// complete entry.
func DecodeEntry(data []byte) (key, value, rest []byte, ok bool) {
	if len(data) < sizeofU16 {
		return nil, nil, nil, false
	}
	klen := int(binary.BigEndian.Uint16(data))
	data = data[sizeofU16:]
	if len(data) < klen+sizeofU16 {
		return nil, nil, nil, false
	}
	key = data[:klen]
	data = data[klen:]

	vlen := int(binary.BigEndian.Uint16(data))
	data = data[sizeofU16:]
	if len(data) < vlen {
		return nil, nil, nil, false
	}
	value = data[:vlen]
	rest = data[vlen:]

	return key, value, rest, true
}
