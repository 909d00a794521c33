package serializer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kedaikopi/kopi/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte), flags (2 bytes), then every present field in flag
// order. Strings and byte slices are prefixed with a big endian uint32 length,
// lists with a uint32 element count. Inside Values a length of nilLen marks a
// nil element, so a missing MGet value and an empty one stay distinguishable.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey uint16 = 1 << iota
	hasKeys
	hasValue
	hasValues
	hasOk
	hasFound
	hasErr
	hasCode
	hasMeta
)

const (
	headerSize = 3
	nilLen     = ^uint32(0)
)

var errShortBuffer = errors.New("binary message truncated")

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var flags uint16
	if msg.Key != "" {
		flags |= hasKey
	}
	if msg.Keys != nil {
		flags |= hasKeys
	}
	if msg.Value != nil {
		flags |= hasValue
	}
	if msg.Values != nil {
		flags |= hasValues
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Found != nil {
		flags |= hasFound
	}
	if msg.Err != "" {
		flags |= hasErr
	}
	if msg.Code != 0 {
		flags |= hasCode
	}
	if msg.Meta != nil {
		flags |= hasMeta
	}

	out := make([]byte, headerSize, b.sizeBytes(msg))
	out[0] = byte(msg.MsgType)
	binary.BigEndian.PutUint16(out[1:3], flags)

	if flags&hasKey != 0 {
		out = appendBytes(out, []byte(msg.Key))
	}
	if flags&hasKeys != 0 {
		out = binary.BigEndian.AppendUint32(out, uint32(len(msg.Keys)))
		for _, key := range msg.Keys {
			out = appendBytes(out, []byte(key))
		}
	}
	if flags&hasValue != 0 {
		out = appendBytes(out, msg.Value)
	}
	if flags&hasValues != 0 {
		out = binary.BigEndian.AppendUint32(out, uint32(len(msg.Values)))
		for _, value := range msg.Values {
			if value == nil {
				out = binary.BigEndian.AppendUint32(out, nilLen)
				continue
			}
			out = appendBytes(out, value)
		}
	}
	// Ok is fully described by its flag
	if flags&hasFound != 0 {
		out = binary.BigEndian.AppendUint32(out, uint32(len(msg.Found)))
		for _, found := range msg.Found {
			if found {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	if flags&hasErr != 0 {
		out = appendBytes(out, []byte(msg.Err))
	}
	if flags&hasCode != 0 {
		out = binary.BigEndian.AppendUint64(out, msg.Code)
	}
	if flags&hasMeta != 0 {
		out = appendBytes(out, msg.Meta)
	}

	return out, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header: %d bytes", len(data))
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := reader{buf: data[headerSize:]}

	if flags&hasKey != 0 {
		msg.Key = string(r.bytes())
	}
	if flags&hasKeys != 0 {
		n := r.count()
		msg.Keys = make([]string, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Keys = append(msg.Keys, string(r.bytes()))
		}
	}
	if flags&hasValue != 0 {
		msg.Value = r.bytes()
	}
	if flags&hasValues != 0 {
		n := r.count()
		msg.Values = make([][]byte, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Values = append(msg.Values, r.bytes())
		}
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasFound != 0 {
		n := r.count()
		msg.Found = make([]bool, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Found = append(msg.Found, r.byte() != 0)
		}
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes())
	}
	if flags&hasCode != 0 {
		msg.Code = r.uint64()
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.bytes()
	}

	if r.err != nil {
		return fmt.Errorf("decoding %s message: %w", msg.MsgType, r.err)
	}
	if len(r.buf) != 0 {
		return fmt.Errorf("decoding %s message: %d trailing bytes", msg.MsgType, len(r.buf))
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the exact size needed for serializing msg
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Keys != nil {
		size += 4
		for _, key := range msg.Keys {
			size += 4 + len(key)
		}
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Values != nil {
		size += 4
		for _, value := range msg.Values {
			size += 4 + len(value)
		}
	}
	if msg.Found != nil {
		size += 4 + len(msg.Found)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Code != 0 {
		size += 8
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}
	return size
}

func appendBytes(out, b []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(b)))
	return append(out, b...)
}

// reader walks a message body. After the first error every read returns a
// zero value and the error is kept.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf) {
		r.err = errShortBuffer
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) byte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// count reads a list length. It is bounded by the remaining input so a
// corrupt count cannot force a huge allocation.
func (r *reader) count() int {
	n := r.uint32()
	if r.err == nil && uint64(n) > uint64(len(r.buf)) {
		r.err = errShortBuffer
		return 0
	}
	return int(n)
}

// bytes reads a length prefixed byte slice. The result is a copy and is
// non-nil for an empty slice. A nilLen prefix yields nil.
func (r *reader) bytes() []byte {
	n := r.uint32()
	if r.err != nil || n == nilLen {
		return nil
	}
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
