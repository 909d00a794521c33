package serializer

import "github.com/kedaikopi/kopi/rpc/common"

// IRPCSerializer is the interface for all Message serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. msg is overwritten, not merged.
	Deserialize(b []byte, msg *common.Message) error
}
