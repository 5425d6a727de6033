package network

import "fmt"

// wireMessage is implemented by the hand-encoded MessageApi messages.
type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// codec carries wireMessage values over gRPC. It registers under the "proto"
// name so the content-subtype on the wire matches what XMTP nodes expect.
type codec struct{}

func (codec) Name() string { return "proto" }

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("network: cannot marshal %T", v)
	}
	return m.Marshal()
}

func (codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("network: cannot unmarshal into %T", v)
	}
	return m.Unmarshal(data)
}
