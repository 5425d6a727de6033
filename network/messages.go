package network

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Messages of xmtp.message_api.v1 used by Query. Only the fields this client
// reads or writes are modelled; unknown fields are skipped on decode.

// Direction orders query results by envelope timestamp.
type Direction int32

const (
	DirectionUnspecified Direction = 0
	DirectionAscending   Direction = 1
	DirectionDescending  Direction = 2
)

func (d Direction) String() string {
	switch d {
	case DirectionAscending:
		return "asc"
	case DirectionDescending:
		return "desc"
	default:
		return "unspecified"
	}
}

type IndexCursor struct {
	Digest       []byte
	SenderTimeNs uint64
}

type Cursor struct {
	Index *IndexCursor
}

func (c *Cursor) empty() bool {
	return c == nil || c.Index == nil || (len(c.Index.Digest) == 0 && c.Index.SenderTimeNs == 0)
}

type PagingInfo struct {
	Limit     uint32
	Cursor    *Cursor
	Direction Direction
}

type QueryRequest struct {
	ContentTopics []string
	StartTimeNs   uint64
	EndTimeNs     uint64
	PagingInfo    *PagingInfo
}

type QueryResponse struct {
	Envelopes  []Envelope
	PagingInfo *PagingInfo
}

// Envelope is one published message on a topic.
type Envelope struct {
	ContentTopic string
	TimestampNs  uint64
	Message      []byte
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendMessage(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// field is one decoded top-level field. Raw holds the payload of a
// length-delimited field; Varint holds the value of a varint field.
type field struct {
	Num    protowire.Number
	Type   protowire.Type
	Raw    []byte
	Varint uint64
}

func eachField(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("network: malformed tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		f := field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.Raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("network: malformed field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType && typ != protowire.BytesType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (c *IndexCursor) marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, c.Digest)
	b = appendVarint(b, 2, c.SenderTimeNs)
	return b
}

func (c *IndexCursor) unmarshal(b []byte) error {
	return eachField(b, func(f field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.BytesType:
			c.Digest = append([]byte(nil), f.Raw...)
		case f.Num == 2 && f.Type == protowire.VarintType:
			c.SenderTimeNs = f.Varint
		}
		return nil
	})
}

func (c *Cursor) marshal() []byte {
	if c.Index == nil {
		return nil
	}
	return appendMessage(nil, 1, c.Index.marshal())
}

func (c *Cursor) unmarshal(b []byte) error {
	return eachField(b, func(f field) error {
		if f.Num == 1 && f.Type == protowire.BytesType {
			c.Index = new(IndexCursor)
			return c.Index.unmarshal(f.Raw)
		}
		return nil
	})
}

func (p *PagingInfo) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(p.Limit))
	if p.Cursor != nil {
		b = appendMessage(b, 2, p.Cursor.marshal())
	}
	b = appendVarint(b, 3, uint64(p.Direction))
	return b
}

func (p *PagingInfo) unmarshal(b []byte) error {
	return eachField(b, func(f field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			p.Limit = uint32(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			p.Cursor = new(Cursor)
			return p.Cursor.unmarshal(f.Raw)
		case f.Num == 3 && f.Type == protowire.VarintType:
			p.Direction = Direction(f.Varint)
		}
		return nil
	})
}

func (r *QueryRequest) Marshal() ([]byte, error) {
	var b []byte
	for _, t := range r.ContentTopics {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, t)
	}
	b = appendVarint(b, 2, r.StartTimeNs)
	b = appendVarint(b, 3, r.EndTimeNs)
	if r.PagingInfo != nil {
		b = appendMessage(b, 4, r.PagingInfo.marshal())
	}
	return b, nil
}

func (r *QueryRequest) Unmarshal(b []byte) error {
	*r = QueryRequest{}
	return eachField(b, func(f field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.BytesType:
			r.ContentTopics = append(r.ContentTopics, string(f.Raw))
		case f.Num == 2 && f.Type == protowire.VarintType:
			r.StartTimeNs = f.Varint
		case f.Num == 3 && f.Type == protowire.VarintType:
			r.EndTimeNs = f.Varint
		case f.Num == 4 && f.Type == protowire.BytesType:
			r.PagingInfo = new(PagingInfo)
			return r.PagingInfo.unmarshal(f.Raw)
		}
		return nil
	})
}

func (e *Envelope) marshal() []byte {
	var b []byte
	if e.ContentTopic != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, e.ContentTopic)
	}
	b = appendVarint(b, 2, e.TimestampNs)
	b = appendBytes(b, 3, e.Message)
	return b
}

func (e *Envelope) unmarshal(b []byte) error {
	return eachField(b, func(f field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.BytesType:
			e.ContentTopic = string(f.Raw)
		case f.Num == 2 && f.Type == protowire.VarintType:
			e.TimestampNs = f.Varint
		case f.Num == 3 && f.Type == protowire.BytesType:
			e.Message = append([]byte(nil), f.Raw...)
		}
		return nil
	})
}

func (r *QueryResponse) Marshal() ([]byte, error) {
	var b []byte
	for i := range r.Envelopes {
		b = appendMessage(b, 1, r.Envelopes[i].marshal())
	}
	if r.PagingInfo != nil {
		b = appendMessage(b, 2, r.PagingInfo.marshal())
	}
	return b, nil
}

func (r *QueryResponse) Unmarshal(b []byte) error {
	*r = QueryResponse{}
	return eachField(b, func(f field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.BytesType:
			var e Envelope
			if err := e.unmarshal(f.Raw); err != nil {
				return err
			}
			r.Envelopes = append(r.Envelopes, e)
		case f.Num == 2 && f.Type == protowire.BytesType:
			r.PagingInfo = new(PagingInfo)
			return r.PagingInfo.unmarshal(f.Raw)
		}
		return nil
	})
}
