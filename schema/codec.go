package schema

import (
	"fmt"
	"slices"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Records are stored in protobuf wire format. Field numbers are part of the
// persisted format and must never be reused.
const (
	sessionFieldID           protowire.Number = 1
	sessionFieldUserID       protowire.Number = 2
	sessionFieldCreatedAt    protowire.Number = 3
	sessionFieldLastActiveAt protowire.Number = 4
	sessionFieldMessageCount protowire.Number = 5
	sessionFieldMetadata     protowire.Number = 6

	messageFieldRole      protowire.Number = 1
	messageFieldContent   protowire.Number = 2
	messageFieldTimestamp protowire.Number = 3
	messageFieldMetadata  protowire.Number = 4

	metadataFieldVersion    protowire.Number = 1
	metadataFieldLabels     protowire.Number = 2
	metadataFieldAttributes protowire.Number = 3

	labelEntryFieldKey   protowire.Number = 1
	labelEntryFieldValue protowire.Number = 2
)

// MarshalSession encodes a session record.
func MarshalSession(s *Session) ([]byte, error) {
	var b []byte
	b = appendStringField(b, sessionFieldID, s.ID)
	b = appendStringField(b, sessionFieldUserID, s.UserID)
	b = appendVarintField(b, sessionFieldCreatedAt, timeToWire(s.CreatedAt))
	b = appendVarintField(b, sessionFieldLastActiveAt, timeToWire(s.LastActiveAt))
	b = appendVarintField(b, sessionFieldMessageCount, uint64(s.MessageCount))

	md, err := marshalMetadata(s.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	b = appendBytesField(b, sessionFieldMetadata, md)

	return append(b, s.unknown...), nil
}

// UnmarshalSession decodes a session record written by any version.
func UnmarshalSession(data []byte) (*Session, error) {
	s := &Session{}
	unknown, err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case sessionFieldID:
			v, n, err := consumeBytes(typ, b)
			s.ID = string(v)
			return n, err
		case sessionFieldUserID:
			v, n, err := consumeBytes(typ, b)
			s.UserID = string(v)
			return n, err
		case sessionFieldCreatedAt:
			v, n, err := consumeVarint(typ, b)
			s.CreatedAt = wireToTime(v)
			return n, err
		case sessionFieldLastActiveAt:
			v, n, err := consumeVarint(typ, b)
			s.LastActiveAt = wireToTime(v)
			return n, err
		case sessionFieldMessageCount:
			v, n, err := consumeVarint(typ, b)
			s.MessageCount = int64(v)
			return n, err
		case sessionFieldMetadata:
			v, n, err := consumeBytes(typ, b)
			if err != nil || n == 0 {
				return n, err
			}
			s.Metadata, err = unmarshalMetadata(v)
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s.unknown = unknown
	return s, nil
}

// MarshalMessage encodes one history element.
func MarshalMessage(m *Message) ([]byte, error) {
	var b []byte
	b = appendStringField(b, messageFieldRole, string(m.Role))
	b = appendStringField(b, messageFieldContent, m.Content)
	b = appendVarintField(b, messageFieldTimestamp, timeToWire(m.Timestamp))

	md, err := marshalMetadata(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	b = appendBytesField(b, messageFieldMetadata, md)

	return append(b, m.unknown...), nil
}

func UnmarshalMessage(data []byte) (*Message, error) {
	m := &Message{}
	unknown, err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case messageFieldRole:
			v, n, err := consumeBytes(typ, b)
			m.Role = Role(v)
			return n, err
		case messageFieldContent:
			v, n, err := consumeBytes(typ, b)
			m.Content = string(v)
			return n, err
		case messageFieldTimestamp:
			v, n, err := consumeVarint(typ, b)
			m.Timestamp = wireToTime(v)
			return n, err
		case messageFieldMetadata:
			v, n, err := consumeBytes(typ, b)
			if err != nil || n == 0 {
				return n, err
			}
			m.Metadata, err = unmarshalMetadata(v)
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	m.unknown = unknown
	return m, nil
}

func marshalMetadata(m Metadata) ([]byte, error) {
	if m.IsZero() {
		return nil, nil
	}

	var b []byte
	b = appendVarintField(b, metadataFieldVersion, uint64(m.Version))

	// sorted so that equal metadata always encodes to equal bytes
	keys := make([]string, 0, len(m.Labels))
	for k := range m.Labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		var entry []byte
		entry = appendStringField(entry, labelEntryFieldKey, k)
		entry = appendStringField(entry, labelEntryFieldValue, m.Labels[k])
		b = protowire.AppendTag(b, metadataFieldLabels, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}

	if m.Attributes != nil && len(m.Attributes.Fields) > 0 {
		raw, err := proto.MarshalOptions{Deterministic: true}.Marshal(m.Attributes)
		if err != nil {
			return nil, fmt.Errorf("encode metadata attributes: %w", err)
		}
		b = appendBytesField(b, metadataFieldAttributes, raw)
	}

	return append(b, m.unknown...), nil
}

func unmarshalMetadata(data []byte) (Metadata, error) {
	var m Metadata
	unknown, err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case metadataFieldVersion:
			v, n, err := consumeVarint(typ, b)
			m.Version = uint32(v)
			return n, err
		case metadataFieldLabels:
			v, n, err := consumeBytes(typ, b)
			if err != nil || n == 0 {
				return n, err
			}
			key, value, err := unmarshalLabelEntry(v)
			if err != nil {
				return 0, err
			}
			if m.Labels == nil {
				m.Labels = map[string]string{}
			}
			m.Labels[key] = value
			return n, nil
		case metadataFieldAttributes:
			v, n, err := consumeBytes(typ, b)
			if err != nil || n == 0 {
				return n, err
			}
			attrs := &structpb.Struct{}
			if err := proto.Unmarshal(v, attrs); err != nil {
				return 0, fmt.Errorf("decode metadata attributes: %w", err)
			}
			m.Attributes = attrs
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return Metadata{}, err
	}
	m.unknown = unknown
	return m, nil
}

func unmarshalLabelEntry(data []byte) (key, value string, err error) {
	_, err = walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case labelEntryFieldKey:
			v, n, err := consumeBytes(typ, b)
			key = string(v)
			return n, err
		case labelEntryFieldValue:
			v, n, err := consumeBytes(typ, b)
			value = string(v)
			return n, err
		}
		return 0, nil
	})
	return key, value, err
}

// walkFields calls decode for every field in data. decode returns the number
// of bytes it consumed after the tag, or 0 to leave the field alone; fields
// left alone are collected verbatim and returned as unknown.
func walkFields(data []byte, decode func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) ([]byte, error) {
	var unknown []byte
	for len(data) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(data)
		if tagLen < 0 {
			return nil, protowire.ParseError(tagLen)
		}

		n, err := decode(num, typ, data[tagLen:])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, data[tagLen:])
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			unknown = append(unknown, data[:tagLen+n]...)
		}
		data = data[tagLen+n:]
	}
	return unknown, nil
}

// consumeBytes returns n == 0 when the wire type does not match, which makes
// walkFields keep the field as unknown instead of failing.
func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, nil
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, nil
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func timeToWire(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}

func wireToTime(v uint64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(v)).UTC()
}
