package schema

import (
	"bytes"
	"maps"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MetadataVersion is the version written by this package.
const MetadataVersion uint32 = 1

// Metadata is the caller-owned annotation bag attached to sessions and
// messages. The core never interprets it.
//
// Labels hold flat string tags (role hints, channels). Attributes hold
// structured values such as a tool-invocation record or latency. Wire
// fields this version does not know about are kept and written back
// unchanged, so records written by newer writers survive a round trip
// through older ones.
type Metadata struct {
	Version    uint32
	Labels     map[string]string
	Attributes *structpb.Struct

	unknown []byte
}

// NewMetadata builds a Metadata at the current version. attrs values must be
// representable by structpb (nil, bool, numbers, string, []any, map[string]any).
func NewMetadata(labels map[string]string, attrs map[string]any) (Metadata, error) {
	m := Metadata{Version: MetadataVersion, Labels: maps.Clone(labels)}
	if len(attrs) > 0 {
		s, err := structpb.NewStruct(attrs)
		if err != nil {
			return Metadata{}, err
		}
		m.Attributes = s
	}
	return m, nil
}

func (m Metadata) IsZero() bool {
	return m.Version == 0 && len(m.Labels) == 0 &&
		(m.Attributes == nil || len(m.Attributes.Fields) == 0) &&
		len(m.unknown) == 0
}

func (m Metadata) Label(key string) (string, bool) {
	v, ok := m.Labels[key]
	return v, ok
}

// Attribute returns the attribute as a plain Go value.
func (m Metadata) Attribute(key string) (any, bool) {
	if m.Attributes == nil {
		return nil, false
	}
	v, ok := m.Attributes.Fields[key]
	if !ok {
		return nil, false
	}
	return v.AsInterface(), true
}

// AttributesMap returns all attributes as plain Go values.
func (m Metadata) AttributesMap() map[string]any {
	if m.Attributes == nil {
		return map[string]any{}
	}
	return m.Attributes.AsMap()
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	out := Metadata{
		Version: m.Version,
		Labels:  maps.Clone(m.Labels),
		unknown: bytes.Clone(m.unknown),
	}
	if m.Attributes != nil {
		out.Attributes = proto.Clone(m.Attributes).(*structpb.Struct)
	}
	return out
}

// WithLabel returns a copy with key set to value.
func (m Metadata) WithLabel(key, value string) Metadata {
	out := m.Clone()
	if out.Labels == nil {
		out.Labels = map[string]string{}
	}
	out.Labels[key] = value
	if out.Version == 0 {
		out.Version = MetadataVersion
	}
	return out
}

// Merge overlays patch onto m. Labels and attributes are merged key by key;
// keys absent from patch keep their current value. Nothing is ever cleared.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := m.Clone()

	if len(patch.Labels) > 0 {
		if out.Labels == nil {
			out.Labels = make(map[string]string, len(patch.Labels))
		}
		maps.Copy(out.Labels, patch.Labels)
	}

	if patch.Attributes != nil && len(patch.Attributes.Fields) > 0 {
		if out.Attributes == nil {
			out.Attributes = &structpb.Struct{}
		}
		if out.Attributes.Fields == nil {
			out.Attributes.Fields = make(map[string]*structpb.Value, len(patch.Attributes.Fields))
		}
		for k, v := range patch.Attributes.Fields {
			out.Attributes.Fields[k] = proto.Clone(v).(*structpb.Value)
		}
	}

	out.Version = max(out.Version, patch.Version)
	out.unknown = append(out.unknown, patch.unknown...)
	return out
}
