package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestSessionCodec(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	md, err := NewMetadata(map[string]string{"persona": "tutor"}, map[string]any{"priority": 2.0})
	require.NoError(t, err)

	in := &Session{
		ID:           "7f9c1f5e-0000-4000-8000-000000000001",
		UserID:       "user-42",
		CreatedAt:    created,
		LastActiveAt: created.Add(time.Minute),
		MessageCount: 17,
		Metadata:     md,
	}

	data, err := MarshalSession(in)
	require.NoError(t, err)

	out, err := UnmarshalSession(data)
	require.NoError(t, err)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.UserID, out.UserID)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, in.LastActiveAt.Equal(out.LastActiveAt))
	assert.Equal(t, int64(17), out.MessageCount)
	assert.Equal(t, MetadataVersion, out.Metadata.Version)
	assert.Equal(t, map[string]string{"persona": "tutor"}, out.Metadata.Labels)
	assert.Equal(t, map[string]any{"priority": 2.0}, out.Metadata.AttributesMap())
}

func TestMessageCodec(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC)
	md, err := NewMetadata(nil, map[string]any{
		"tool":       map[string]any{"name": "weather", "args": map[string]any{"city": "Paris"}},
		"latency_ms": 250.0,
	})
	require.NoError(t, err)

	in := &Message{Role: RoleAssistant, Content: "It is sunny in Paris.", Timestamp: ts, Metadata: md}
	data, err := MarshalMessage(in)
	require.NoError(t, err)

	out, err := UnmarshalMessage(data)
	require.NoError(t, err)

	assert.Equal(t, RoleAssistant, out.Role)
	assert.Equal(t, "It is sunny in Paris.", out.Content)
	assert.Equal(t, ts.UnixNano(), out.Timestamp.UnixNano())

	latency, ok := out.Metadata.Attribute("latency_ms")
	require.True(t, ok)
	assert.Equal(t, 250.0, latency)
	tool, ok := out.Metadata.Attribute("tool")
	require.True(t, ok)
	assert.Equal(t, "weather", tool.(map[string]any)["name"])
}

func TestMessageCodec_EmptyMessage(t *testing.T) {
	data, err := MarshalMessage(&Message{})
	require.NoError(t, err)
	assert.Empty(t, data)

	out, err := UnmarshalMessage(data)
	require.NoError(t, err)
	assert.Equal(t, Role(""), out.Role)
	assert.True(t, out.Timestamp.IsZero())
	assert.True(t, out.Metadata.IsZero())
}

func TestCodec_PreservesUnknownFields(t *testing.T) {
	in := &Message{Role: RoleUser, Content: "hello"}
	data, err := MarshalMessage(in)
	require.NoError(t, err)

	// A newer writer added field 42 (string) and field 43 (varint).
	data = protowire.AppendTag(data, 42, protowire.BytesType)
	data = protowire.AppendString(data, "from the future")
	data = protowire.AppendTag(data, 43, protowire.VarintType)
	data = protowire.AppendVarint(data, 99)

	decoded, err := UnmarshalMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "hello", decoded.Content)
	assert.NotEmpty(t, decoded.unknown)

	reencoded, err := MarshalMessage(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, reencoded)
}

func TestCodec_PreservesUnknownMetadataFields(t *testing.T) {
	var md []byte
	md = protowire.AppendTag(md, metadataFieldVersion, protowire.VarintType)
	md = protowire.AppendVarint(md, 2)
	md = protowire.AppendTag(md, 7, protowire.BytesType)
	md = protowire.AppendString(md, "opaque")

	var data []byte
	data = protowire.AppendTag(data, sessionFieldID, protowire.BytesType)
	data = protowire.AppendString(data, "s1")
	data = protowire.AppendTag(data, sessionFieldMetadata, protowire.BytesType)
	data = protowire.AppendBytes(data, md)

	s, err := UnmarshalSession(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), s.Metadata.Version)

	s.MessageCount = 3
	out, err := MarshalSession(s)
	require.NoError(t, err)

	again, err := UnmarshalSession(out)
	require.NoError(t, err)
	assert.Equal(t, int64(3), again.MessageCount)
	assert.Equal(t, s.Metadata.unknown, again.Metadata.unknown)
}

func TestCodec_WireTypeMismatchKeptAsUnknown(t *testing.T) {
	var data []byte
	// content written as a varint by some other writer
	data = protowire.AppendTag(data, messageFieldContent, protowire.VarintType)
	data = protowire.AppendVarint(data, 5)

	m, err := UnmarshalMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "", m.Content)
	assert.Equal(t, data, m.unknown)
}

func TestCodec_Truncated(t *testing.T) {
	data, err := MarshalMessage(&Message{Role: RoleUser, Content: "hello world"})
	require.NoError(t, err)

	_, err = UnmarshalMessage(data[:len(data)-3])
	assert.Error(t, err)
}
