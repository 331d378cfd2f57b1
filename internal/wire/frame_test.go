package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griffinplus/logsink/internal/constants"
)

func TestStartMarkerRoundTrip(t *testing.T) {
	f := NewStartMarker()
	payload, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(payload[:])
	require.NoError(t, err)

	sm, ok := decoded.(StartMarker)
	require.True(t, ok)
	assert.Equal(t, int32(-1), sm.MaxLogLevelCount)
}

func TestSetApplicationNameRoundTrip(t *testing.T) {
	f := SetApplicationName{Name: "acme-ingestor"}
	payload, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(payload[:])
	require.NoError(t, err)

	got, ok := decoded.(SetApplicationName)
	require.True(t, ok)
	assert.Equal(t, "acme-ingestor", got.Name)
}

func TestSetApplicationNameExactWidthHasNoTerminator(t *testing.T) {
	name := strings.Repeat("x", constants.ApplicationNameRunes)
	f := SetApplicationName{Name: name}
	payload, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(payload[:])
	require.NoError(t, err)

	got := decoded.(SetApplicationName)
	assert.Equal(t, name, got.Name)
}

func TestAddSourceNameRoundTrip(t *testing.T) {
	f := AddSourceName{ID: 7, Name: "worker-pool"}
	payload, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(payload[:])
	require.NoError(t, err)

	got, ok := decoded.(AddSourceName)
	require.True(t, ok)
	assert.Equal(t, int32(7), got.ID)
	assert.Equal(t, "worker-pool", got.Name)
}

func TestAddLogLevelNameRoundTrip(t *testing.T) {
	f := AddLogLevelName{ID: 3, Name: "Warning"}
	payload, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(payload[:])
	require.NoError(t, err)

	got, ok := decoded.(AddLogLevelName)
	require.True(t, ok)
	assert.Equal(t, int32(3), got.ID)
	assert.Equal(t, "Warning", got.Name)
}

func TestClearLogViewerRoundTrip(t *testing.T) {
	f := ClearLogViewer{FtTimestamp: 132999999999999999, Pid: 4242, HpTimestampUs: 123456789}
	payload, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(payload[:])
	require.NoError(t, err)

	got, ok := decoded.(ClearLogViewer)
	require.True(t, ok)
	assert.Equal(t, f, got)
}

func TestSaveSnapshotRoundTrip(t *testing.T) {
	f := SaveSnapshot{FtTimestamp: 1, Pid: 2, HpTimestampUs: 3}
	payload, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(payload[:])
	require.NoError(t, err)

	got, ok := decoded.(SaveSnapshot)
	require.True(t, ok)
	assert.Equal(t, f, got)
}

func TestMessageRoundTrip(t *testing.T) {
	f := Message{
		FtTimestamp: 10, HpTimestampUs: 20, SourceID: 1, LevelID: 2,
		Pid: 4242, ExtensionCount: 0, Text: "short message body",
	}
	payload, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(payload[:])
	require.NoError(t, err)

	got, ok := decoded.(Message)
	require.True(t, ok)
	assert.Equal(t, f, got)
}

func TestMessageExtensionRoundTrip(t *testing.T) {
	f := MessageExtension{Text: "continuation chunk"}
	payload, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(payload[:])
	require.NoError(t, err)

	got, ok := decoded.(MessageExtension)
	require.True(t, ok)
	assert.Equal(t, f, got)
}

func TestDecodeRejectsWrongSize(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	var buf [constants.PayloadSize]byte
	buf[0] = 0xFF
	_, err := Decode(buf[:])
	assert.Error(t, err)
}

func TestExtensionCount(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{total: 0, want: 0},
		{total: constants.MaxShortMessageRunes, want: 0},
		{total: constants.MaxShortMessageRunes + 1, want: 1},
		{total: constants.MaxShortMessageRunes + constants.MaxExtensionRunes, want: 1},
		{total: constants.MaxShortMessageRunes + constants.MaxExtensionRunes + 1, want: 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtensionCount(tt.total))
	}
}

func TestSplitMessageShortFitsWithoutExtensions(t *testing.T) {
	msg, exts, err := SplitMessage("hello world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", msg.Text)
	assert.Equal(t, int32(0), msg.ExtensionCount)
	assert.Empty(t, exts)
}

func TestSplitMessageLongSpansExtensions(t *testing.T) {
	total := constants.MaxShortMessageRunes + constants.MaxExtensionRunes + 10
	text := strings.Repeat("a", total)

	msg, exts, err := SplitMessage(text)
	require.NoError(t, err)
	require.Len(t, exts, 2)
	assert.Equal(t, int32(2), msg.ExtensionCount)
	assert.Equal(t, constants.MaxShortMessageRunes, utf16Len(msg.Text))
	assert.Equal(t, constants.MaxExtensionRunes, utf16Len(exts[0].Text))
	assert.Equal(t, 10, utf16Len(exts[1].Text))

	reassembled := msg.Text + exts[0].Text + exts[1].Text
	assert.Equal(t, text, reassembled)
}
