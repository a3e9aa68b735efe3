package textenc_test

import (
	"testing"

	"github.com/islabooks/isla/internal/errors"
	"github.com/islabooks/isla/internal/textenc"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

func TestDecode_UTF8(t *testing.T) {
	text, name, err := textenc.Decode([]byte("第一章 雪夜\nplain ascii too"), textenc.GB18030)
	require.NoError(t, err)
	require.Equal(t, "utf-8", name)
	require.Contains(t, text, "第一章")
}

func TestDecode_UTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...)
	text, name, err := textenc.Decode(data, textenc.GB18030)
	require.NoError(t, err)
	require.Equal(t, "utf-8", name)
	require.Equal(t, "hello", text)
}

func TestDecode_UTF16LEWithBOM(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("第一章 开端"))
	require.NoError(t, err)

	text, name, err := textenc.Decode(data, textenc.GB18030)
	require.NoError(t, err)
	require.Equal(t, "utf-16le", name)
	require.Equal(t, "第一章 开端", text)
}

func TestDecode_UTF16BEWithBOM(t *testing.T) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("Chapter 1"))
	require.NoError(t, err)

	text, name, err := textenc.Decode(data, textenc.GB18030)
	require.NoError(t, err)
	require.Equal(t, "utf-16be", name)
	require.Equal(t, "Chapter 1", text)
}

func TestDecode_GB18030(t *testing.T) {
	enc := simplifiedchinese.GB18030.NewEncoder()
	data, err := enc.Bytes([]byte("第一章 江湖"))
	require.NoError(t, err)

	text, name, err := textenc.Decode(data, textenc.GB18030)
	require.NoError(t, err)
	require.Equal(t, "gb18030", name)
	require.Equal(t, "第一章 江湖", text)
}

func TestDecode_Empty(t *testing.T) {
	text, name, err := textenc.Decode(nil, textenc.GB18030)
	require.NoError(t, err)
	require.Equal(t, "utf-8", name)
	require.Empty(t, text)
}

func TestDecode_ConfiguredBig5Fallback(t *testing.T) {
	fallback, err := textenc.FallbackByName("big5")
	require.NoError(t, err)

	data, err := fallback.Encoding.NewEncoder().Bytes([]byte("第一章 風雪"))
	require.NoError(t, err)

	text, name, err := textenc.Decode(data, fallback)
	require.NoError(t, err)
	require.Equal(t, "big5", name)
	require.Equal(t, "第一章 風雪", text)
}

func TestFallbackByName(t *testing.T) {
	def, err := textenc.FallbackByName("")
	require.NoError(t, err)
	require.Equal(t, "gb18030", def.Name)

	_, err = textenc.FallbackByName("koi8-r")
	require.True(t, errors.Is(err, errors.UnsupportedEncoding("")))
}

func TestDecode_CorruptUTF8BOM(t *testing.T) {
	data := []byte{0xEF, 0xBB, 0xBF, 0xFF, 0xFE, 0xFD}
	_, _, err := textenc.Decode(data, textenc.GB18030)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.UnsupportedEncoding("")))
}
