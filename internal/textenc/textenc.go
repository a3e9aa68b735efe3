// Package textenc decodes plain-text book files into UTF-8.
//
// Decoding tries UTF-8 first (BOM-aware), then UTF-16 with and without a
// byte-order mark, then a configurable legacy fallback (GB18030 by default)
// for older Chinese text files. Files that decode under none of these are
// rejected.
package textenc

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/islabooks/isla/internal/errors"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// Fallback is the legacy multi-byte encoding tried after UTF-8 and UTF-16.
type Fallback struct {
	Name     string
	Encoding encoding.Encoding
}

// GB18030 is the default fallback, covering legacy simplified-Chinese files.
var GB18030 = Fallback{Name: "gb18030", Encoding: simplifiedchinese.GB18030}

// FallbackByName resolves a configured fallback encoding name. An empty name
// resolves to GB18030.
func FallbackByName(name string) (Fallback, error) {
	switch strings.ToLower(name) {
	case "", "gb18030":
		return GB18030, nil
	case "big5":
		return Fallback{Name: "big5", Encoding: traditionalchinese.Big5}, nil
	case "shift_jis":
		return Fallback{Name: "shift_jis", Encoding: japanese.ShiftJIS}, nil
	case "euc-kr":
		return Fallback{Name: "euc-kr", Encoding: korean.EUCKR}, nil
	}
	return Fallback{}, errors.UnsupportedEncoding("unknown fallback encoding " + name)
}

// Decode converts raw file bytes to a UTF-8 string, detecting the source
// encoding. The returned name reports which encoding succeeded ("utf-8",
// "utf-16le", "utf-16be", or the fallback's name). A zero-value fallback
// means GB18030.
func Decode(data []byte, fallback Fallback) (string, string, error) {
	if fallback.Encoding == nil {
		fallback = GB18030
	}

	if len(data) == 0 {
		return "", "utf-8", nil
	}

	if bytes.HasPrefix(data, bomUTF8) {
		body := data[len(bomUTF8):]
		if utf8.Valid(body) {
			return string(body), "utf-8", nil
		}
		return "", "", errors.UnsupportedEncoding("file carries a UTF-8 BOM but is not valid UTF-8")
	}

	if bytes.HasPrefix(data, bomUTF16BE) {
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data, "utf-16be")
	}
	if bytes.HasPrefix(data, bomUTF16LE) {
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data, "utf-16le")
	}

	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	// BOM-less UTF-16 shows up in files saved by older Windows editors.
	// A text file full of ASCII in UTF-16 has NUL bytes interleaved.
	if bytes.IndexByte(data, 0x00) >= 0 {
		if s, name, err := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), data, "utf-16le"); err == nil && utf8.ValidString(s) && !containsNUL(s) {
			return s, name, nil
		}
		if s, name, err := decodeWith(unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), data, "utf-16be"); err == nil && utf8.ValidString(s) && !containsNUL(s) {
			return s, name, nil
		}
	}

	if s, name, err := decodeWith(fallback.Encoding, data, fallback.Name); err == nil {
		return s, name, nil
	}

	return "", "", errors.UnsupportedEncoding("file is not UTF-8, UTF-16 or " + fallback.Name)
}

func decodeWith(enc encoding.Encoding, data []byte, name string) (string, string, error) {
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(decoded), name, nil
}

func containsNUL(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			return true
		}
	}
	return false
}
