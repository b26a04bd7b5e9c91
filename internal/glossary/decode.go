package glossary

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// legacyEncodings are tried in order for text that is not UTF-8 or UTF-16.
var legacyEncodings = []encoding.Encoding{
	korean.EUCKR,
	simplifiedchinese.GBK,
}

// DecodeText converts a reference file to a string with \n line endings.
// It tries UTF-8, UTF-8 with BOM, UTF-16, CP949 and GBK in that order.
func DecodeText(data []byte) string {
	return normalizeNewlines(decode(data))
}

func decode(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):])
	case utf8.Valid(data):
		return string(data)
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		if err == nil {
			return string(out)
		}
	}

	for _, enc := range legacyEncodings {
		out, err := enc.NewDecoder().Bytes(data)
		if err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
			return string(out)
		}
	}
	return strings.ToValidUTF8(string(data), "�")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
