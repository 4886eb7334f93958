package scan

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeToUTF8 makes scanned source text safe for regex matching. Frontend
// trees occasionally contain UTF-16 files (Windows editors) or latin-1
// comments; those are converted rather than skipped so their API calls are
// still observed.
func decodeToUTF8(data []byte) string {
	if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}) {
		data = data[3:]
	}

	if len(data) >= 2 {
		if bytes.Equal(data[:2], []byte{0xFF, 0xFE}) {
			return decodeWith(data, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
		}
		if bytes.Equal(data[:2], []byte{0xFE, 0xFF}) {
			return decodeWith(data, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder())
		}
	}

	if utf8.Valid(data) {
		return string(data)
	}
	return decodeWith(data, charmap.Windows1252.NewDecoder())
}

func decodeWith(data []byte, decoder *encoding.Decoder) string {
	reader := transform.NewReader(bytes.NewReader(data), decoder)
	out, err := io.ReadAll(reader)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
	return string(bytes.ToValidUTF8(out, []byte("�")))
}
