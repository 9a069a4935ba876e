package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	appErr "github.com/xxxsen/routecache/internal/pkg/errors"
)

var nullJSON = []byte("null")

const hexDigits = "0123456789abcdef"

// encodeValue renders a JSON value as canonical text, the same text
// JSON.stringify(JSON.parse(raw)) yields. Numbers take their shortest
// round-trip spelling and strings keep only the mandatory escapes. A repeated
// object key keeps its first position with its last value. Key order is
// otherwise preserved, so {"lat":1,"lng":2} and {"lng":2,"lat":1} differ.
func encodeValue(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = nullJSON
	}
	if !json.Valid(raw) {
		return "", appErr.ErrInvalid
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var sb strings.Builder
	if err := writeValue(&sb, dec); err != nil {
		return "", appErr.ErrInvalid
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", appErr.ErrInvalid
	}
	return sb.String(), nil
}

func writeValue(sb *strings.Builder, dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return writeObject(sb, dec)
		case '[':
			return writeArray(sb, dec)
		}
		return errors.New("unexpected delimiter")
	case string:
		writeString(sb, v)
	case json.Number:
		return writeNumber(sb, v)
	case bool:
		sb.WriteString(strconv.FormatBool(v))
	case nil:
		sb.WriteString("null")
	default:
		return errors.New("unexpected token")
	}
	return nil
}

func writeObject(sb *strings.Builder, dec *json.Decoder) error {
	var keys []string
	values := make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New("object key is not a string")
		}
		var vb strings.Builder
		if err := writeValue(&vb, dec); err != nil {
			return err
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = vb.String()
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	sb.WriteByte('{')
	for i, key := range orderKeys(keys) {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeString(sb, key)
		sb.WriteByte(':')
		sb.WriteString(values[key])
	}
	sb.WriteByte('}')
	return nil
}

func writeArray(sb *strings.Builder, dec *json.Decoder) error {
	sb.WriteByte('[')
	for i := 0; dec.More(); i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		if err := writeValue(sb, dec); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	sb.WriteByte(']')
	return nil
}

// orderKeys puts array-index keys first in ascending numeric order, followed
// by the remaining keys in insertion order.
func orderKeys(keys []string) []string {
	var index, named []string
	for _, key := range keys {
		if _, ok := arrayIndex(key); ok {
			index = append(index, key)
			continue
		}
		named = append(named, key)
	}
	if len(index) == 0 {
		return keys
	}
	sort.Slice(index, func(i, j int) bool {
		a, _ := arrayIndex(index[i])
		b, _ := arrayIndex(index[j])
		return a < b
	})
	return append(index, named...)
}

func arrayIndex(key string) (uint64, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 {
		return 0, false
	}
	return n, true
}

func writeNumber(sb *strings.Builder, n json.Number) error {
	f, err := strconv.ParseFloat(n.String(), 64)
	if math.IsInf(f, 0) {
		sb.WriteString("null")
		return nil
	}
	if err != nil {
		return err
	}
	if f == 0 {
		sb.WriteByte('0')
		return nil
	}
	// encoding/json formats float64 the way ECMAScript Number#toString does.
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	sb.Write(b)
	return nil
}

func writeString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 0x20 {
				sb.WriteString(`\u00`)
				sb.WriteByte(hexDigits[c>>4])
				sb.WriteByte(hexDigits[c&0xf])
				continue
			}
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
}
