// Package osc implements the control protocol: an OSC 1.0 subset over UDP.
// Supported argument types are int32 (i), float32 (f), string (s), blob (b),
// int64 (h) and float64 (d). All fields are big-endian and padded to 4-byte
// boundaries.
package osc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Message is one decoded control command.
type Message struct {
	Addr string
	Args []any
}

func pad(n int) int {
	return (4 - n%4) % 4
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	for i := 0; i < pad(len(s)+1); i++ {
		buf = append(buf, 0)
	}
	return buf
}

// Encode serializes a message. Arguments of unsupported types are skipped.
func Encode(m Message) []byte {
	buf := appendString(nil, m.Addr)

	typetag := ","
	for _, arg := range m.Args {
		switch arg.(type) {
		case int32:
			typetag += "i"
		case float32:
			typetag += "f"
		case string:
			typetag += "s"
		case []byte:
			typetag += "b"
		case int64:
			typetag += "h"
		case float64:
			typetag += "d"
		}
	}
	buf = appendString(buf, typetag)

	for _, arg := range m.Args {
		switch v := arg.(type) {
		case int32:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v))
		case float32:
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
		case string:
			buf = appendString(buf, v)
		case []byte:
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
			buf = append(buf, v...)
			for i := 0; i < pad(len(v)); i++ {
				buf = append(buf, 0)
			}
		case int64:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		case float64:
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return buf
}

// Parse decodes one datagram into a message.
func Parse(data []byte) (Message, error) {
	addr, rest, err := readString(data)
	if err != nil {
		return Message{}, fmt.Errorf("osc: bad address: %w", err)
	}
	if len(addr) == 0 || addr[0] != '/' {
		return Message{}, fmt.Errorf("osc: address %q does not start with /", addr)
	}
	m := Message{Addr: addr}
	if len(rest) == 0 {
		return m, nil
	}

	typetag, rest, err := readString(rest)
	if err != nil {
		return Message{}, fmt.Errorf("osc: bad typetag: %w", err)
	}
	if len(typetag) == 0 || typetag[0] != ',' {
		return Message{}, fmt.Errorf("osc: typetag %q does not start with comma", typetag)
	}

	for _, tag := range typetag[1:] {
		switch tag {
		case 'i':
			if len(rest) < 4 {
				return Message{}, fmt.Errorf("osc: truncated int32")
			}
			m.Args = append(m.Args, int32(binary.BigEndian.Uint32(rest)))
			rest = rest[4:]
		case 'f':
			if len(rest) < 4 {
				return Message{}, fmt.Errorf("osc: truncated float32")
			}
			m.Args = append(m.Args, math.Float32frombits(binary.BigEndian.Uint32(rest)))
			rest = rest[4:]
		case 's':
			var s string
			s, rest, err = readString(rest)
			if err != nil {
				return Message{}, fmt.Errorf("osc: bad string arg: %w", err)
			}
			m.Args = append(m.Args, s)
		case 'b':
			if len(rest) < 4 {
				return Message{}, fmt.Errorf("osc: truncated blob size")
			}
			n := int(binary.BigEndian.Uint32(rest))
			rest = rest[4:]
			if n < 0 || len(rest) < n+pad(n) {
				return Message{}, fmt.Errorf("osc: truncated blob")
			}
			b := make([]byte, n)
			copy(b, rest)
			m.Args = append(m.Args, b)
			rest = rest[n+pad(n):]
		case 'h':
			if len(rest) < 8 {
				return Message{}, fmt.Errorf("osc: truncated int64")
			}
			m.Args = append(m.Args, int64(binary.BigEndian.Uint64(rest)))
			rest = rest[8:]
		case 'd':
			if len(rest) < 8 {
				return Message{}, fmt.Errorf("osc: truncated float64")
			}
			m.Args = append(m.Args, math.Float64frombits(binary.BigEndian.Uint64(rest)))
			rest = rest[8:]
		default:
			return Message{}, fmt.Errorf("osc: unsupported typetag %q", tag)
		}
	}
	return m, nil
}

// readString consumes a null-terminated, 4-byte-padded string.
func readString(data []byte) (string, []byte, error) {
	end := 0
	for end < len(data) && data[end] != 0 {
		end++
	}
	if end == len(data) {
		return "", nil, fmt.Errorf("missing terminator")
	}
	s := string(data[:end])
	next := end + 1 + pad(end+1)
	if next > len(data) {
		next = len(data)
	}
	return s, data[next:], nil
}

// Float pulls a numeric argument at index i, converting across the integer
// and float tags.
func (m Message) Float(i int) (float64, bool) {
	if i >= len(m.Args) {
		return 0, false
	}
	switch v := m.Args[i].(type) {
	case int32:
		return float64(v), true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// String pulls a string argument at index i.
func (m Message) String(i int) (string, bool) {
	if i >= len(m.Args) {
		return "", false
	}
	s, ok := m.Args[i].(string)
	return s, ok
}
