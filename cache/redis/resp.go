package redis

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedReply is returned when the server sends bytes that are not
// valid RESP.
var ErrMalformedReply = errors.New("redis: malformed reply")

// encodeCommand renders parts as a RESP array of bulk strings.
func encodeCommand(parts ...string) []byte {
	var buf bytes.Buffer
	buf.WriteByte('*')
	buf.WriteString(strconv.Itoa(len(parts)))
	buf.WriteString("\r\n")
	for _, part := range parts {
		buf.WriteByte('$')
		buf.WriteString(strconv.Itoa(len(part)))
		buf.WriteString("\r\n")
		buf.WriteString(part)
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// decodeReply reads one RESP value. Simple strings come back as string,
// integers as int64, bulk strings as []byte, arrays as []any and nil
// bulk/array replies as nil. Error replies become Go errors.
func decodeReply(r *bufio.Reader) (any, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}

	switch kind {
	case '+':
		return line, nil
	case '-':
		return nil, fmt.Errorf("redis: %s", line)
	case ':':
		return strconv.ParseInt(line, 10, 64)
	case '$':
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, nil
		}
		data := make([]byte, n+2)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		if data[n] != '\r' || data[n+1] != '\n' {
			return nil, ErrMalformedReply
		}
		return data[:n], nil
	case '*':
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, nil
		}
		items := make([]any, n)
		for i := range items {
			if items[i], err = decodeReply(r); err != nil {
				return nil, err
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: unexpected prefix %q", ErrMalformedReply, kind)
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(line, "\r\n") {
		return "", ErrMalformedReply
	}
	return line[:len(line)-2], nil
}

func isOK(reply any) bool {
	msg, ok := reply.(string)
	return ok && strings.EqualFold(msg, "OK")
}
