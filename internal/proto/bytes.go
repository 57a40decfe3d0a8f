package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Bytes is a byte slice encoded as a JSON array of numbers rather than the
// base64 string encoding/json uses for []byte.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(b)*4 + 2)
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(v)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var nums []uint16
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("bytes: %w", err)
	}
	out := make(Bytes, len(nums))
	for i, n := range nums {
		if n > 0xff {
			return fmt.Errorf("bytes: element %d out of range: %d", i, n)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}
