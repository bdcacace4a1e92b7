package core

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// UvarintSize returns the number of bytes PutUvarint would write for x.
func UvarintSize(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// AppendUvarint appends the unsigned varint encoding of x to buf.
func AppendUvarint(buf *bytes.Buffer, x uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], x)
	buf.Write(tmp[:n])
}

// AppendVarint appends the zig-zag varint encoding of x to buf.
func AppendVarint(buf *bytes.Buffer, x int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], x)
	buf.Write(tmp[:n])
}

// WriteVarString appends a varint-length-prefixed UTF-8 string to buf.
func WriteVarString(buf *bytes.Buffer, s string) {
	AppendUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

// VarStringSize returns the serialized size of a varint-prefixed string.
func VarStringSize(s string) int {
	return UvarintSize(uint64(len(s))) + len(s)
}

// ReadVarString reads a varint-length-prefixed UTF-8 string.
func ReadVarString(r *bufio.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", fmt.Errorf("failed to read string length: %w", err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("failed to read string bytes: %w", err)
	}
	return string(b), nil
}
