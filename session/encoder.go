package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordFormatVersion = 2

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

// Encode serializes r as: version, identity length, identity bytes,
// created-at and expires-at as big-endian int64 Unix milliseconds. The
// session id is the key, not part of the value.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil record")
	}
	if len(r.IdentityID) == 0 || len(r.IdentityID) > 255 {
		return nil, errors.New("identityID length out of range")
	}

	var buf bytes.Buffer
	buf.Grow(2 + len(r.IdentityID) + 16)

	buf.WriteByte(recordFormatVersion)
	buf.WriteByte(byte(len(r.IdentityID)))
	buf.WriteString(r.IdentityID)

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a value produced by Encode.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	if version != recordFormatVersion {
		return nil, errors.Join(ErrCorrupt, errors.New("invalid record version"))
	}

	idLen, err := reader.ReadByte()
	if err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	if idLen == 0 {
		return nil, errors.Join(ErrCorrupt, errors.New("empty identity id"))
	}
	identityID := make([]byte, idLen)
	if _, err := io.ReadFull(reader, identityID); err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}

	r := &Record{IdentityID: string(identityID)}
	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	if reader.Len() != 0 {
		return nil, errors.Join(ErrCorrupt, errors.New("trailing bytes"))
	}

	return r, nil
}
