package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/tolchain/corechain/models"
)

// EncodeEntry produces the compact byte encoding of an Entry: balance raw
// value, bytecode, then datastore entries in ascending key order.
func EncodeEntry(e *Entry) []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, e.ParallelBalance.Raw())
	writeLP(&buf, e.Bytecode)
	keys := e.Datastore.Keys()
	writeUvarint(&buf, uint64(len(keys)))
	for _, k := range keys {
		buf.Write(k[:])
		v, _ := e.Datastore.Get(k)
		writeLP(&buf, v)
	}
	return buf.Bytes()
}

// DecodeEntry is the inverse of EncodeEntry.
func DecodeEntry(b []byte) (*Entry, error) {
	raw, rest, err := readUvarint(b)
	if err != nil {
		return nil, err
	}
	bytecode, rest, err := readLP(rest)
	if err != nil {
		return nil, err
	}
	n, rest, err := readUvarint(rest)
	if err != nil {
		return nil, err
	}
	e := NewEntry(models.AmountFromRaw(raw))
	e.Bytecode = bytecode
	for i := uint64(0); i < n; i++ {
		if len(rest) < models.HashSize {
			return nil, fmt.Errorf("ledger: truncated datastore key")
		}
		var key models.Hash
		copy(key[:], rest[:models.HashSize])
		rest = rest[models.HashSize:]
		var value []byte
		value, rest, err = readLP(rest)
		if err != nil {
			return nil, err
		}
		e.Datastore.Set(key, value)
	}
	return e, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeLP(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func readUvarint(b []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, fmt.Errorf("ledger: truncated varint")
	}
	return v, b[n:], nil
}

func readLP(b []byte) ([]byte, []byte, error) {
	n, rest, err := readUvarint(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, fmt.Errorf("ledger: truncated byte field")
	}
	return rest[:n], rest[n:], nil
}
