package models

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeBlockHeader produces the canonical byte encoding of a header that
// is hashed to obtain the block's id and signed by its creator.
func EncodeBlockHeader(h BlockHeader) []byte {
	var buf bytes.Buffer
	writeVarint(&buf, h.Slot.Period)
	buf.WriteByte(h.Slot.Thread)
	writeVarint(&buf, uint64(len(h.Parents)))
	for _, p := range h.Parents {
		buf.Write(p[:])
	}
	writeBytes(&buf, h.CreatorPubKey)
	buf.Write(h.OperationsRoot[:])
	writeVarint(&buf, uint64(len(h.Endorsements)))
	for _, e := range h.Endorsements {
		writeVarint(&buf, e.Slot.Period)
		buf.WriteByte(e.Slot.Thread)
		buf.Write(e.EndorsedBlock[:])
		writeBytes(&buf, e.Creator)
		writeBytes(&buf, e.Signature)
	}
	return buf.Bytes()
}

// writeVarint writes v as a LEB128-style variable-length unsigned integer.
func writeVarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// writeBytes writes a varint length prefix followed by the raw bytes.
func writeBytes(buf *bytes.Buffer, b []byte) {
	writeVarint(buf, uint64(len(b)))
	buf.Write(b)
}

// readVarint reads a variable-length unsigned integer, returning the
// remaining slice.
func readVarint(b []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, fmt.Errorf("models: truncated varint")
	}
	return v, b[n:], nil
}

// readBytes reads a varint length prefix followed by that many raw bytes.
func readBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := readVarint(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, fmt.Errorf("models: truncated byte field")
	}
	return rest[:n], rest[n:], nil
}

// DecodeBlockHeader is the inverse of EncodeBlockHeader.
func DecodeBlockHeader(b []byte) (BlockHeader, error) {
	var hdr BlockHeader
	period, rest, err := readVarint(b)
	if err != nil {
		return hdr, err
	}
	if len(rest) < 1 {
		return hdr, fmt.Errorf("models: truncated thread byte")
	}
	thread := rest[0]
	rest = rest[1:]
	hdr.Slot = NewSlot(period, thread)

	nParents, rest, err := readVarint(rest)
	if err != nil {
		return hdr, err
	}
	hdr.Parents = make([]BlockId, nParents)
	for i := range hdr.Parents {
		if len(rest) < HashSize {
			return hdr, fmt.Errorf("models: truncated parent hash")
		}
		copy(hdr.Parents[i][:], rest[:HashSize])
		rest = rest[HashSize:]
	}

	hdr.CreatorPubKey, rest, err = readBytes(rest)
	if err != nil {
		return hdr, err
	}
	if len(rest) < HashSize {
		return hdr, fmt.Errorf("models: truncated operations root")
	}
	copy(hdr.OperationsRoot[:], rest[:HashSize])
	rest = rest[HashSize:]

	nEndorsements, rest, err := readVarint(rest)
	if err != nil {
		return hdr, err
	}
	hdr.Endorsements = make([]Endorsement, nEndorsements)
	for i := range hdr.Endorsements {
		p, r2, err := readVarint(rest)
		if err != nil {
			return hdr, err
		}
		if len(r2) < 1 {
			return hdr, fmt.Errorf("models: truncated endorsement thread")
		}
		t := r2[0]
		rest = r2[1:]
		if len(rest) < HashSize {
			return hdr, fmt.Errorf("models: truncated endorsed block hash")
		}
		var endorsed BlockId
		copy(endorsed[:], rest[:HashSize])
		rest = rest[HashSize:]

		creator, r3, err := readBytes(rest)
		if err != nil {
			return hdr, err
		}
		sig, r4, err := readBytes(r3)
		if err != nil {
			return hdr, err
		}
		hdr.Endorsements[i] = Endorsement{
			Slot:          NewSlot(p, t),
			EndorsedBlock: endorsed,
			Creator:       creator,
			Signature:     sig,
		}
		rest = r4
	}
	return hdr, nil
}
