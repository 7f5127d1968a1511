package main

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

var SerializerError = errors.New("invalid serialized data")

// CellBinarySerializer frames one stored cell record: a little-endian uint16
// length prefix, the raw input text, then the CBOR-encoded computed value.
type CellBinarySerializer struct {
}

func NewCellBinarySerializer() *CellBinarySerializer {
	return &CellBinarySerializer{}
}

func (s *CellBinarySerializer) Marshal(raw string, value contracts.WireValue) []byte {
	rawBytes := []byte(raw)
	valueBytes, _ := cborEncMode.Marshal(value)

	serializedData := make([]byte, 0, 2+len(rawBytes)+len(valueBytes))
	serializedData = binary.LittleEndian.AppendUint16(serializedData, uint16(len(rawBytes)))
	serializedData = append(serializedData, rawBytes...)
	serializedData = append(serializedData, valueBytes...)
	return serializedData
}

func (s *CellBinarySerializer) Unmarshal(data []byte) (raw string, value contracts.WireValue, err error) {
	if len(data) < 2 {
		return "", contracts.WireValue{}, fmt.Errorf("%w: should be more than 2 bytes (data: %v)", SerializerError, string(data))
	}

	rawLength := binary.LittleEndian.Uint16(data)
	if len(data) < int(rawLength)+2 {
		return "", contracts.WireValue{}, fmt.Errorf("%w: raw size is less than bytes amount (rawSize: %d; data: %v)", SerializerError, rawLength, string(data))
	}

	raw = string(data[2 : rawLength+2])
	if err = cbor.Unmarshal(data[rawLength+2:], &value); err != nil {
		return "", contracts.WireValue{}, fmt.Errorf("%w: %s", SerializerError, err)
	}
	return
}
