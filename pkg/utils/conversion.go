package utils

import (
	"encoding/binary"
)

// IntToBytes converte um valor int para 4 bytes (DINT big-endian)
func IntToBytes(val int) []byte {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, uint32(int32(val)))
	return bytes
}

// BytesToInt converte 4 bytes big-endian para int
func BytesToInt(bytes []byte) int {
	return int(int32(binary.BigEndian.Uint32(bytes)))
}

// Int16ToBytes converte um valor int16 para bytes (INT big-endian)
func Int16ToBytes(val int16) []byte {
	bytes := make([]byte, 2)
	binary.BigEndian.PutUint16(bytes, uint16(val))
	return bytes
}

// BytesToInt16 converte bytes para int16
func BytesToInt16(bytes []byte) int16 {
	return int16(binary.BigEndian.Uint16(bytes))
}
