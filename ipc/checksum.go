package ipc

// CRC-16 parameters. CCITT polynomial, initial value 0xFFFF, no final XOR.
const (
	crc16Polynomial   = 0x1021
	crc16InitialValue = 0xFFFF
	crc16HighBit      = 0x8000
)

// Checksum computes the frame CRC-16 over channel and payload bytes.
func Checksum(data []byte) uint16 {
	crc := uint16(crc16InitialValue)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&crc16HighBit != 0 {
				crc = (crc << 1) ^ crc16Polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
