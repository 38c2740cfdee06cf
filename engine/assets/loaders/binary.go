package loaders

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// spirvMagic is the first word of every SPIR-V module, little-endian on disk.
const spirvMagic uint32 = 0x07230203

var ErrInvalidShader = errors.New("invalid SPIR-V module")

func readBinary(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("module of %d bytes is not a whole number of words: %w", len(b), ErrInvalidShader)
	}
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}
	if byteCode[0] != spirvMagic {
		return nil, fmt.Errorf("magic %#08x: %w", byteCode[0], ErrInvalidShader)
	}
	return byteCode, nil
}
