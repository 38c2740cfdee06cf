package world

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spaghettifunk/voxelray/engine/core"
)

// ErrCorruptDirectory reports a directory image that cannot come from a Directory.
var ErrCorruptDirectory = errors.New("corrupt directory image")

const (
	DirectoryBytes = DirSize * 4
	ChunkBytes     = ChunkVolume * 4
	PoolBytes      = MaxChunks * ChunkBytes
)

// EncodeDirectory lays the directory out as DirSize little-endian u32, X fastest.
func EncodeDirectory(d *Directory) []byte {
	return encodeWords(d.slots)
}

// DecodeDirectory rebuilds a directory from its wire image, including the free list.
func DecodeDirectory(b []byte) (*Directory, error) {
	if len(b) != DirectoryBytes {
		return nil, fmt.Errorf("directory image of %d bytes, want %d: %w", len(b), DirectoryBytes, ErrCorruptDirectory)
	}
	d := NewDirectory()
	used := make([]bool, MaxChunks)
	var highest uint32
	for i := range d.slots {
		s := binary.LittleEndian.Uint32(b[i*4:])
		if s == EmptySlot {
			continue
		}
		if s >= MaxChunks {
			return nil, fmt.Errorf("entry %d references slot %d: %w", i, s, core.ErrOutOfBounds)
		}
		if used[s] {
			return nil, fmt.Errorf("slot %d referenced twice: %w", s, ErrCorruptDirectory)
		}
		used[s] = true
		d.slots[i] = s
		d.assigned++
		highest = max(highest, s)
	}
	d.next = highest + 1
	for s := uint32(1); s < highest; s++ {
		if !used[s] {
			_ = d.free.Enqueue(s)
		}
	}
	return d, nil
}

// EncodeChunks lays chunk payloads out slot after slot, each X fastest.
func EncodeChunks(chunks ...[]uint32) ([]byte, error) {
	out := make([]byte, 0, len(chunks)*ChunkBytes)
	for i, c := range chunks {
		if len(c) != ChunkVolume {
			return nil, fmt.Errorf("chunk %d has %d voxels, want %d: %w", i, len(c), ChunkVolume, core.ErrOutOfBounds)
		}
		out = appendWords(out, c)
	}
	return out, nil
}

// SlotOffset is the byte offset of a slot inside the pool buffer.
func SlotOffset(slot uint32) uint64 {
	return uint64(slot) * ChunkBytes
}

func encodeWords(words []uint32) []byte {
	return appendWords(make([]byte, 0, len(words)*4), words)
}

func appendWords(out []byte, words []uint32) []byte {
	for _, w := range words {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}
