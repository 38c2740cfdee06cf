package world

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/voxelray/engine/core"
)

// atlasColumns is how many Y layers sit side by side in the directory atlas.
const atlasColumns = 8

func slotShade(slot uint32) color.Gray {
	if slot == EmptySlot {
		return color.Gray{Y: 0}
	}
	// assigned chunks from 64 to 255 by slot id
	return color.Gray{Y: uint8(64 + (slot*191)/(MaxChunks-1))}
}

// DirectoryLayer renders the Y layer y of the directory, one pixel per chunk.
func DirectoryLayer(d *Directory, y int) (*image.Gray, error) {
	if y < 0 || y >= WorldChunks {
		return nil, fmt.Errorf("layer %d outside [0,%d): %w", y, WorldChunks, core.ErrOutOfBounds)
	}
	img := image.NewGray(image.Rect(0, 0, WorldChunks, WorldChunks))
	for z := 0; z < WorldChunks; z++ {
		for x := 0; x < WorldChunks; x++ {
			i, _ := Index(x, y, z)
			img.SetGray(x, z, slotShade(d.Resolve(i)))
		}
	}
	return img, nil
}

// DirectoryAtlas tiles every Y layer, atlasColumns per row, bottom layer top left.
func DirectoryAtlas(d *Directory) *image.Gray {
	rows := (WorldChunks + atlasColumns - 1) / atlasColumns
	img := image.NewGray(image.Rect(0, 0, atlasColumns*WorldChunks, rows*WorldChunks))
	for y := 0; y < WorldChunks; y++ {
		ox := (y % atlasColumns) * WorldChunks
		oy := (y / atlasColumns) * WorldChunks
		for z := 0; z < WorldChunks; z++ {
			for x := 0; x < WorldChunks; x++ {
				i, _ := Index(x, y, z)
				img.SetGray(ox+x, oy+z, slotShade(d.Resolve(i)))
			}
		}
	}
	return img
}

// WriteDirectoryBMP encodes the directory atlas as a BMP.
func WriteDirectoryBMP(w io.Writer, d *Directory) error {
	return bmp.Encode(w, DirectoryAtlas(d))
}
