package world

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/voxelray/engine/core"
)

func TestDirectoryLayer(t *testing.T) {
	d := NewDirectory()
	d.Activate(Coord{2, 5, 7})

	img, err := DirectoryLayer(d, 5)
	if err != nil {
		t.Fatal(err)
	}
	if img.GrayAt(2, 7).Y == 0 {
		t.Error("assigned chunk is black")
	}
	if img.GrayAt(3, 7).Y != 0 {
		t.Error("empty chunk is not black")
	}
	if _, err := DirectoryLayer(d, WorldChunks); !errors.Is(err, core.ErrOutOfBounds) {
		t.Errorf("layer %d: %v", WorldChunks, err)
	}
}

func TestWriteDirectoryBMP(t *testing.T) {
	d := NewDirectory()
	ApplyFill(d, CenteredCuboid([3]int{2, 2, 2}))

	var buf bytes.Buffer
	if err := WriteDirectoryBMP(&buf, d); err != nil {
		t.Fatal(err)
	}
	img, err := bmp.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != atlasColumns*WorldChunks || b.Dy() != 4*WorldChunks {
		t.Errorf("atlas is %dx%d", b.Dx(), b.Dy())
	}
	// layer 15 sits in row 1, column 7
	r, _, _, _ := img.At(7*WorldChunks+15, WorldChunks+15).RGBA()
	if r == 0 {
		t.Error("filled chunk missing from the atlas")
	}
}
