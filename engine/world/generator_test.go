package world

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/voxelray/engine/core"
)

// testGenerator has no device, only region checks can run against it.
func testGenerator(fill FillPolicy) *Generator {
	d := NewDirectory()
	ApplyFill(d, fill)
	commitDirectory(&captureWriter{}, d)
	return &Generator{store: &Store{Directory: d, fill: fill}}
}

func TestGeneratorRejectsRegionOutsideWorld(t *testing.T) {
	g := testGenerator(FullFill{})
	err := g.Run([3]int32{30, 30, 30}, [3]uint32{5, 5, 5})
	if !errors.Is(err, core.ErrOutOfBounds) {
		t.Fatalf("Run = %v, want ErrOutOfBounds", err)
	}
	if g.State() != GeneratorIdle {
		t.Error("rejected run left the generator dispatched")
	}
}

func TestGeneratorValidate(t *testing.T) {
	g := testGenerator(CenteredCuboid([3]int{4, 4, 4})) // chunks 14..17
	tests := []struct {
		name   string
		origin [3]int32
		extent [3]uint32
		ok     bool
	}{
		{"whole fill", [3]int32{14, 14, 14}, [3]uint32{4, 4, 4}, true},
		{"single chunk", [3]int32{15, 16, 17}, [3]uint32{1, 1, 1}, true},
		{"negative origin", [3]int32{-1, 14, 14}, [3]uint32{1, 1, 1}, false},
		{"zero extent", [3]int32{14, 14, 14}, [3]uint32{0, 1, 1}, false},
		{"touches air", [3]int32{13, 14, 14}, [3]uint32{2, 1, 1}, false},
		{"huge extent", [3]int32{0, 0, 0}, [3]uint32{1 << 31, 1, 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.validate(tt.origin, tt.extent)
			if tt.ok && err != nil {
				t.Errorf("validate = %v", err)
			}
			if !tt.ok && !errors.Is(err, core.ErrOutOfBounds) {
				t.Errorf("validate = %v, want ErrOutOfBounds", err)
			}
		})
	}
}

func TestFillRegions(t *testing.T) {
	d := NewDirectory()
	fill := CenteredCuboid([3]int{4, 2, 2})
	ApplyFill(d, fill)
	regions := fillRegions(d, fill)
	if len(regions) != 1 {
		t.Fatalf("fully assigned box split into %d regions", len(regions))
	}
	if regions[0].extent != [3]uint32{4, 2, 2} {
		t.Errorf("extent = %v", regions[0].extent)
	}

	// clipped fill: every row dispatched on its own, the last one short by a chunk
	d = NewDirectory()
	fill = CenteredCuboid([3]int{16, 8, 16})
	ApplyFill(d, fill)
	regions = fillRegions(d, fill)
	if len(regions) != 8*16 {
		t.Fatalf("got %d regions, want %d rows", len(regions), 8*16)
	}
	total := 0
	for _, r := range regions {
		total += int(r.extent[0] * r.extent[1] * r.extent[2])
	}
	if total != MaxChunks-1 {
		t.Errorf("regions cover %d chunks, want %d", total, MaxChunks-1)
	}
	if last := regions[len(regions)-1]; last.extent[0] != 15 {
		t.Errorf("last row extent = %d, want 15", last.extent[0])
	}

	// every region must pass the generator's own checks
	commitDirectory(&captureWriter{}, d)
	g := &Generator{store: &Store{Directory: d}}
	for _, r := range regions {
		if err := g.validate(r.origin, r.extent); err != nil {
			t.Fatalf("region %+v: %v", r, err)
		}
	}

	if got := fillRegions(d, EmptyFill{}); len(got) != 0 {
		t.Errorf("empty fill gave %d regions", len(got))
	}
}

func TestGeneratorRejectsUncommittedDirectory(t *testing.T) {
	g := testGenerator(EmptyFill{})
	g.store.Directory.Activate(Coord{0, 0, 0})

	if err := g.validate([3]int32{0, 0, 0}, [3]uint32{1, 1, 1}); !errors.Is(err, core.ErrDispatch) {
		t.Errorf("validate = %v, want ErrDispatch", err)
	}
	if err := g.Generate([]Coord{{0, 0, 0}}); !errors.Is(err, core.ErrDispatch) {
		t.Errorf("Generate = %v, want ErrDispatch", err)
	}

	commitDirectory(&captureWriter{}, g.store.Directory)
	if err := g.validate([3]int32{0, 0, 0}, [3]uint32{1, 1, 1}); err != nil {
		t.Errorf("validate after commit = %v", err)
	}
}

func TestGenerateRejectsUnassignedChunk(t *testing.T) {
	g := testGenerator(CenteredCuboid([3]int{1, 1, 1}))
	if err := g.Generate([]Coord{{15, 15, 15}, {0, 0, 0}}); !errors.Is(err, core.ErrOutOfBounds) {
		t.Errorf("Generate = %v, want ErrOutOfBounds", err)
	}
	if err := g.Generate(nil); err != nil {
		t.Errorf("Generate(nil) = %v", err)
	}
	if g.State() != GeneratorIdle {
		t.Error("generator left dispatched")
	}
}
