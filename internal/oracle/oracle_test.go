package oracle

import (
	"testing"

	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/spf13/afero"
)

func target(path string) catalog.Target {
	return catalog.Target{URL: "https://example.com/x", Path: path, Group: "1"}
}

func TestSatisfied_Lenient(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/d/dir.zip", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/d/empty.zip", nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/d/partial.zip", []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}

	o := New(fs, false)
	tests := []struct {
		path string
		want bool
	}{
		{"/d/missing.zip", false},
		{"/d/empty.zip", false},
		{"/d/dir.zip", false},
		// A truncated file still counts in lenient mode.
		{"/d/partial.zip", true},
	}
	for _, tt := range tests {
		if got := o.Satisfied(target(tt.path)); got != tt.want {
			t.Errorf("Satisfied(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSatisfied_StrictNeedsMarker(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/d/a.zip", []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	o := New(fs, true)
	if o.Satisfied(target("/d/a.zip")) {
		t.Fatal("strict oracle accepted a file without marker")
	}
	if err := Mark(fs, "/d/a.zip"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if !o.Satisfied(target("/d/a.zip")) {
		t.Fatal("strict oracle rejected a marked file")
	}
	if !o.Strict() {
		t.Error("Strict() = false")
	}
}

func TestSatisfied_StrictMarkerWithoutData(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := Mark(fs, "/d/gone.zip"); err != nil {
		t.Fatal(err)
	}
	if New(fs, true).Satisfied(target("/d/gone.zip")) {
		t.Fatal("marker alone must not satisfy a target")
	}
}
