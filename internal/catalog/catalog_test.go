package catalog

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/afero"
)

func TestBuild_GroupOne(t *testing.T) {
	fs := afero.NewMemMapFs()
	targets, err := Build(fs, Options{Root: "/data", Groups: []string{"1"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(targets) != 10 {
		t.Fatalf("expected 10 targets for group 1, got %d", len(targets))
	}
	if got := targets[0].Name(); got != "Node1_audio_01.zip" {
		t.Errorf("first part = %q, want Node1_audio_01.zip", got)
	}
	if got := targets[8].Name(); got != "Node1_audio_09.zip" {
		t.Errorf("last part = %q, want Node1_audio_09.zip", got)
	}
	if got := targets[9].Name(); got != LicenseFile {
		t.Errorf("expected license last, got %q", got)
	}
	for _, tg := range targets {
		if tg.Name() == ReadmeFile {
			t.Fatal("group 1 must not include readme.txt")
		}
		if tg.Group != "1" {
			t.Errorf("unexpected group %q", tg.Group)
		}
	}
	want := "https://zenodo.org/record/2546677/files/Node1_audio_01.zip"
	if targets[0].URL != want {
		t.Errorf("URL = %q, want %q", targets[0].URL, want)
	}
	if targets[0].Path != filepath.Join("/data", "Node1", "Node1_audio_01.zip") {
		t.Errorf("unexpected path %q", targets[0].Path)
	}
}

func TestBuild_GroupTen(t *testing.T) {
	fs := afero.NewMemMapFs()
	targets, err := Build(fs, Options{Root: "/data", Groups: []string{"10"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(targets) != 12 {
		t.Fatalf("expected 10 parts + license + readme, got %d", len(targets))
	}
	if got := targets[0].Name(); got != "Node10_audio_1.zip" {
		t.Errorf("expected unpadded numbering, got %q", got)
	}
	if got := targets[9].Name(); got != "Node10_audio_10.zip" {
		t.Errorf("expected Node10_audio_10.zip, got %q", got)
	}
	names := []string{targets[10].Name(), targets[11].Name()}
	if !reflect.DeepEqual(names, []string{LicenseFile, ReadmeFile}) {
		t.Errorf("supplementary files = %v", names)
	}
}

func TestBuild_GroupNineIsPadded(t *testing.T) {
	g, ok := Lookup("9")
	if !ok {
		t.Fatal("group 9 missing")
	}
	if got := g.PartName(3); got != "Node9_audio_03.zip" {
		t.Errorf("PartName(3) = %q", got)
	}
	if g.Parts != 10 {
		t.Errorf("group 9 parts = %d, want 10", g.Parts)
	}
}

func TestBuild_GroupEightHasNoReadme(t *testing.T) {
	g, _ := Lookup("8")
	if g.HasReadme() {
		t.Error("group 8 must not have a readme")
	}
	g, _ = Lookup("2")
	if !g.HasReadme() {
		t.Error("group 2 must have a readme")
	}
}

func TestBuild_AllGroupsInRegistryOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	targets, err := Build(fs, Options{Root: "/data"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// 7 groups below 9 with 9 parts, 5 groups with 10 parts, 12 licenses,
	// 10 readmes (all but 1 and 8).
	want := 7*9 + 5*10 + 12 + 10
	if len(targets) != want {
		t.Fatalf("expected %d targets, got %d", want, len(targets))
	}

	var order []string
	for _, tg := range targets {
		if len(order) == 0 || order[len(order)-1] != tg.Group {
			order = append(order, tg.Group)
		}
	}
	wantOrder := []string{"1", "2", "3", "4", "6", "7", "8", "9", "10", "11", "12", "13"}
	if !reflect.DeepEqual(order, wantOrder) {
		t.Errorf("group order = %v, want %v", order, wantOrder)
	}

	seen := make(map[string]bool)
	for _, tg := range targets {
		if seen[tg.Path] {
			t.Fatalf("duplicate target %s", tg.Path)
		}
		seen[tg.Path] = true
	}
}

func TestBuild_FilterKeepsRegistryOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	targets, err := Build(fs, Options{Root: "/r", Groups: []string{"10", "1"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if targets[0].Group != "1" {
		t.Errorf("expected group 1 first regardless of filter order, got %s", targets[0].Group)
	}
}

func TestBuild_CreatesDirectoriesIdempotently(t *testing.T) {
	fs := afero.NewMemMapFs()
	opts := Options{Root: "/data", Groups: []string{"3"}}
	for i := 0; i < 2; i++ {
		if _, err := Build(fs, opts); err != nil {
			t.Fatalf("Build #%d: %v", i, err)
		}
	}
	info, err := fs.Stat("/data/Node3")
	if err != nil || !info.IsDir() {
		t.Fatalf("expected /data/Node3 directory, err=%v", err)
	}
	if ok, _ := afero.DirExists(fs, "/data/Node1"); ok {
		t.Error("unselected group directory should not be created")
	}
}

func TestBuild_UnknownGroup(t *testing.T) {
	_, err := Build(afero.NewMemMapFs(), Options{Root: "/r", Groups: []string{"5"}})
	if !errors.Is(err, ErrUnknownGroup) {
		t.Fatalf("expected ErrUnknownGroup, got %v", err)
	}
}

func TestBuild_CustomBaseURL(t *testing.T) {
	targets, err := Build(afero.NewMemMapFs(), Options{
		Root:    "/r",
		BaseURL: "http://127.0.0.1:8080/mirror/",
		Groups:  []string{"2"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "http://127.0.0.1:8080/mirror/record/2547307/files/Node2_audio_01.zip"
	if targets[0].URL != want {
		t.Errorf("URL = %q, want %q", targets[0].URL, want)
	}
}

func TestParseGroups(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"1", []string{"1"}},
		{"1,3,7", []string{"1", "3", "7"}},
		{" 1 , 3,,1 ", []string{"1", "3"}},
	}
	for _, tt := range tests {
		if got := ParseGroups(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseGroups(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGroupsReturnsCopy(t *testing.T) {
	gs := Groups()
	gs[0].Record = "tampered"
	if g, _ := Lookup("1"); g.Record != "2546677" {
		t.Fatal("registry mutated through Groups()")
	}
}
