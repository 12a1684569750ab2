package catalog

import (
	"fmt"
	"strconv"
)

const (
	// PadThreshold is the first group id whose part numbers are written
	// without zero padding (Node10_audio_1.zip rather than Node9_audio_01.zip).
	PadThreshold = 10

	// PartThreshold is the first group id that carries the larger part count.
	PartThreshold = 9

	LicenseFile = "license.pdf"
	ReadmeFile  = "readme.txt"
)

// Group is one recording node of the dataset.
type Group struct {
	ID     string
	Record string
	Parts  int
}

// registry is ordered by numeric id. There is no node 5 in the dataset.
var registry = [...]Group{
	{ID: "1", Record: "2546677", Parts: 9},
	{ID: "2", Record: "2547307", Parts: 9},
	{ID: "3", Record: "2547309", Parts: 9},
	{ID: "4", Record: "2555084", Parts: 9},
	{ID: "6", Record: "2547313", Parts: 9},
	{ID: "7", Record: "2547315", Parts: 9},
	{ID: "8", Record: "2547319", Parts: 9},
	{ID: "9", Record: "2555080", Parts: 10},
	{ID: "10", Record: "2555137", Parts: 10},
	{ID: "11", Record: "2558362", Parts: 10},
	{ID: "12", Record: "2555141", Parts: 10},
	{ID: "13", Record: "2555143", Parts: 10},
}

// groups without a readme.txt on their record
var noReadme = map[string]struct{}{
	"1": {},
	"8": {},
}

// Groups returns a copy of the registry in enumeration order.
func Groups() []Group {
	out := make([]Group, len(registry))
	copy(out, registry[:])
	return out
}

// Lookup finds a group by id.
func Lookup(id string) (Group, bool) {
	for _, g := range registry {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Num returns the numeric group id.
func (g Group) Num() int {
	n, _ := strconv.Atoi(g.ID)
	return n
}

// Dir is the group's directory name under the download root.
func (g Group) Dir() string {
	return "Node" + g.ID
}

// PartName returns the archive name of part j (1-based).
func (g Group) PartName(j int) string {
	if g.Num() < PadThreshold {
		return fmt.Sprintf("Node%s_audio_%02d.zip", g.ID, j)
	}
	return fmt.Sprintf("Node%s_audio_%d.zip", g.ID, j)
}

// HasReadme reports whether the group's record carries a readme.txt.
func (g Group) HasReadme() bool {
	_, skip := noReadme[g.ID]
	return !skip
}

// Files lists the group's remote file names in download order.
func (g Group) Files() []string {
	files := make([]string, 0, g.Parts+2)
	for j := 1; j <= g.Parts; j++ {
		files = append(files, g.PartName(j))
	}
	files = append(files, LicenseFile)
	if g.HasReadme() {
		files = append(files, ReadmeFile)
	}
	return files
}
