package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultBaseURL is the archive host serving the dataset records.
const DefaultBaseURL = "https://zenodo.org"

// ErrUnknownGroup is returned when a group filter names an id that is not
// in the registry.
var ErrUnknownGroup = errors.New("unknown group")

// Target is one file to fetch. It is identified by Path.
type Target struct {
	URL   string
	Path  string
	Group string
}

// Name is the file name component of the destination.
func (t Target) Name() string {
	return filepath.Base(t.Path)
}

func (t Target) String() string {
	return t.Path
}

// Options configures Build.
type Options struct {
	// Root is the directory holding the Node* group directories.
	Root string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Groups restricts the catalog to these ids. Empty means all groups.
	Groups []string
}

// Build enumerates the targets for the selected groups in registry order and
// makes sure each group directory exists under opts.Root.
func Build(fs afero.Fs, opts Options) ([]Target, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	selected, err := selection(opts.Groups)
	if err != nil {
		return nil, err
	}

	var targets []Target
	for _, g := range registry {
		if selected != nil {
			if _, ok := selected[g.ID]; !ok {
				continue
			}
		}
		dir := filepath.Join(opts.Root, g.Dir())
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("catalog: create %s: %w", dir, err)
		}
		for _, name := range g.Files() {
			u, err := url.JoinPath(base, "record", g.Record, "files", name)
			if err != nil {
				return nil, fmt.Errorf("catalog: base url %q: %w", base, err)
			}
			targets = append(targets, Target{
				URL:   u,
				Path:  filepath.Join(dir, name),
				Group: g.ID,
			})
		}
	}
	return targets, nil
}

func selection(ids []string) (map[string]struct{}, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, id)
		}
		set[id] = struct{}{}
	}
	return set, nil
}

// ParseGroups splits a comma-separated id list such as "1, 3,7".
// Blank entries are dropped and duplicates collapsed, keeping first order.
func ParseGroups(s string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		id := strings.TrimSpace(part)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
