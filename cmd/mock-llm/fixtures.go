package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// fixtureSet maps a model name to the responses returned for its calls in
// order. The last response repeats once the others are used up.
type fixtureSet map[string][]string

// numberedFileRe matches files like "mock-coder.1.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// pick returns the response for the index-th call (0-based) to model. A
// model without fixtures is retried without its "mock-" prefix.
func (f fixtureSet) pick(model string, index int) (string, bool) {
	seq, ok := f[model]
	if !ok {
		seq, ok = f[strings.TrimPrefix(model, "mock-")]
	}
	if !ok || len(seq) == 0 {
		return "", false
	}
	return seq[min(index, len(seq)-1)], true
}

func (f fixtureSet) models() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type fixtureFile struct {
	model string
	// order is the file number, or -1 for the base file.
	order int
	body  string
}

// loadFixtures reads every .json file below dir. Numbered files come first
// in numeric order and the base file, if any, last.
func loadFixtures(dir string) (fixtureSet, error) {
	var files []fixtureFile
	fsys := os.DirFS(dir)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".json" {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", p)
		}

		ff := fixtureFile{model: strings.TrimSuffix(d.Name(), ".json"), order: -1, body: string(data)}
		if m := numberedFileRe.FindStringSubmatch(d.Name()); m != nil {
			ff.model = m[1]
			ff.order, _ = strconv.Atoi(m[2])
		}
		files = append(files, ff)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load fixtures from %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.model != b.model {
			return a.model < b.model
		}
		if (a.order < 0) != (b.order < 0) {
			return b.order < 0
		}
		return a.order < b.order
	})

	set := make(fixtureSet)
	for _, ff := range files {
		set[ff.model] = append(set[ff.model], ff.body)
	}
	return set, nil
}
