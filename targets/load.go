package targets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// File is the on-disk shape of a targets file, keyed by target name.
type File struct {
	Targets map[string]Target `json:"targets"`
}

// Load reads a JSON5 targets file and, when present, the sibling
// "<name>.local.<ext>" file whose entries override it. Either file may be
// missing, but not both.
func Load(path string) ([]Target, error) {
	var out File
	found := false

	main, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	if len(main) > 0 {
		if err := json5.Unmarshal(main, &out); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		found = true
	}

	localPath := LocalPath(path)
	local, err := os.ReadFile(localPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read local targets: %w", err)
	}
	if len(local) > 0 {
		var override File
		if err := json5.Unmarshal(local, &override); err != nil {
			return nil, fmt.Errorf("parse %s: %w", localPath, err)
		}
		if err := mergeTargets(&out, override); err != nil {
			return nil, fmt.Errorf("merge %s: %w", localPath, err)
		}
		slog.Info("merging targets with local overrides", slog.String("local", localPath))
		found = true
	}

	if !found {
		return nil, fmt.Errorf("targets file %s: %w", path, fs.ErrNotExist)
	}

	names := make([]string, 0, len(out.Targets))
	for name := range out.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	loaded := make([]Target, 0, len(names))
	for _, name := range names {
		t := out.Targets[name]
		if t.Name == "" {
			t.Name = name
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		loaded = append(loaded, t)
	}
	return loaded, nil
}

// mergeTargets overlays override on out field by field, so a local entry
// only needs the fields it changes. Targets missing from out are added.
func mergeTargets(out *File, override File) error {
	if out.Targets == nil {
		out.Targets = make(map[string]Target, len(override.Targets))
	}
	for name, local := range override.Targets {
		base, ok := out.Targets[name]
		if !ok {
			out.Targets[name] = local
			continue
		}
		if err := mergo.Merge(&base, local, mergo.WithOverride); err != nil {
			return fmt.Errorf("target %s: %w", name, err)
		}
		out.Targets[name] = base
	}
	return nil
}

// LocalPath returns the override file path for path, e.g.
// "targets.json5" -> "targets.local.json5".
func LocalPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+".local"+ext)
}
