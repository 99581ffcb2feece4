package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nurseroute/internal/model"
)

// Dir writes one JSON file per solution, named after the instance and the
// fitness so a directory listing doubles as a leaderboard.
//
// Files holding only a bare route list ("[[1,2],[3]]") are read as
// solutions of unknown instance and offered for every instance; their
// fitness comes from the file name when it parses.
type Dir struct {
	root string
	mu   sync.Mutex
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create solution dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) SaveSolution(_ context.Context, s model.Solution) (model.Solution, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return model.Solution{}, err
	}
	tag := s.ID
	if len(tag) > 8 {
		tag = tag[:8]
	}
	name := fmt.Sprintf("%s_%s_%s.json", safeName(s.Instance), strconv.FormatFloat(s.Fitness, 'f', 2, 64), safeName(tag))

	d.mu.Lock()
	defer d.mu.Unlock()
	tmp := filepath.Join(d.root, "."+name+".tmp")
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return model.Solution{}, err
	}
	if err := os.Rename(tmp, filepath.Join(d.root, name)); err != nil {
		return model.Solution{}, err
	}
	return s, nil
}

func (d *Dir) ListSolutions(_ context.Context, instance string, limit int) ([]model.Solution, error) {
	d.mu.Lock()
	entries, err := os.ReadDir(d.root)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []model.Solution
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		s, err := d.read(e.Name())
		if err != nil {
			// foreign files are not ours to judge
			continue
		}
		if s.Instance != "" && s.Instance != instance {
			continue
		}
		out = append(out, s)
	}
	sortSolutions(out)
	return limitSolutions(out, limit), nil
}

func (d *Dir) read(name string) (model.Solution, error) {
	body, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		return model.Solution{}, err
	}
	var s model.Solution
	if err := json.Unmarshal(body, &s); err == nil {
		if len(s.Routes) == 0 {
			return model.Solution{}, fmt.Errorf("%s: no routes", name)
		}
		return s, nil
	}
	var routes [][]int
	if err := json.Unmarshal(body, &routes); err != nil {
		return model.Solution{}, fmt.Errorf("%s: not a solution", name)
	}
	s = model.Solution{ID: name, Routes: routes}
	if info, err := os.Stat(filepath.Join(d.root, name)); err == nil {
		s.CreatedAt = info.ModTime().UTC()
	}
	for _, stem := range []string{name, strings.TrimSuffix(name, filepath.Ext(name))} {
		if f, err := strconv.ParseFloat(stem, 64); err == nil {
			s.Fitness = f
			break
		}
	}
	return s, nil
}

func (d *Dir) BestSolution(ctx context.Context, instance string) (model.Solution, error) {
	sols, err := d.ListSolutions(ctx, instance, 0)
	if err != nil {
		return model.Solution{}, err
	}
	for _, s := range sols {
		if s.Instance == instance {
			return s, nil
		}
	}
	return model.Solution{}, ErrNotFound
}

func (d *Dir) Close() error { return nil }

func safeName(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator || r == ' ' {
			return '-'
		}
		return r
	}, s)
}
