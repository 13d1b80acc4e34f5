package summary

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// Merge combines the summaries of repeated runs of one point. The first
// file provides the layout; per detector the intensities and counts are
// summed and the errors added in quadrature. Simulation Ncount is summed.
func Merge(files []*File) (*File, error) {
	if len(files) == 0 {
		return nil, errors.New("merge: no summaries")
	}

	type acc struct{ intensity, errs, counts []float64 }
	byName := make(map[string]*acc)
	var ncounts []float64
	for _, f := range files {
		for i := range f.Sections {
			s := &f.Sections[i]
			switch s.Kind {
			case "simulation":
				if raw, ok := s.Get("Ncount"); ok {
					n, err := strconv.ParseFloat(raw, 64)
					if err != nil {
						return nil, fmt.Errorf("merge: simulation Ncount %q: %w", raw, err)
					}
					ncounts = append(ncounts, n)
				}
			case "data":
				d, ok, err := detectorOf(s)
				if err != nil {
					return nil, fmt.Errorf("merge: %w", err)
				}
				if !ok {
					continue
				}
				a := byName[d.Name]
				if a == nil {
					a = &acc{}
					byName[d.Name] = a
				}
				a.intensity = append(a.intensity, d.Intensity)
				a.errs = append(a.errs, d.Error)
				a.counts = append(a.counts, d.Count)
			}
		}
	}

	out := &File{Sections: make([]Section, len(files[0].Sections))}
	for i, s := range files[0].Sections {
		s.Fields = append([]Field(nil), s.Fields...)
		switch s.Kind {
		case "simulation":
			if _, ok := s.Get("Ncount"); ok && len(ncounts) > 0 {
				s.Set("Ncount", formatNumber(floats.Sum(ncounts)))
			}
		case "data":
			name, _ := s.Get("component")
			if a := byName[name]; a != nil {
				total := floats.Sum(a.counts)
				s.Set("values", fmt.Sprintf("%s %s %s",
					formatNumber(floats.Sum(a.intensity)),
					formatNumber(floats.Norm(a.errs, 2)),
					formatNumber(total)))
				if _, ok := s.Get("Ncount"); ok {
					s.Set("Ncount", formatNumber(total))
				}
			}
		}
		out.Sections[i] = s
	}
	return out, nil
}

// MergeDirectories merges <dir>/mccode.sim of every dir into
// <outDir>/mccode.sim. Directories without a summary are skipped; having
// none at all is an error.
func MergeDirectories(dirs []string, outDir string, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var files []*File
	for _, dir := range dirs {
		f, err := ParseFile(filepath.Join(dir, SimFile))
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no summary in run directory", "dir", dir)
			continue
		}
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("merge %d directories: %w", len(dirs), fs.ErrNotExist)
	}
	merged, err := Merge(files)
	if err != nil {
		return nil, err
	}
	if err := merged.WriteFile(filepath.Join(outDir, SimFile)); err != nil {
		return nil, err
	}
	return merged, nil
}
