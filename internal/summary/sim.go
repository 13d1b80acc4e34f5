package summary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SimFile is the name of the summary file in every run directory.
const SimFile = "mccode.sim"

// Field is one "key: value" line. Lines without a colon keep their text in
// Value with an empty Key.
type Field struct {
	Key   string
	Value string
}

// Section is a "begin <Kind>[: Arg]" ... "end <Kind>" block.
type Section struct {
	Kind   string
	Arg    string
	Fields []Field
}

// Get returns the value of the first field named key.
func (s *Section) Get(key string) (string, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the first field named key, appending it if absent.
func (s *Section) Set(key, value string) {
	for i := range s.Fields {
		if s.Fields[i].Key == key {
			s.Fields[i].Value = value
			return
		}
	}
	s.Fields = append(s.Fields, Field{Key: key, Value: value})
}

// File is a parsed mccode.sim.
type File struct {
	Sections []Section
}

// Detector is the integrated result of one monitor component.
type Detector struct {
	Name      string
	Filename  string
	Intensity float64
	Error     float64
	Count     float64
}

// Detectors returns the data sections that carry values, in file order.
func (f *File) Detectors() ([]Detector, error) {
	var out []Detector
	for i := range f.Sections {
		s := &f.Sections[i]
		if s.Kind != "data" {
			continue
		}
		d, ok, err := detectorOf(s)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func detectorOf(s *Section) (Detector, bool, error) {
	name, ok := s.Get("component")
	if !ok {
		return Detector{}, false, nil
	}
	raw, ok := s.Get("values")
	if !ok {
		return Detector{}, false, nil
	}
	parts := strings.Fields(raw)
	if len(parts) != 3 {
		return Detector{}, false, fmt.Errorf("detector %s: values %q: want I E N", name, raw)
	}
	var nums [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Detector{}, false, fmt.Errorf("detector %s: %w", name, err)
		}
		nums[i] = v
	}
	filename, _ := s.Get("filename")
	return Detector{
		Name:      name,
		Filename:  filename,
		Intensity: nums[0],
		Error:     nums[1],
		Count:     nums[2],
	}, true, nil
}

// Parse reads a mccode.sim file.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	var current *Section
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, "begin "):
			if current != nil {
				return nil, fmt.Errorf("line %d: begin inside %s section", line, current.Kind)
			}
			kind, arg, _ := strings.Cut(strings.TrimPrefix(text, "begin "), ":")
			f.Sections = append(f.Sections, Section{Kind: strings.TrimSpace(kind), Arg: strings.TrimSpace(arg)})
			current = &f.Sections[len(f.Sections)-1]
		case strings.HasPrefix(text, "end "):
			if current == nil {
				return nil, fmt.Errorf("line %d: end outside a section", line)
			}
			current = nil
		default:
			if current == nil {
				return nil, fmt.Errorf("line %d: text outside a section", line)
			}
			key, value, found := strings.Cut(text, ":")
			if !found {
				current.Fields = append(current.Fields, Field{Value: text})
				continue
			}
			current.Fields = append(current.Fields, Field{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		return nil, fmt.Errorf("unterminated %s section", current.Kind)
	}
	return f, nil
}

// ParseFile reads the mccode.sim at path.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Write renders f in mccode.sim layout.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, s := range f.Sections {
		if s.Arg != "" {
			fmt.Fprintf(bw, "begin %s: %s\n", s.Kind, s.Arg)
		} else {
			fmt.Fprintf(bw, "begin %s\n", s.Kind)
		}
		for _, fld := range s.Fields {
			if fld.Key == "" {
				fmt.Fprintf(bw, "  %s\n", fld.Value)
				continue
			}
			fmt.Fprintf(bw, "  %s: %s\n", fld.Key, fld.Value)
		}
		fmt.Fprintf(bw, "end %s\n\n", s.Kind)
	}
	return bw.Flush()
}

// WriteFile writes f to path.
func (f *File) WriteFile(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Write(fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
