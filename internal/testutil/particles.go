package testutil

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Fake particle files are plain text: a header line "FAKEMCPL <n>" followed
// by n lines. They stand in for real MCPL files wherever tests run fake
// simulations and a fake particle tool.

const fakeHeader = "FAKEMCPL"

// WriteParticleFile writes a fake particle file holding n particles.
// n may be zero; the file is still created.
func WriteParticleFile(path string, n int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%s %d\n", fakeHeader, n)
	for i := int64(0); i < n; i++ {
		fmt.Fprintf(w, "p %d\n", i)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadParticleCount returns the particle count recorded in a fake file.
func ReadParticleCount(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("read header of %s: %w", path, err)
	}
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != fakeHeader {
		return 0, fmt.Errorf("%s is not a fake particle file", path)
	}
	return strconv.ParseInt(fields[1], 10, 64)
}

// MergeParticleFiles writes one fake file with the summed count of paths.
func MergeParticleFiles(out string, paths []string) (int64, error) {
	var total int64
	for _, p := range paths {
		n, err := ReadParticleCount(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, WriteParticleFile(out, total)
}
