// Package output provides sim.ResultWriter implementations: legacy VTK files
// for visualisation and a SQLite database for later analysis.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lattice-sim/lattice-sim/sim"
)

// VTKWriter writes one legacy ASCII STRUCTURED_POINTS file per sample.
type VTKWriter struct {
	dir     string
	prefix  string
	spacing float64
	written []string
}

// NewVTKWriter creates dir if needed. Files are named
// <prefix>_<step, 7 digits>.vtk; spacing is the lattice dx.
func NewVTKWriter(dir, prefix string, spacing float64) (*VTKWriter, error) {
	if spacing <= 0 {
		return nil, fmt.Errorf("vtk spacing must be positive, got %g", spacing)
	}
	if prefix == "" {
		prefix = "lattice"
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create vtk directory %s: %w", dir, err)
	}
	return &VTKWriter{dir: dir, prefix: prefix, spacing: spacing}, nil
}

// Files lists the paths written so far.
func (w *VTKWriter) Files() []string { return w.written }

// Write implements sim.ResultWriter.
func (w *VTKWriter) Write(s sim.Sample) (err error) {
	path := filepath.Join(w.dir, fmt.Sprintf("%s_%07d.vtk", w.prefix, s.Step))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	if err := encodeVTK(bw, s, w.spacing); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.written = append(w.written, path)
	return nil
}

// Close implements sim.ResultWriter. Every file is closed after its Write.
func (w *VTKWriter) Close() error { return nil }

func encodeVTK(bw *bufio.Writer, s sim.Sample, spacing float64) error {
	n := s.Rows * s.Cols
	if len(s.Velocity) != n {
		return errors.New("sample velocity does not match its dimensions")
	}
	sp := formatFloat(spacing)
	fmt.Fprintf(bw, "# vtk DataFile Version 3.0\n")
	fmt.Fprintf(bw, "lattice-sim step %d t=%s\n", s.Step, formatFloat(s.Time))
	fmt.Fprintf(bw, "ASCII\nDATASET STRUCTURED_POINTS\n")
	fmt.Fprintf(bw, "DIMENSIONS %d %d 1\n", s.Cols, s.Rows)
	fmt.Fprintf(bw, "ORIGIN 0 0 0\n")
	fmt.Fprintf(bw, "SPACING %s %s 1\n", sp, sp)
	fmt.Fprintf(bw, "POINT_DATA %d\n", n)

	writeScalars(bw, "density", s.Density)
	writeScalars(bw, "concentration", s.Concentration)

	fmt.Fprintf(bw, "VECTORS velocity double\n")
	for _, u := range s.Velocity {
		fmt.Fprintf(bw, "%s %s 0\n", formatFloat(u[0]), formatFloat(u[1]))
	}
	return nil
}

// writeScalars skips fields of a disabled equation.
func writeScalars(bw *bufio.Writer, name string, field []float64) {
	if field == nil {
		return
	}
	fmt.Fprintf(bw, "SCALARS %s double 1\nLOOKUP_TABLE default\n", name)
	for _, v := range field {
		bw.WriteString(formatFloat(v))
		bw.WriteByte('\n')
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
