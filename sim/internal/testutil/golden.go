// Package testutil provides shared test infrastructure for the lattice
// solver. It holds the golden dataset types and float assertion helpers used
// across sim/ and its sub-package tests.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one small deterministic run and the fields it must
// reproduce.
type GoldenTestCase struct {
	Name             string         `json:"name"`
	Rows             int            `json:"rows"`
	Cols             int            `json:"cols"`
	Dx               float64        `json:"dx"`
	Dt               float64        `json:"dt"`
	Viscosity        float64        `json:"viscosity"`   // 0 disables the momentum equation
	Diffusivity      float64        `json:"diffusivity"` // 0 disables the scalar equation
	Force            [2]float64     `json:"force"`
	LidSpeed         *float64       `json:"lid_speed"` // nil when the lid is off
	Velocity0        [2]float64     `json:"velocity0"`
	Topology         string         `json:"topology"`
	Steps            int            `json:"steps"`
	Sources          []GoldenSource `json:"sources"`
	SourceActivation string         `json:"source_activation"`
	Obstacles        [][2]int       `json:"obstacles"`
	ProbeColumn      int            `json:"probe_column"`
	ProbeRow         int            `json:"probe_row"`
	Expected         GoldenExpected `json:"expected"`
}

// GoldenSource is a point scalar source.
type GoldenSource struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Strength float64 `json:"strength"`
}

// GoldenExpected holds the fields after the last step. Columns run bottom to
// top at ProbeColumn; Concentration runs left to right at ProbeRow.
type GoldenExpected struct {
	MassNS        float64   `json:"mass_ns"`
	MassCD        float64   `json:"mass_cd"`
	Rho           []float64 `json:"rho"`
	Ux            []float64 `json:"ux"`
	Uy            []float64 `json:"uy"`
	Concentration []float64 `json:"concentration"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertFloat64Near passes when |want-got| <= absTol + relTol*max(|want|, |got|).
// Use it for fields that are zero up to round-off.
func AssertFloat64Near(t *testing.T, name string, want, got, relTol, absTol float64) {
	t.Helper()
	diff := math.Abs(want - got)
	if diff <= absTol+relTol*math.Max(math.Abs(want), math.Abs(got)) {
		return
	}
	t.Errorf("%s: got %v, want %v (diff=%v)", name, got, want, diff)
}

// AssertSliceNear applies AssertFloat64Near elementwise.
func AssertSliceNear(t *testing.T, name string, want, got []float64, relTol, absTol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Errorf("%s: got %d values, want %d", name, len(got), len(want))
		return
	}
	for i := range want {
		AssertFloat64Near(t, name, want[i], got[i], relTol, absTol)
	}
}
