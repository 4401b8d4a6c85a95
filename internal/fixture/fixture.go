// Package fixture stores golden RMSNorm cases and replays them against the kernel.
package fixture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/23skdu/longbow-rmsnorm/internal/device"
	"github.com/23skdu/longbow-rmsnorm/internal/rmsnorm"
	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
	"github.com/23skdu/longbow-rmsnorm/internal/weights"
)

// Version is bumped when the Case encoding changes incompatibly.
const Version = 1

var ErrVersion = errors.New("fixture: unsupported version")

// Case is one golden call: inputs plus the reference outputs.
// All values are stored as float32 already rounded to the case's dtype.
type Case struct {
	Name         string    `cbor:"name"`
	DType        string    `cbor:"dtype"`
	Tokens       int       `cbor:"tokens"`
	Hidden       int       `cbor:"hidden"`
	Eps          float32   `cbor:"eps"`
	IsLast       bool      `cbor:"is_last"`
	HiddenIn     []float32 `cbor:"hidden_in"`
	ResidualIn   []float32 `cbor:"residual_in"`
	Weight       []float32 `cbor:"weight"`
	WantHidden   []float32 `cbor:"want_hidden"`
	WantResidual []float32 `cbor:"want_residual"`
}

type suite struct {
	Version int    `cbor:"version"`
	Cases   []Case `cbor:"cases"`
}

// Validate checks the case's buffers agree with its declared shape.
func (c *Case) Validate() error {
	if _, err := tensor.ParseDType(c.DType); err != nil {
		return fmt.Errorf("case %s: %w", c.Name, err)
	}
	n := c.Tokens * c.Hidden
	for name, got := range map[string]int{
		"hidden_in":     len(c.HiddenIn),
		"residual_in":   len(c.ResidualIn),
		"want_hidden":   len(c.WantHidden),
		"want_residual": len(c.WantResidual),
	} {
		if got != n {
			return fmt.Errorf("case %s: %s has %d values, want %d", c.Name, name, got, n)
		}
	}
	if len(c.Weight) != c.Hidden {
		return fmt.Errorf("case %s: weight has %d values, want %d", c.Name, len(c.Weight), c.Hidden)
	}
	return nil
}

// NewCase builds a case from inputs, rounding them to dtype and filling the
// expected outputs from the float64 reference.
func NewCase(name string, dtype tensor.DType, tokens, hidden int, h, r, g []float32, eps float32, isLast bool) Case {
	c := Case{
		Name:       name,
		DType:      dtype.String(),
		Tokens:     tokens,
		Hidden:     hidden,
		Eps:        eps,
		IsLast:     isLast,
		HiddenIn:   roundTo(dtype, h),
		ResidualIn: roundTo(dtype, r),
		Weight:     roundTo(dtype, g),
	}
	c.WantHidden, c.WantResidual = rmsnorm.Reference(c.HiddenIn, c.ResidualIn, c.Weight, tokens, hidden, eps, isLast)
	return c
}

func roundTo(dtype tensor.DType, src []float32) []float32 {
	out := make([]float32, len(src))
	copy(out, src)
	if dtype == tensor.Float16 {
		// float16 round trip
		tensor.WidenSlice(out, tensor.FromFloat32[tensor.Half](src))
	}
	return out
}

// Generate returns the built-in golden suite: the single-token scenarios, the
// scalar fallback and vectorized shapes for both dtypes.
func Generate(seed int64) []Case {
	ones := []float32{1, 1, 1, 1}
	zeros := []float32{0, 0, 0, 0}

	cases := []Case{
		NewCase("single_token", tensor.Float32, 1, 4, ones, zeros, ones, 1e-5, false),
		NewCase("single_token_last", tensor.Float32, 1, 4, ones, zeros, ones, 1e-5, true),
		NewCase("single_token_f16", tensor.Float16, 1, 4, ones, zeros, ones, 1e-5, false),
	}

	rng := rand.New(rand.NewSource(seed))
	shapes := []struct {
		tokens, hidden int
	}{
		{3, 6},
		{8, 127},
		{16, 512},
		{4, 4096},
	}
	for _, dtype := range []tensor.DType{tensor.Float32, tensor.Float16} {
		for _, sh := range shapes {
			for _, isLast := range []bool{false, true} {
				n := sh.tokens * sh.hidden
				name := fmt.Sprintf("random_%s_%dx%d_last=%t", dtype, sh.tokens, sh.hidden, isLast)
				cases = append(cases, NewCase(name, dtype, sh.tokens, sh.hidden,
					random(rng, n, 4), random(rng, n, 4), random(rng, sh.hidden, 2), 1e-6, isLast))
			}
		}
	}
	return cases
}

func random(rng *rand.Rand, n int, spread float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = (rng.Float32() - 0.5) * spread
	}
	return out
}

// Encode writes cases as one CBOR document.
func Encode(w io.Writer, cases []Case) error {
	return cbor.NewEncoder(w).Encode(suite{Version: Version, Cases: cases})
}

// Decode reads a document written by Encode and validates every case.
func Decode(r io.Reader) ([]Case, error) {
	var s suite
	if err := cbor.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("fixture: decode: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, s.Version)
	}
	for i := range s.Cases {
		if err := s.Cases[i].Validate(); err != nil {
			return nil, err
		}
	}
	return s.Cases, nil
}

// Save encodes cases to path.
func Save(path string, cases []Case) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := Encode(w, cases); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load decodes cases from path.
func Load(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}

// Result summarizes one replayed case.
type Result struct {
	Name               string
	DType              string
	MaxAbsErr          float64
	HiddenMismatches   int
	ResidualMismatches int
}

// Passed reports whether every output was within tolerance.
func (r Result) Passed() bool {
	return r.HiddenMismatches == 0 && r.ResidualMismatches == 0
}

// Run replays c on s and compares the outputs with the case's expectations.
// Residuals must match exactly for float32 and when the case is the last norm.
func Run(ctx context.Context, s *device.Stream, c Case) (Result, error) {
	dtype, err := tensor.ParseDType(c.DType)
	if err != nil {
		return Result{}, err
	}
	if dtype == tensor.Float16 {
		return run[tensor.Half](ctx, s, c, dtype)
	}
	return run[float32](ctx, s, c, dtype)
}

func run[T tensor.Element](ctx context.Context, s *device.Stream, c Case, dtype tensor.DType) (Result, error) {
	hidden, err := tensor.NewMatrix(c.Tokens, c.Hidden, tensor.FromFloat32[T](c.HiddenIn))
	if err != nil {
		return Result{}, err
	}
	residual, err := tensor.NewMatrix(c.Tokens, c.Hidden, tensor.FromFloat32[T](c.ResidualIn))
	if err != nil {
		return Result{}, err
	}
	weight := weights.NewNormWeight(tensor.FromFloat32[T](c.Weight))

	if err := rmsnorm.Normalize(ctx, s, hidden, residual, weight, c.Eps, c.IsLast); err != nil {
		return Result{}, fmt.Errorf("case %s: %w", c.Name, err)
	}

	res := Result{Name: c.Name, DType: c.DType}
	tol := rmsnorm.ToleranceFor(dtype)
	for i, got := range hidden.ToFloat32() {
		want := float64(c.WantHidden[i])
		if d := math.Abs(float64(got) - want); d > res.MaxAbsErr {
			res.MaxAbsErr = d
		}
		if !tol.Within(float64(got), want) {
			res.HiddenMismatches++
		}
	}

	exact := dtype == tensor.Float32 || c.IsLast
	for i, got := range residual.ToFloat32() {
		want := c.WantResidual[i]
		if exact {
			if math.Float32bits(got) != math.Float32bits(want) {
				res.ResidualMismatches++
			}
		} else if !tol.Within(float64(got), float64(want)) {
			res.ResidualMismatches++
		}
	}
	return res, nil
}
