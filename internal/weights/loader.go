package weights

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
)

// Layout describes what a norm weight file contains after the gamma vector.
type Layout int

const (
	GammaOnly Layout = iota
	GammaBeta
)

// Load reads a norm weight stored as little-endian float32 values
// (gamma, then beta when layout is GammaBeta) and narrows it to T.
func Load[T tensor.Element](path string, hidden int, layout Layout) (*NormWeight[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Read[T](bufio.NewReader(file), hidden, layout)
}

// Read is Load over an arbitrary reader.
func Read[T tensor.Element](r io.Reader, hidden int, layout Layout) (*NormWeight[T], error) {
	gamma, err := readVector[T](r, hidden)
	if err != nil {
		return nil, fmt.Errorf("failed to load norm gamma: %w", err)
	}
	w := NewNormWeight(gamma)
	if layout == GammaBeta {
		beta, err := readVector[T](r, hidden)
		if err != nil {
			return nil, fmt.Errorf("failed to load norm beta: %w", err)
		}
		w.Beta = tensor.NewVector(beta)
	}
	return w, nil
}

// LoadMatrix reads a rows x cols activation dump stored as little-endian float32.
func LoadMatrix[T tensor.Element](path string, rows, cols int) (*tensor.Matrix[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := readVector[T](bufio.NewReader(file), rows*cols)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return tensor.NewMatrix(rows, cols, data)
}

// WriteFloat32 writes values widened to float32, little-endian, in the layout
// LoadMatrix and Load read back.
func WriteFloat32[T tensor.Element](w io.Writer, values []T) error {
	f32s := make([]float32, len(values))
	tensor.WidenSlice(f32s, values)
	return binary.Write(w, binary.LittleEndian, f32s)
}

func readVector[T tensor.Element](r io.Reader, n int) ([]T, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	// Read all float32s in one go
	f32s := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, f32s); err != nil {
		return nil, err
	}
	return tensor.FromFloat32[T](f32s), nil
}
