package fixture

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-rmsnorm/internal/device"
	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
)

func newStream(t *testing.T) *device.Stream {
	t.Helper()
	dev, err := device.New(2, 0)
	require.NoError(t, err)
	s := device.NewStream(dev, 0)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGenerate(t *testing.T) {
	cases := Generate(1)
	require.NotEmpty(t, cases)

	names := map[string]bool{}
	for _, c := range cases {
		require.NoError(t, c.Validate(), c.Name)
		assert.False(t, names[c.Name], "duplicate case %s", c.Name)
		names[c.Name] = true
	}
	assert.True(t, names["single_token"])
	assert.True(t, names["single_token_last"])

	// Same seed, same suite.
	assert.Equal(t, cases, Generate(1))
}

func TestSingleTokenExpectations(t *testing.T) {
	cases := Generate(1)
	byName := map[string]Case{}
	for _, c := range cases {
		byName[c.Name] = c
	}

	c := byName["single_token"]
	for _, v := range c.WantHidden {
		assert.InDelta(t, 0.99999, v, 1e-5)
	}
	assert.Equal(t, []float32{1, 1, 1, 1}, c.WantResidual)

	last := byName["single_token_last"]
	assert.Equal(t, c.WantHidden, last.WantHidden)
	assert.Equal(t, []float32{0, 0, 0, 0}, last.WantResidual)
}

func TestHalfCasesAreRepresentable(t *testing.T) {
	for _, c := range Generate(3) {
		if c.DType != tensor.Float16.String() {
			continue
		}
		for _, v := range c.HiddenIn {
			require.Equal(t, v, tensor.Widen(tensor.Narrow[tensor.Half](v)), c.Name)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	cases := Generate(2)[:4]

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, cases))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cases, got)
}

func TestDecode_RejectsBadInput(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0xff, 0x00}))
	assert.Error(t, err)

	data, err := cbor.Marshal(suite{Version: Version + 1})
	require.NoError(t, err)
	_, err = Decode(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrVersion)

	bad := Generate(1)[0]
	bad.WantHidden = bad.WantHidden[:2]
	data, err = cbor.Marshal(suite{Version: Version, Cases: []Case{bad}})
	require.NoError(t, err)
	_, err = Decode(bytes.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want_hidden")
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.cbor")
	cases := Generate(5)[:3]
	require.NoError(t, Save(path, cases))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cases, got)
}

func TestRun_GoldenSuitePasses(t *testing.T) {
	s := newStream(t)
	for _, c := range Generate(7) {
		t.Run(c.Name, func(t *testing.T) {
			res, err := Run(context.Background(), s, c)
			require.NoError(t, err)
			assert.True(t, res.Passed(), "%+v", res)
		})
	}
}

func TestRun_DetectsCorruptExpectation(t *testing.T) {
	s := newStream(t)
	c := Generate(1)[0]
	c.WantHidden[2] += 0.5
	c.WantResidual[1] = 3

	res, err := Run(context.Background(), s, c)
	require.NoError(t, err)
	assert.False(t, res.Passed())
	assert.Equal(t, 1, res.HiddenMismatches)
	assert.Equal(t, 1, res.ResidualMismatches)
	assert.InDelta(t, 0.5, res.MaxAbsErr, 1e-4)
}

func TestRun_BadDType(t *testing.T) {
	s := newStream(t)
	c := Generate(1)[0]
	c.DType = "int8"
	_, err := Run(context.Background(), s, c)
	assert.Error(t, err)
}
