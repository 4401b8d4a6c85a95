package export

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)
	builder := NewRecordBatchBuilder(pool)

	t.Run("Size mismatch", func(t *testing.T) {
		_, err := builder.Build([]float32{1, 2}, []float32{1}, 1, 2)
		assert.Error(t, err)
	})

	t.Run("Valid input", func(t *testing.T) {
		rb, err := builder.Build(
			[]float32{1, 2, 3, 4, 5, 6},
			[]float32{10, 20, 30, 40, 50, 60},
			2, 3)
		require.NoError(t, err)
		defer rb.Release()

		assert.Equal(t, int64(2), rb.NumRows())
		assert.Equal(t, int64(3), rb.NumCols())
		assert.Equal(t, "hidden", rb.ColumnName(1))

		tokens := rb.Column(0).(*array.Int32)
		assert.Equal(t, []int32{0, 1}, tokens.Int32Values())

		hidden := rb.Column(1).(*array.FixedSizeList)
		values := hidden.ListValues().(*array.Float32)
		assert.Equal(t, 6, values.Len())
		assert.Equal(t, float32(1), values.Value(0))
		assert.Equal(t, float32(6), values.Value(5))

		residual := rb.Column(2).(*array.FixedSizeList).ListValues().(*array.Float32)
		assert.Equal(t, float32(40), residual.Value(3))
	})
}

func TestWriteStream(t *testing.T) {
	pool := memory.NewGoAllocator()
	rb, err := NewRecordBatchBuilder(pool).Build([]float32{0.5, -0.5}, []float32{1, 2}, 1, 2)
	require.NoError(t, err)
	defer rb.Release()

	var buf bytes.Buffer
	require.NoError(t, WriteStream(&buf, rb))

	reader, err := ipc.NewReader(&buf, ipc.WithAllocator(pool))
	require.NoError(t, err)
	defer reader.Release()

	require.True(t, reader.Next())
	rec := reader.Record()
	assert.Equal(t, int64(1), rec.NumRows())
	assert.True(t, rec.Schema().Equal(Schema(2)))
	values := rec.Column(1).(*array.FixedSizeList).ListValues().(*array.Float32)
	assert.Equal(t, []float32{0.5, -0.5}, values.Float32Values())
	assert.False(t, reader.Next())
}
