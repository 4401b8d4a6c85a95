package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// RecordBatchBuilder turns normalized rows into Arrow record batches.
type RecordBatchBuilder struct {
	mem memory.Allocator
}

// NewRecordBatchBuilder creates a new builder.
func NewRecordBatchBuilder(mem memory.Allocator) *RecordBatchBuilder {
	return &RecordBatchBuilder{mem: mem}
}

// Schema is { token: int32, hidden: fixed_size_list<float32>[h], residual: fixed_size_list<float32>[h] }.
func Schema(hidden int) *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "token", Type: arrow.PrimitiveTypes.Int32},
			{Name: "hidden", Type: arrow.FixedSizeListOf(int32(hidden), arrow.PrimitiveTypes.Float32)},
			{Name: "residual", Type: arrow.FixedSizeListOf(int32(hidden), arrow.PrimitiveTypes.Float32)},
		},
		nil,
	)
}

// Build converts row-major hidden and residual buffers of tokens x hidden
// values into one record batch. The caller releases the result.
func (b *RecordBatchBuilder) Build(hiddenOut, residualOut []float32, tokens, hidden int) (arrow.RecordBatch, error) {
	n := tokens * hidden
	if len(hiddenOut) != n || len(residualOut) != n {
		return nil, fmt.Errorf("export: want %d values per column, got hidden=%d residual=%d", n, len(hiddenOut), len(residualOut))
	}

	tokenBuilder := array.NewInt32Builder(b.mem)
	defer tokenBuilder.Release()
	hiddenBuilder := array.NewFixedSizeListBuilder(b.mem, int32(hidden), arrow.PrimitiveTypes.Float32)
	defer hiddenBuilder.Release()
	residualBuilder := array.NewFixedSizeListBuilder(b.mem, int32(hidden), arrow.PrimitiveTypes.Float32)
	defer residualBuilder.Release()

	hiddenValues := hiddenBuilder.ValueBuilder().(*array.Float32Builder)
	residualValues := residualBuilder.ValueBuilder().(*array.Float32Builder)

	for i := 0; i < tokens; i++ {
		tokenBuilder.Append(int32(i))
		hiddenBuilder.Append(true)
		hiddenValues.AppendValues(hiddenOut[i*hidden:(i+1)*hidden], nil)
		residualBuilder.Append(true)
		residualValues.AppendValues(residualOut[i*hidden:(i+1)*hidden], nil)
	}

	cols := []arrow.Array{tokenBuilder.NewArray(), hiddenBuilder.NewArray(), residualBuilder.NewArray()}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	return array.NewRecordBatch(Schema(hidden), cols, int64(tokens)), nil
}

// WriteStream writes rec to w as an Arrow IPC stream.
func WriteStream(w io.Writer, rec arrow.RecordBatch) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}
