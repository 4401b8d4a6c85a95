// Package rmsnorm implements the fused residual-add + RMSNorm stage of a
// decoder layer.
//
// For every token row it computes combined = hidden + residual, writes combined
// back to residual (unless the call is the model's last norm), and overwrites
// hidden with combined * gamma / sqrt(mean(combined^2) + eps). The transform is
// in place over caller-owned buffers; nothing is allocated per call beyond
// pooled block scratch.
package rmsnorm

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-rmsnorm/internal/device"
	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
	"github.com/23skdu/longbow-rmsnorm/internal/weights"
)

// KernelName labels launches in metrics, logs and traces.
const KernelName = "fused_add_rmsnorm"

// Launch validates the operands and enqueues one fused normalization on s.
//
// Shape errors are returned before anything is enqueued. Zero tokens or zero
// hidden units is a no-op. Otherwise Launch returns once the kernel is queued;
// work issued later on s observes the result, and execution failures are
// reported by s.Synchronize.
//
// hidden and residual must not be touched by anyone else until the launch has
// completed. weight is only read and may be shared by concurrent launches.
// eps must be positive; it is not checked, and non-finite inputs propagate to
// the output.
func Launch[T tensor.Element](ctx context.Context, s *device.Stream, hidden, residual *tensor.Matrix[T], weight *weights.NormWeight[T], eps float32, isLast bool) error {
	if err := validate(hidden, residual, weight); err != nil {
		return err
	}

	rows, cols := hidden.Dims()
	if rows == 0 || cols == 0 {
		skippedTotal.Inc()
		log.Debug().Int("tokens", rows).Int("hidden", cols).Msg("RMSNorm skipped: empty input")
		return nil
	}

	dtype := tensor.DTypeOf[T]()
	cfg := SelectConfig(dtype, rows, cols, s.Device())

	k := &fusedKernel[T]{
		hidden:   hidden.Data(),
		residual: residual.Data(),
		gamma:    weight.Gamma.Data(),
		cols:     cols,
		width:    cfg.VecWidth,
		groups:   cfg.Groups,
		eps:      eps,
		isLast:   isLast,
		codec:    tensor.CodecFor[T](),
	}

	if err := s.Launch(ctx, KernelName, cfg.LaunchConfig, k.run); err != nil {
		return err
	}

	path := "vector"
	if !cfg.Vectorized() {
		path = "scalar"
	}
	launchesTotal.WithLabelValues(dtype.String(), path).Inc()
	tokensTotal.WithLabelValues(dtype.String()).Add(float64(rows))
	log.Debug().
		Str("dtype", dtype.String()).
		Int("tokens", rows).
		Int("hidden", cols).
		Int("vec_width", cfg.VecWidth).
		Int("block", cfg.Block).
		Bool("is_last", isLast).
		Msg("RMSNorm launched")
	return nil
}

// Normalize is Launch followed by s.Synchronize. Because Synchronize reports
// the first failure on the stream, an error may belong to earlier work.
func Normalize[T tensor.Element](ctx context.Context, s *device.Stream, hidden, residual *tensor.Matrix[T], weight *weights.NormWeight[T], eps float32, isLast bool) error {
	if err := Launch(ctx, s, hidden, residual, weight, eps, isLast); err != nil {
		return err
	}
	return s.Synchronize()
}

func validate[T tensor.Element](hidden, residual *tensor.Matrix[T], weight *weights.NormWeight[T]) error {
	if hidden == nil || residual == nil || weight == nil || weight.Gamma == nil {
		return ErrNilTensor
	}

	rows, cols := hidden.Dims()
	rRows, rCols := residual.Dims()
	var err *ShapeError
	switch {
	case rRows != rows:
		err = &ShapeError{Dim: "num_tokens", Want: rows, Got: rRows}
	case rCols != cols:
		err = &ShapeError{Dim: "hidden_units", Want: cols, Got: rCols}
	case weight.Len() != cols:
		err = &ShapeError{Dim: "weight_len", Want: cols, Got: weight.Len()}
	}
	if err != nil {
		rejectedTotal.WithLabelValues(err.Dim).Inc()
		log.Warn().Err(err).Msg("RMSNorm rejected")
		return err
	}
	return nil
}
