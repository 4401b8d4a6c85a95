package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/23skdu/longbow-rmsnorm/internal/device"
	"github.com/23skdu/longbow-rmsnorm/internal/export"
	"github.com/23skdu/longbow-rmsnorm/internal/rmsnorm"
	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
	"github.com/23skdu/longbow-rmsnorm/internal/weights"
)

type runParams struct {
	hiddenFile   string
	residualFile string
	weightFile   string
	out          string
	tokens       int
	hidden       int
	eps          float32
	last         bool
}

func runCmd() *cli.Command {
	var (
		p      runParams
		tokens int64
		hidden int64
		eps    float64
		dtype  string
	)
	return &cli.Command{
		Name:  "run",
		Usage: "Apply fused add+RMSNorm to float32 dumps and write an Arrow IPC stream",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "hidden-file", Required: true, Destination: &p.hiddenFile},
			&cli.StringFlag{Name: "residual-file", Required: true, Destination: &p.residualFile},
			&cli.StringFlag{Name: "weight-file", Usage: "gamma as float32 (default: ones)", Destination: &p.weightFile},
			&cli.Int64Flag{Name: "tokens", Required: true, Destination: &tokens},
			&cli.Int64Flag{Name: "hidden", Required: true, Destination: &hidden},
			&cli.Float64Flag{Name: "eps", Value: 1e-6, Destination: &eps},
			&cli.StringFlag{Name: "dtype", Value: "f32", Usage: "precision to compute in (f32 or f16)", Destination: &dtype},
			&cli.BoolFlag{Name: "last", Usage: "skip the residual write-back", Destination: &p.last},
			&cli.StringFlag{Name: "out", Value: "out.arrow", Destination: &p.out},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dt, err := tensor.ParseDType(dtype)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if tokens < 0 || hidden <= 0 {
				return cli.Exit("error: --tokens must be >= 0 and --hidden > 0", 1)
			}
			p.tokens, p.hidden, p.eps = int(tokens), int(hidden), float32(eps)

			s, err := setup(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if dt == tensor.Float16 {
				return runNorm[tensor.Half](ctx, s.stream, p)
			}
			return runNorm[float32](ctx, s.stream, p)
		},
	}
}

func runNorm[T tensor.Element](ctx context.Context, s *device.Stream, p runParams) error {
	hidden, err := weights.LoadMatrix[T](p.hiddenFile, p.tokens, p.hidden)
	if err != nil {
		return err
	}
	residual, err := weights.LoadMatrix[T](p.residualFile, p.tokens, p.hidden)
	if err != nil {
		return err
	}
	weight := weights.Ones[T](p.hidden)
	if p.weightFile != "" {
		if weight, err = weights.Load[T](p.weightFile, p.hidden, weights.GammaOnly); err != nil {
			return err
		}
	}

	if err := rmsnorm.Normalize(ctx, s, hidden, residual, weight, p.eps, p.last); err != nil {
		return err
	}

	rec, err := export.NewRecordBatchBuilder(memory.DefaultAllocator).
		Build(hidden.ToFloat32(), residual.ToFloat32(), p.tokens, p.hidden)
	if err != nil {
		return err
	}
	defer rec.Release()

	f, err := os.Create(p.out)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := export.WriteStream(w, rec); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("path", p.out).Int("tokens", p.tokens).Int("hidden", p.hidden).Msg("Wrote normalized output")
	return nil
}
