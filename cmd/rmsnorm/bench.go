package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/23skdu/longbow-rmsnorm/internal/device"
	"github.com/23skdu/longbow-rmsnorm/internal/rmsnorm"
	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
	"github.com/23skdu/longbow-rmsnorm/internal/weights"
)

// BenchReport is the result of one bench run.
type BenchReport struct {
	DType        string        `json:"dtype"`
	Tokens       int           `json:"tokens"`
	Hidden       int           `json:"hidden"`
	Iterations   int           `json:"iterations"`
	VecWidth     int           `json:"vec_width"`
	Lanes        int           `json:"lanes"`
	Total        time.Duration `json:"total_ns"`
	PerLaunch    time.Duration `json:"per_launch_ns"`
	TokensPerSec float64       `json:"tokens_per_sec"`
	GBPerSec     float64       `json:"gb_per_sec"`
}

func newBenchReport(dtype tensor.DType, tokens, hidden, iters int, last bool, cfg rmsnorm.Config, total time.Duration) BenchReport {
	r := BenchReport{
		DType:      dtype.String(),
		Tokens:     tokens,
		Hidden:     hidden,
		Iterations: iters,
		VecWidth:   cfg.VecWidth,
		Lanes:      cfg.Block,
		Total:      total,
	}
	if iters > 0 {
		r.PerLaunch = total / time.Duration(iters)
	}
	if secs := total.Seconds(); secs > 0 {
		r.TokensPerSec = float64(tokens*iters) / secs
		r.GBPerSec = float64(launchBytes(dtype, tokens, hidden, last)*iters) / secs / 1e9
	}
	return r
}

// launchBytes is the global memory one launch moves: hidden and residual
// read, hidden written, residual written unless last, weight read once.
func launchBytes(dtype tensor.DType, tokens, hidden int, last bool) int {
	streams := 3
	if !last {
		streams = 4
	}
	return (streams*tokens*hidden + hidden) * dtype.Size()
}

// Write renders the report as JSON or as aligned text.
func (r BenchReport) Write(w io.Writer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	p := message.NewPrinter(language.English)
	_, err := p.Fprintf(w,
		"dtype=%s tokens=%d hidden=%d vec_width=%d lanes=%d\n"+
			"iterations:     %d\n"+
			"total:          %v\n"+
			"per launch:     %v\n"+
			"tokens/sec:     %.0f\n"+
			"bandwidth:      %.2f GB/s\n",
		r.DType, r.Tokens, r.Hidden, r.VecWidth, r.Lanes,
		r.Iterations, r.Total, r.PerLaunch, r.TokensPerSec, r.GBPerSec)
	return err
}

func benchCmd() *cli.Command {
	var (
		tokens int64
		hidden int64
		iters  int64
		dtype  string
		eps    float64
		last   bool
		asJSON bool
		seed   int64
	)
	return &cli.Command{
		Name:  "bench",
		Usage: "Time repeated fused add+RMSNorm launches on random data",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "tokens", Value: 128, Destination: &tokens},
			&cli.Int64Flag{Name: "hidden", Value: 4096, Destination: &hidden},
			&cli.Int64Flag{Name: "iters", Value: 100, Destination: &iters},
			&cli.StringFlag{Name: "dtype", Value: "f32", Usage: "f32 or f16", Destination: &dtype},
			&cli.Float64Flag{Name: "eps", Value: 1e-6, Destination: &eps},
			&cli.BoolFlag{Name: "last", Usage: "benchmark the last-layer variant", Destination: &last},
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &asJSON},
			&cli.Int64Flag{Name: "seed", Value: 1, Destination: &seed},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dt, err := tensor.ParseDType(dtype)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if tokens < 0 || hidden <= 0 || iters <= 0 {
				return cli.Exit("error: --tokens must be >= 0, --hidden and --iters > 0", 1)
			}
			s, err := setup(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			p := benchParams{tokens: int(tokens), hidden: int(hidden), iters: int(iters), eps: float32(eps), last: last, seed: seed}
			var report BenchReport
			switch dt {
			case tensor.Float16:
				report, err = runBench[tensor.Half](ctx, s.stream, p)
			default:
				report, err = runBench[float32](ctx, s.stream, p)
			}
			if err != nil {
				return err
			}
			return report.Write(os.Stdout, asJSON)
		},
	}
}

type benchParams struct {
	tokens, hidden, iters int
	eps                   float32
	last                  bool
	seed                  int64
}

func runBench[T tensor.Element](ctx context.Context, s *device.Stream, p benchParams) (BenchReport, error) {
	rng := rand.New(rand.NewSource(p.seed))
	n := p.tokens * p.hidden
	hidden := tensor.MustMatrix(p.tokens, p.hidden, tensor.FromFloat32[T](randomSlice(rng, n)))
	residual := tensor.MustMatrix(p.tokens, p.hidden, tensor.FromFloat32[T](randomSlice(rng, n)))
	weight := weights.NewNormWeight(tensor.FromFloat32[T](randomSlice(rng, p.hidden)))

	dt := tensor.DTypeOf[T]()
	cfg := rmsnorm.SelectConfig(dt, p.tokens, p.hidden, s.Device())

	// Warm the scratch pool and worker goroutines.
	if err := rmsnorm.Normalize(ctx, s, hidden, residual, weight, p.eps, p.last); err != nil {
		return BenchReport{}, err
	}

	start := time.Now()
	for i := 0; i < p.iters; i++ {
		if err := rmsnorm.Launch(ctx, s, hidden, residual, weight, p.eps, p.last); err != nil {
			return BenchReport{}, err
		}
	}
	if err := s.Synchronize(); err != nil {
		return BenchReport{}, err
	}
	total := time.Since(start)

	log.Debug().Dur("total", total).Int("iters", p.iters).Msg("Bench finished")
	return newBenchReport(dt, p.tokens, p.hidden, p.iters, p.last, cfg, total), nil
}

func randomSlice(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}
