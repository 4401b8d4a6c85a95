package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/23skdu/longbow-rmsnorm/internal/device"
	"github.com/23skdu/longbow-rmsnorm/internal/fixture"
	"github.com/23skdu/longbow-rmsnorm/internal/tensor"
)

func verifyCmd() *cli.Command {
	var (
		path  string
		dtype string
	)
	return &cli.Command{
		Name:  "verify",
		Usage: "Replay golden cases and fail on any output outside tolerance",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fixtures", Value: "cases.cbor", Destination: &path},
			&cli.StringFlag{Name: "dtype", Usage: "only replay cases of this dtype", Destination: &dtype},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cases, err := fixture.Load(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cases, err = filterCases(cases, dtype)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			s, err := setup(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			failed, err := verifyCases(ctx, s.stream, cases)
			if err != nil {
				return err
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d cases failed", failed, len(cases)), 1)
			}
			log.Info().Int("cases", len(cases)).Msg("All cases passed")
			return nil
		},
	}
}

// filterCases keeps the cases of dtype; an empty dtype keeps all of them.
func filterCases(cases []fixture.Case, dtype string) ([]fixture.Case, error) {
	if dtype == "" {
		return cases, nil
	}
	want, err := tensor.ParseDType(dtype)
	if err != nil {
		return nil, err
	}
	out := cases[:0:0]
	for _, c := range cases {
		if got, err := tensor.ParseDType(c.DType); err == nil && got == want {
			out = append(out, c)
		}
	}
	return out, nil
}

func verifyCases(ctx context.Context, s *device.Stream, cases []fixture.Case) (int, error) {
	failed := 0
	for _, c := range cases {
		if err := c.Validate(); err != nil {
			return failed, err
		}
		res, err := fixture.Run(ctx, s, c)
		if err != nil {
			return failed, err
		}
		ev := log.Info()
		if !res.Passed() {
			failed++
			ev = log.Error()
		}
		ev.Str("case", res.Name).
			Str("dtype", res.DType).
			Float64("max_abs_err", res.MaxAbsErr).
			Int("hidden_mismatches", res.HiddenMismatches).
			Int("residual_mismatches", res.ResidualMismatches).
			Bool("passed", res.Passed()).
			Msg("Case replayed")
	}
	return failed, nil
}
