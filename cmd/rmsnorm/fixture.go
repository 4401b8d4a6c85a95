package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/23skdu/longbow-rmsnorm/internal/fixture"
)

func fixtureCmd() *cli.Command {
	var (
		out  string
		seed int64
	)
	return &cli.Command{
		Name:  "fixture",
		Usage: "Write a CBOR file of golden cases computed with the reference",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "cases.cbor", Destination: &out},
			&cli.Int64Flag{Name: "seed", Value: 42, Destination: &seed},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cases := fixture.Generate(seed)
			if err := fixture.Save(out, cases); err != nil {
				return err
			}
			log.Info().Str("path", out).Int("cases", len(cases)).Msg("Wrote fixtures")
			return nil
		},
	}
}
