package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"statusboard/internal/auth"
)

var (
	configPath string
	keySecret  string
)

func main() {
	app := &cli.App{
		Name:  "statusboard",
		Usage: "Aggregate status events and stream them to dashboards",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to the YAML configuration file",
				EnvVars:     []string{"STATUSBOARD_CONFIG"},
				Destination: &configPath,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server, alert sink and producers",
				Action: serve,
			},
			{
				Name:      "verify-key",
				Usage:     "Check a signed registration key and print the event it was issued for",
				ArgsUsage: "<key>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "secret",
						Usage:       "Signing secret the server issues keys with",
						EnvVars:     []string{"AUTH_SIGNING_SECRET"},
						Required:    true,
						Destination: &keySecret,
					},
				},
				Action: verifyKey,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func verifyKey(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.Exit("verify-key takes exactly one key", 2)
	}
	claims, err := auth.ParseRegistrationKey(ctx.Args().First(), []byte(keySecret))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid key: %v", err), 1)
	}
	issued := "unknown"
	if claims.IssuedAt != nil {
		issued = claims.IssuedAt.Time.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(ctx.App.Writer, "event=%s issuer=%s issued=%s\n", claims.EventID, claims.Issuer, issued)
	return nil
}
