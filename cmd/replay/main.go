package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/replay"
	"github.com/candlelab/replay/internal/replay/datasource"
	signalprovider "github.com/candlelab/replay/internal/replay/signal"
	"github.com/candlelab/replay/internal/replay/sink"
	"github.com/candlelab/replay/internal/server"
	"github.com/candlelab/replay/internal/types"
	"github.com/candlelab/replay/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:    "replay",
		Usage:   "Replay historical candles through a deterministic trade simulation",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			runCommand(),
			watchCommand(),
			serveCommand(),
			schemaCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func dataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    "Path to the replay config YAML",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "Path to the candle data file (CSV or Parquet)",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "signals",
			Aliases:  []string{"s"},
			Usage:    "Optional path to a scripted signals YAML file",
			Required: false,
		},
	}
}

// buildController wires a controller from the common run/watch flags.
func buildController(cmd *cli.Command, out sink.Sink, log *logger.Logger, opts ...replay.ControllerOption) (*replay.Controller, error) {
	content, err := os.ReadFile(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config, err := replay.ParseConfig(string(content))
	if err != nil {
		return nil, err
	}

	source, err := datasource.NewDuckDBSource(":memory:", config.Symbol, log)
	if err != nil {
		return nil, err
	}

	if err := source.Initialize(cmd.String("data")); err != nil {
		source.Close()

		return nil, err
	}

	var provider signalprovider.Provider = signalprovider.NewNoopProvider()

	if signalsPath := cmd.String("signals"); signalsPath != "" {
		signals, err := LoadSignalsFile(signalsPath)
		if err != nil {
			source.Close()

			return nil, err
		}

		provider = signalprovider.NewScriptedProvider(signals)
	}

	return replay.NewController(config, source, provider, out, log, opts...), nil
}

func runCommand() *cli.Command {
	flags := append(dataFlags(),
		&cli.StringFlag{
			Name:     "output",
			Aliases:  []string{"o"},
			Usage:    "Path to write the statistics report YAML",
			Value:    "replay_stats.yaml",
			Required: false,
		},
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Run a replay at full speed and write the statistics report",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			zapLog, err := logger.NewLogger()
			if err != nil {
				return err
			}
			defer zapLog.Sync()

			out := sink.NewChannelSink(64)

			controller, err := buildController(cmd, out, zapLog)
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(100,
				progressbar.OptionSetDescription("replaying"),
				progressbar.OptionShowCount(),
			)

			go func() {
				for snapshot := range out.Snapshots() {
					bar.Set(int(snapshot.ProgressPercent))
				}
			}()

			runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := controller.Run(runCtx); err != nil {
				return err
			}

			out.Close()
			bar.Finish()

			report := controller.Report()
			printSummary(report, controller.Snapshot())

			outputPath := cmd.String("output")
			if err := types.WriteStatistics(outputPath, report); err != nil {
				return err
			}

			fmt.Printf("\nStatistics written to %s\n", outputPath)

			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Replay interactively with pause, step, speed and seek controls",
		Flags: append(dataFlags(),
			&cli.FloatFlag{
				Name:     "interval",
				Aliases:  []string{"i"},
				Usage:    "Seconds of wall-clock time per candle at speed 1",
				Value:    1.0,
				Required: false,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// The TUI owns the terminal, so logs must not reach stdout.
			quiet := logger.NewTestLogger()

			pace := time.Duration(cmd.Float("interval") * float64(time.Second))

			controller, err := buildController(cmd, nil, quiet, replay.WithStreaming(pace))
			if err != nil {
				return err
			}

			go controller.Run(ctx)

			program := tea.NewProgram(NewModel(controller), tea.WithContext(ctx))
			if _, err := program.Run(); err != nil {
				return err
			}

			controller.Stop()
			<-controller.Done()

			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the replay control API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Aliases:  []string{"a"},
				Usage:    "Listen address",
				Value:    ":8080",
				Required: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			zapLog, err := logger.NewLogger()
			if err != nil {
				return err
			}
			defer zapLog.Sync()

			srv := server.NewServer(server.NewManager(zapLog), zapLog)
			if err := srv.Start(cmd.String("address")); err != nil {
				return err
			}

			waitCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			<-waitCtx.Done()

			return srv.Stop()
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the replay config",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config := replay.DefaultConfig()

			schemaJSON, err := config.GenerateSchemaJSON()
			if err != nil {
				return err
			}

			fmt.Println(schemaJSON)

			return nil
		},
	}
}

func printSummary(report types.ComprehensiveStatistics, snapshot types.Snapshot) {
	fmt.Printf("\n\nReplay %s finished (%s)\n", report.RunID, snapshot.Status)
	fmt.Printf("  Candles:       %d\n", snapshot.CandleIndex)
	fmt.Printf("  Trades:        %d (win rate %.1f%%)\n", report.Trade.TotalTrades, report.Trade.WinRate*100)
	fmt.Printf("  Net P&L:       %.2f\n", report.Trade.NetPnL)
	fmt.Printf("  Final balance: %.2f\n", snapshot.Balance)
	fmt.Printf("  Max drawdown:  %.2f (%.1f%%)\n", report.Risk.MaxDrawdown, report.Risk.MaxDrawdownPercent*100)
	fmt.Printf("  Sharpe:        %.2f\n", report.Risk.SharpeRatio)
}
