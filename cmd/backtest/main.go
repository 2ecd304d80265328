package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/ericfunman/boursicotor-sub000/internal/backtest"
	"github.com/ericfunman/boursicotor-sub000/internal/logger"
	"github.com/ericfunman/boursicotor-sub000/internal/marketdata"
	"github.com/ericfunman/boursicotor-sub000/internal/strategy"
	"github.com/ericfunman/boursicotor-sub000/internal/types"
)

// backtestAction loads the bars and config, runs the backtest with a
// progress bar, and writes the result as YAML.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	dataPath := cmd.String("data")
	symbol := cmd.String("symbol")
	configPath := cmd.String("config")
	outputPath := cmd.String("output")
	shortPeriod := int(cmd.Int("short"))
	longPeriod := int(cmd.Int("long"))

	config := backtest.DefaultConfig()

	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		config, err = backtest.ParseConfig(raw)
		if err != nil {
			return err
		}
	}

	bars, err := marketdata.LoadCSV(dataPath, symbol)
	if err != nil {
		return err
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	runner, err := backtest.NewRunner(config, appLogger)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(len(bars)))
	runner.OnBarProcessed = func(processed, total int) {
		bar.Add(1)
	}

	crossover := strategy.NewSMACrossover(shortPeriod, longPeriod)

	result, err := runner.Run(bars, crossover.Func(), symbol)
	if err != nil {
		return err
	}

	if err := types.WriteResult(outputPath, result); err != nil {
		return err
	}

	log.Printf("Backtest of %s with %s finished: %d trades, total return %.2f%%, result written to %s",
		symbol, crossover.Name(), result.TotalTrades, result.TotalReturn, outputPath)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run a trade simulation over a historical bar series",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to the CSV bar series",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Symbol being simulated",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML backtest config (defaults apply when omitted)",
				Required: false,
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Path of the YAML result file",
				Value:    "backtest_result.yaml",
				Required: false,
			},
			&cli.IntFlag{
				Name:     "short",
				Usage:    "Short moving-average period",
				Value:    5,
				Required: false,
			},
			&cli.IntFlag{
				Name:     "long",
				Usage:    "Long moving-average period",
				Value:    20,
				Required: false,
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
