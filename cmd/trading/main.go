package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/ericfunman/boursicotor-sub000/internal/logger"
	"github.com/ericfunman/boursicotor-sub000/internal/marketdata"
	"github.com/ericfunman/boursicotor-sub000/internal/order"
	"github.com/ericfunman/boursicotor-sub000/internal/session"
	"github.com/ericfunman/boursicotor-sub000/internal/strategy"
)

// tradingAction wires a paper-trading session over a replayed CSV bar series
// and runs it for the requested duration.
func tradingAction(ctx context.Context, cmd *cli.Command) error {
	dataPath := cmd.String("data")
	symbol := cmd.String("symbol")
	interval := cmd.Duration("interval")
	duration := cmd.Duration("duration")
	exportPath := cmd.String("export")

	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	bars, err := marketdata.LoadCSV(dataPath, symbol)
	if err != nil {
		return err
	}

	provider := marketdata.NewSliceProvider(bars)
	broker := order.NewPaperBroker(provider.LatestPrice, 0.001)

	orderStore, err := order.NewStore(":memory:", appLogger)
	if err != nil {
		return err
	}
	defer orderStore.Close()

	if err := orderStore.Initialize(); err != nil {
		return err
	}

	sessionStore, err := session.NewStore(":memory:", appLogger)
	if err != nil {
		return err
	}
	defer sessionStore.Close()

	if err := sessionStore.Initialize(); err != nil {
		return err
	}

	manager := order.NewManager(orderStore, broker, appLogger)

	crossover := strategy.NewSMACrossover(int(cmd.Int("short")), int(cmd.Int("long")))
	registry := strategy.NewRegistry()
	registry.RegisterTicker(symbol)
	registry.RegisterStrategy(crossover.Name(), crossover.Func())

	config := session.DefaultConfig()
	config.PollingInterval = interval
	config.BufferSize = int(cmd.Int("long")) + 1
	config.OrderQuantity = cmd.Int("quantity")

	sess := session.NewSession(uuid.NewString(), symbol, crossover.Name(), config)
	if err := sessionStore.Insert(sess); err != nil {
		return err
	}

	trader := session.NewAutoTrader(sessionStore, manager, provider, registry, registry, appLogger)
	if err := trader.Start(sess.ID); err != nil {
		return err
	}

	// Reconcile fills and retry stuck submissions on the same cadence as
	// the session worker.
	sweepTicker := time.NewTicker(interval)
	defer sweepTicker.Stop()

	deadline := time.After(duration)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-sweepTicker.C:
			if _, err := manager.ReconcileFills(ctx); err != nil {
				log.Printf("fill reconciliation failed: %v", err)
			}

			if err := manager.CheckPendingSubmissions(ctx); err != nil {
				log.Printf("pending-submission sweep failed: %v", err)
			}
		}
	}

	if err := trader.Stop(sess.ID); err != nil {
		return err
	}

	final, err := sessionStore.Get(sess.ID)
	if err != nil {
		return err
	}

	if stopped, takeErr := final.Take(); takeErr == nil {
		log.Printf("Session %s finished: %d orders (%d ok, %d failed), position %d",
			stopped.ID, stopped.TotalOrders, stopped.SuccessfulOrders,
			stopped.FailedOrders, stopped.CurrentPosition)
	}

	if exportPath != "" {
		if err := orderStore.ExportParquet(exportPath); err != nil {
			return err
		}

		if err := sessionStore.ExportParquet(exportPath); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "trading",
		Usage: "Run a paper-trading session over a replayed bar series",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to the CSV bar series to replay",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Symbol being traded",
				Required: true,
			},
			&cli.DurationFlag{
				Name:     "interval",
				Aliases:  []string{"i"},
				Usage:    "Polling interval of the session worker",
				Value:    time.Second,
				Required: false,
			},
			&cli.DurationFlag{
				Name:     "duration",
				Usage:    "How long to keep the session running",
				Value:    time.Minute,
				Required: false,
			},
			&cli.IntFlag{
				Name:     "quantity",
				Aliases:  []string{"q"},
				Usage:    "Shares per entry order",
				Value:    1,
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
			&cli.StringFlag{
				Name:     "export",
				Aliases:  []string{"e"},
				Usage:    "Directory to export orders and sessions as Parquet",
				Required: false,
			},
		},
		Action: tradingAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
