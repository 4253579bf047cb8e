package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"motionsense-go/bus"
	"motionsense-go/config"
	"motionsense-go/inference"
	"motionsense-go/sensors"
	"motionsense-go/services/app"
	"motionsense-go/services/button"
	"motionsense-go/services/console"
	"motionsense-go/services/detection"
	"motionsense-go/services/monitor"
	"motionsense-go/services/sampling"
	"motionsense-go/services/telemetry"
	"motionsense-go/types"
)

func main() {
	configPath := flag.String("config", "./motionsense.conf", "path to configuration file")
	withConsole := flag.Bool("console", true, "read commands from stdin")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *withConsole); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Print("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, withConsole bool) error {
	// Event channels. Everything downstream hangs off these three.
	buttons := bus.NewChannel[types.ButtonEvent]("button")
	samples := bus.NewChannel[types.InertialSample]("imu")
	results := bus.NewChannel[types.ClassificationResult]("classification")

	dev, err := openIMU(cfg)
	if err != nil {
		return err
	}

	engine := sampling.New(dev, samples, os.Stdout)
	if err := engine.Init(); err != nil {
		return err
	}
	if err := engine.SetFrequency(cfg.SamplingHz); err != nil {
		return err
	}

	bridge := detection.New(inference.NewHeuristic(cfg.SamplingHz), results)
	if err := bridge.Init(); err != nil {
		return err
	}
	bridge.Attach(samples)

	// Human-readable classification display.
	results.AddListener(func(r *types.ClassificationResult) {
		log.Printf("detected: %s (%.0f%%)", types.ClassName(r.PredictedClass), r.Confidence*100)
	})

	detector := button.New(button.Config{
		Debounce:          time.Duration(cfg.DebounceMS) * time.Millisecond,
		LongPress:         time.Duration(cfg.LongPressMS) * time.Millisecond,
		DoublePressWindow: time.Duration(cfg.DoublePressMS) * time.Millisecond,
	}, buttons)

	machine := app.New(engine, bridge, cfg.SamplingHz)
	machine.Attach(buttons)

	var watcher *sensors.PinWatcher
	if !cfg.MockIMU {
		watcher, err = sensors.NewPinWatcher(cfg.ButtonPin, button.Mask, cfg.ButtonInvert, detector.OnEdge)
		if err != nil {
			return err
		}
	}

	if cfg.TelemetryEnabled {
		uplink := telemetry.New(telemetry.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		})
		if err := uplink.Start(ctx, samples, results); err != nil {
			// The device is useful without the uplink; keep going.
			log.Printf("telemetry disabled: %v", err)
		}
	}

	if cfg.MonitorEnabled {
		mon := monitor.New(cfg.MonitorAddr, samples, results)
		go func() {
			if err := mon.Start(ctx); err != nil {
				log.Printf("monitor: %v", err)
			}
		}()
	}

	go detector.Run(ctx)
	go engine.Run(ctx)
	if watcher != nil {
		go watcher.Run(ctx)
	}
	if withConsole {
		go func() {
			c := console.New(os.Stdin, os.Stdout, machine, engine, bridge, buttons)
			if err := c.Run(); err != nil {
				log.Printf("console: %v", err)
			}
		}()
	}

	machine.Run(ctx)
	return nil
}

// openIMU selects the real SPI device or the synthetic one, per
// configuration. Mock mode also skips GPIO setup, so button gestures come
// from the console only.
func openIMU(cfg *config.Config) (sensors.Device, error) {
	if cfg.MockIMU {
		log.Print("using synthetic IMU, button gestures via console only")
		return sensors.NewMockDevice(), nil
	}
	if err := sensors.InitHost(); err != nil {
		return nil, err
	}
	return sensors.NewMPU9250(cfg.SPIDevice, cfg.CSPin)
}
