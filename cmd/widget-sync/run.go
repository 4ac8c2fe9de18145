package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/widget-sync/internal/action"
	"github.com/sweeney/widget-sync/internal/automation"
	"github.com/sweeney/widget-sync/internal/clock"
	"github.com/sweeney/widget-sync/internal/config"
	"github.com/sweeney/widget-sync/internal/device"
	"github.com/sweeney/widget-sync/internal/gpio"
	"github.com/sweeney/widget-sync/internal/logging"
	"github.com/sweeney/widget-sync/internal/mqtt"
	"github.com/sweeney/widget-sync/internal/query"
	"github.com/sweeney/widget-sync/internal/status"
	"github.com/sweeney/widget-sync/internal/storage"
	"github.com/sweeney/widget-sync/internal/web"
	"github.com/sweeney/widget-sync/internal/widget"
)

// linkTypeGPIO routes linked actions to a local output line.
const linkTypeGPIO = "gpio"

const shutdownTimeout = 5 * time.Second

func newRunCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the device daemon",
		Long: `Connect to the MQTT broker, mirror controller widgets and run the
automation rule until SIGINT or SIGTERM.

Example:
  widget-sync run --config /etc/widget-sync/config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
}

func openStorage(cfg config.StorageConfig) (storage.Blocks, error) {
	if cfg.Path == "" {
		return storage.NewMemory(cfg.Size), nil
	}
	return storage.OpenSQLite(cfg.Path, cfg.Size)
}

func registerWidgets(dev *device.Device, w config.WidgetsConfig) {
	for _, group := range []struct {
		kind  widget.Kind
		names []string
	}{
		{widget.KindButton, w.Buttons},
		{widget.KindSlider, w.Sliders},
		{widget.KindToggle, w.Toggles},
		{widget.KindRGB, w.RGB},
	} {
		for _, name := range group.names {
			dev.Register(group.kind, name)
		}
	}
}

func run(cfg *config.Config) error {
	logger := logging.New(cfg.Logging, version)
	log := logger.Component("main")

	blocks, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if c, ok := blocks.(io.Closer); ok {
		defer c.Close()
	}

	clk := clock.New(cfg.Location(), time.Now)

	client := mqtt.NewClient(mqtt.Options{
		Broker:        cfg.MQTT.Broker,
		ClientID:      cfg.MQTT.ClientID,
		Username:      cfg.MQTT.Username,
		Password:      cfg.MQTT.Password,
		Prefix:        cfg.MQTT.Prefix,
		DeviceID:      cfg.Device.ID,
		InboundQueue:  cfg.MQTT.InboundQueue,
		OfflineBuffer: cfg.MQTT.OfflineBuffer,
		Logger:        logger.Component("mqtt"),
	})
	defer client.Close()

	router := action.NewRouter().
		Default(mqtt.NewLinkPublisher(client, cfg.MQTT.LinkPrefix, cfg.Device.ID))
	if cfg.GPIO.Enabled {
		w, err := gpio.NewRealWriter(cfg.GPIO.Chip, cfg.GPIO.Lines, cfg.GPIO.ActiveLow)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer w.Close()
		router.Handle(linkTypeGPIO, gpio.NewActuator(w))
	}

	var engine *automation.Engine
	if cfg.Automation.Enabled {
		engine = automation.NewEngine(automation.Options{
			Clock:       clk,
			Caller:      router,
			Store:       ruleStore(blocks, cfg),
			WatchToggle: cfg.Automation.WatchToggle,
			WatchSlider: cfg.Automation.WatchSlider,
			Logger:      logger.Component("automation"),
		})
	}

	dev := device.New(device.Options{
		Registry:   widget.NewRegistry(cfg.Device.Capacity),
		Transport:  client,
		Finder:     query.JSON{},
		Automation: engine,
		Version:    version,
		StateTag:   device.StateOnline,
		Logger:     logger.Component("device"),
	})
	registerWidgets(dev, cfg.Widgets)

	tracker := status.NewTracker(time.Now(), status.Config{
		DeviceID:   cfg.Device.ID,
		Version:    version,
		PollMs:     cfg.PollInterval().Milliseconds(),
		Broker:     cfg.MQTT.Broker,
		HTTPAddr:   cfg.HTTP.Addr,
		Timezone:   cfg.Device.Timezone,
		Automation: cfg.Automation.Enabled,
	})

	l := &loop{
		dev:        dev,
		tr:         client,
		engine:     engine,
		clock:      clk,
		tracker:    tracker,
		log:        log,
		events:     client,
		eventTopic: client.Topics().Events,
		buffered:   client.Buffered,
	}

	if client.Connect() {
		l.wasUp = true
		if err := dev.EmitState(); err != nil {
			log.Warn("send state failed", "error", err)
		}
	}
	l.lastConnect = time.Now()
	l.publishEvent(eventStartup, "")

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, logger.Component("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	log.Info("started",
		"device_id", cfg.Device.ID,
		"poll", cfg.PollInterval(),
		"broker", cfg.MQTT.Broker,
		"automation", cfg.Automation.Enabled,
		"gpio", cfg.GPIO.Enabled)

	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return l.run(time.Now, ticker.C, sigCh)
}
