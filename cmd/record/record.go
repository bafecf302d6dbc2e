// Package record implements the interactive recording command.
package record

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/audiocore/export"
	"github.com/boxrec/boxrec/internal/audiocore/processors"
	"github.com/boxrec/boxrec/internal/audiocore/sources"
	"github.com/boxrec/boxrec/internal/buildinfo"
	"github.com/boxrec/boxrec/internal/conf"
	"github.com/boxrec/boxrec/internal/events"
	"github.com/boxrec/boxrec/internal/logger"
	"github.com/boxrec/boxrec/internal/mqtt"
	"github.com/boxrec/boxrec/internal/observability"
	"github.com/boxrec/boxrec/internal/observability/metrics"
	"github.com/boxrec/boxrec/internal/recorder"
	"github.com/boxrec/boxrec/internal/ui"
)

// busShutdownTimeout bounds delivery of the last status events on exit.
const busShutdownTimeout = 2 * time.Second

type options struct {
	mix string
}

// Command creates the record command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the sound card with an interactive screen",
		Long: "Start the recorder. Press enter to start or stop a recording, " +
			"a to toggle speech enhancement, m to change the channel mode and q to quit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("mix") {
				p, err := audiocore.ParseMixPolicy(opts.mix)
				if err != nil {
					return err
				}
				settings.Recording.RawMode = int(p)
			}
			return run(cmd.Context(), settings, build)
		},
	}
	setupFlags(cmd, settings, opts)
	return cmd
}

// setupFlags configures flags specific to the record command. Flag defaults
// come from the loaded settings, so an unset flag keeps the configured value.
func setupFlags(cmd *cobra.Command, settings *conf.Settings, opts *options) {
	cmd.Flags().StringVar(&settings.Audio.Source, "source", settings.Audio.Source, "Audio source (\"malgo\" or \"file:<path.wav>\")")
	cmd.Flags().StringVar(&settings.Audio.Device, "device", settings.Audio.Device, "Capture device name or ID")
	cmd.Flags().StringVar(&settings.Recording.Dir, "dir", settings.Recording.Dir, "Recordings directory")
	cmd.Flags().BoolVar(&settings.Recording.UseAFE, "afe", settings.Recording.UseAFE, "Enable speech enhancement")
	cmd.Flags().StringVar(&opts.mix, "mix", audiocore.MixPolicy(settings.Recording.RawMode).String(), "Channel mode: stereo, left, right, mono")
	cmd.Flags().BoolVar(&settings.Telemetry.Prometheus.Enabled, "metrics", settings.Telemetry.Prometheus.Enabled, "Serve Prometheus metrics")
	cmd.Flags().StringVar(&settings.Telemetry.Prometheus.Listen, "metrics-listen", settings.Telemetry.Prometheus.Listen, "Listen address of the metrics endpoint")
	cmd.Flags().BoolVar(&settings.MQTT.Enabled, "mqtt", settings.MQTT.Enabled, "Mirror status to an MQTT broker")
	cmd.Flags().StringVar(&settings.MQTT.Broker, "mqtt-broker", settings.MQTT.Broker, "MQTT broker URL, e.g. tcp://localhost:1883")
}

func run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	central := logger.Global()
	log := central.Module("main")

	guard := audiocore.NewSharedDeviceGuard(audiocore.DefaultDeviceLockPath())
	store := conf.NewStore(settings, guard)
	current := store.Settings()

	openSource, err := newSourceOpener(store, central.Module("audio"))
	if err != nil {
		return err
	}

	var m *observability.Metrics
	var recMetrics *metrics.RecorderMetrics
	var mqttMetrics *metrics.MQTTMetrics
	if current.Telemetry.Prometheus.Enabled {
		if m, err = observability.NewMetrics(); err != nil {
			return err
		}
		recMetrics, mqttMetrics = m.Recorder, m.MQTT
	}

	bus := events.NewEventBus(events.DefaultConfig(), central.Module("events"))

	exportLog := central.Module("export")
	rec, err := recorder.New(recorder.Config{
		Settings:   store,
		OpenSource: openSource,
		NewWriter: func() audiocore.ContainerWriter {
			return export.NewWAVWriter(exportLog)
		},
		NewFrontEnd: processors.NewFrontEndFactory(central.Module("frontend")),
		Guard:       guard,
		Publisher:   bus,
		Metrics:     recMetrics,
		Logger:      central.Module("recorder"),
	})
	if err != nil {
		return err
	}

	term := ui.NewTerminal(os.Stdin, os.Stdout, rec, store, current.UI.Language, central.Module("ui"))
	if err := bus.RegisterConsumer(term); err != nil {
		return err
	}

	var client mqtt.Client
	if current.MQTT.Enabled {
		client, err = mqtt.NewClient(mqttConfig(current.MQTT, build), mqttMetrics, central.Module("mqtt"))
		if err != nil {
			return err
		}
		pub := ui.NewMQTTPublisher(client, current.MQTT.Topic, central.Module("mqtt"))
		if err := bus.RegisterConsumer(ui.Consumer{ConsumerName: pub.Name(), Adapter: pub}); err != nil {
			return err
		}
	}

	var endpoint *observability.Endpoint
	if m != nil {
		if endpoint, err = observability.NewEndpoint(current.Telemetry.Prometheus.Listen, m, central.Module("telemetry")); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rec.Run(gctx) })
	g.Go(func() error {
		// quitting the screen ends the program
		defer cancel()
		return term.Run(gctx)
	})
	if endpoint != nil {
		g.Go(func() error { return endpoint.Run(gctx) })
	}
	if client != nil {
		g.Go(func() error {
			connectMQTT(gctx, client, mqtt.DefaultConfig().ReconnectDelay, log)
			return nil
		})
	}

	err = g.Wait()
	if shutdownErr := bus.Shutdown(busShutdownTimeout); shutdownErr != nil {
		log.Warn("status events not fully delivered", logger.Error(shutdownErr))
	}
	if client != nil {
		client.Disconnect()
	}
	return err
}

// newSourceOpener validates the configured source and returns an opener
// that re-reads the settings for every session, so source changes made
// while idle take effect at the next start.
func newSourceOpener(store *conf.Store, log logger.Logger) (func() (audiocore.SampleSource, error), error) {
	sourceConfig := func() sources.Config {
		st := store.Settings()
		return sources.Config{
			Kind:        st.Audio.Source,
			Device:      st.Audio.Device,
			ChunkFrames: st.Recording.ChunkFrames,
			Realtime:    st.Audio.Realtime,
		}
	}
	if _, err := sources.NewOpener(sourceConfig(), log); err != nil {
		return nil, err
	}
	return func() (audiocore.SampleSource, error) {
		return sources.Create(sourceConfig(), log)
	}, nil
}

func mqttConfig(s conf.MQTTSettings, build *buildinfo.Context) mqtt.Config {
	cfg := mqtt.DefaultConfig()
	cfg.Broker = s.Broker
	cfg.ClientID = build.ClientID()
	if s.ClientID != "" {
		cfg.ClientID = s.ClientID
	}
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.QoS = byte(s.QoS)
	cfg.Retain = s.Retain
	return cfg
}

// connectMQTT retries the initial connection until it succeeds or ctx is
// done. Once connected, paho reconnects on its own.
func connectMQTT(ctx context.Context, client mqtt.Client, retry time.Duration, log logger.Logger) {
	for {
		err := client.Connect(ctx)
		if err == nil {
			return
		}
		log.Warn("MQTT connection failed, retrying",
			logger.Duration("retry_in", retry),
			logger.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}
