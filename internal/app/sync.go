package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/scan_synchronizer/internal/config"
	"github.com/relabs-tech/scan_synchronizer/internal/frames"
	"github.com/relabs-tech/scan_synchronizer/internal/motion"
	"github.com/relabs-tech/scan_synchronizer/internal/scan"
	"github.com/relabs-tech/scan_synchronizer/internal/timesync"
)

// mqttCloudPublisher publishes each synchronized cloud on its source
// topic plus the synchronized suffix, fire and forget.
type mqttCloudPublisher struct {
	client mqtt.Client
}

func (p *mqttCloudPublisher) Publish(stream string, c *scan.Cloud) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cloud for %s: %w", stream, err)
	}
	if token := p.client.Publish(stream+timesync.SyncedSuffix, 0, false, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// RunSynchronizer runs the sync node: it subscribes to every
// configured scan topic plus the velocity topic, closes rounds either
// on completion or on timeout, and republishes motion-compensated,
// re-stamped clouds per stream.
func RunSynchronizer() error {
	cfg := config.Get()

	// Required node configuration; without it the node never subscribes.
	if cfg.OutputFrame == "" {
		err := fmt.Errorf("OUTPUT_FRAME must be set before continuing")
		log.Printf("sync: %v", err)
		return err
	}
	if len(cfg.InputStreams) == 0 {
		err := fmt.Errorf("INPUT_STREAMS must be set before continuing")
		log.Printf("sync: %v", err)
		return err
	}
	if len(cfg.InputStreams) == 1 {
		err := fmt.Errorf("only one input stream given, need at least two to synchronize")
		log.Printf("sync: %v", err)
		return err
	}
	if len(cfg.InputOffsets) > 0 && len(cfg.InputOffsets) != len(cfg.InputStreams) {
		err := fmt.Errorf("the number of input streams (%d) does not match the number of offsets (%d)",
			len(cfg.InputStreams), len(cfg.InputOffsets))
		log.Printf("sync: %v", err)
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDSync).
		SetMessageChannelDepth(uint(cfg.MaxQueueSize))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("sync: connected to MQTT broker at %s", cfg.MQTTBroker)

	history := motion.NewHistory()
	registry := frames.NewRegistry(cfg.StaticTransforms)
	diag := timesync.NewDiagnostics(cfg.InputStreams)
	synchronizer := timesync.NewSynchronizer(
		cfg.OutputFrame,
		registry,
		history,
		&mqttCloudPublisher{client: client},
		diag,
	)

	offsets := make(map[string]time.Duration, len(cfg.InputOffsets))
	for i, off := range cfg.InputOffsets {
		offsets[cfg.InputStreams[i]] = time.Duration(off * float64(time.Second))
	}
	timeout := time.Duration(cfg.TimeoutSec * float64(time.Second))

	scheduler := timesync.NewScheduler(
		timesync.NewStreamBuffer(cfg.InputStreams),
		synchronizer,
		timeout,
		offsets,
		func(expire func()) timesync.Timer { return timesync.NewWallTimer(expire) },
	)

	// Velocity reports feed the motion history only; they never touch
	// the round lock.
	velToken := client.Subscribe(cfg.TopicVelocity, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r motion.VelocityReport
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("sync: velocity unmarshal error: %v", err)
			return
		}
		history.Record(r)
	})
	velToken.Wait()
	if velToken.Error() != nil {
		return velToken.Error()
	}
	log.Printf("sync: subscribed to %s", cfg.TopicVelocity)

	log.Printf("sync: subscribing to %d scan topics as inputs:", len(cfg.InputStreams))
	for _, topic := range cfg.InputStreams {
		topic := topic
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var c scan.Cloud
			if err := json.Unmarshal(msg.Payload(), &c); err != nil {
				log.Printf("sync: cloud unmarshal error on %s: %v", topic, err)
				return
			}
			scheduler.HandleArrival(topic, &c)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf(" - %s", topic)
	}

	// Periodic diagnostics snapshot.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			payload, err := json.Marshal(diag.Snapshot())
			if err != nil {
				log.Printf("sync: diagnostics marshal error: %v", err)
				continue
			}
			client.Publish(cfg.TopicDiagnostics, 0, false, payload)
		}
	}()

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("sync: shutting down")
	return nil
}
