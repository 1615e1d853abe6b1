package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/scan_synchronizer/internal/config"
	"github.com/relabs-tech/scan_synchronizer/internal/scan"
	"github.com/relabs-tech/scan_synchronizer/internal/timesync"
)

// RunConsole subscribes to every synchronized output topic plus the
// diagnostics topic and prints what flows by.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	for _, topic := range cfg.InputStreams {
		synced := topic + timesync.SyncedSuffix
		token := client.Subscribe(synced, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var c scan.Cloud
			if err := json.Unmarshal(msg.Payload(), &c); err != nil {
				log.Printf("console: cloud unmarshal error on %s: %v", msg.Topic(), err)
				return
			}
			fmt.Printf(
				"[SYNC] %-30s frame=%-12s stamp=%s points=%d\n",
				msg.Topic(), c.FrameID, c.Stamp.Format(time.RFC3339Nano), len(c.Points),
			)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", synced)
	}

	diagToken := client.Subscribe(cfg.TopicDiagnostics, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st timesync.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}

		keys := make([]string, 0, len(st.Streams))
		for k := range st.Streams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, st.Streams[k]))
		}

		fmt.Printf("[DIAG] %-4s %s (%s)\n", st.Level, st.Message, strings.Join(parts, " "))
	})
	diagToken.Wait()
	if diagToken.Error() != nil {
		return diagToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicDiagnostics)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
