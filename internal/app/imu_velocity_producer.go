package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/scan_synchronizer/internal/config"
	"github.com/relabs-tech/scan_synchronizer/internal/motion"
	"github.com/relabs-tech/scan_synchronizer/internal/sensors"
)

// RunIMUVelocityProducer publishes heading-rate-only velocity reports
// from the MPU9250 gyro. Meant for rotation bench rigs where there is
// no speed-over-ground source; linear speed is reported as zero.
func RunIMUVelocityProducer() error {
	log.Println("starting IMU heading-rate producer")

	cfg := config.Get()

	gyro, err := sensors.NewGyroSource()
	if err != nil {
		log.Printf("imu velocity producer: gyro init failed: %v", err)
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDIMUVelocityProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("imu velocity producer: MQTT connect error: %v", token.Error())
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Println("imu velocity producer: connected to MQTT, starting publish loop")

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	for t := range ticker.C {
		rate, err := gyro.NextHeadingRate()
		if err != nil {
			log.Printf("imu velocity producer: read error: %v", err)
			continue
		}

		report := motion.VelocityReport{
			Stamp:       t,
			HeadingRate: rate,
		}

		payload, err := json.Marshal(report)
		if err != nil {
			log.Printf("imu velocity producer: json marshal error: %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicVelocity, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("imu velocity producer: publish error: %v", token.Error())
			continue
		}
	}

	return nil
}
