package app

import (
	"bufio"
	"encoding/json"
	"log"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/scan_synchronizer/internal/config"
	"github.com/relabs-tech/scan_synchronizer/internal/motion"
)

// RunVelocityProducer opens the GPS serial port, parses NMEA
// sentences, and publishes velocity reports derived from RMC speed
// over ground and course over ground.
func RunVelocityProducer() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDVelocityProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("velocity producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("velocity producer: GPS serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	reader := bufio.NewReader(port)

	// Heading rate comes from consecutive course readings; the first
	// RMC only primes the state.
	var (
		havePrev   bool
		prevCourse float64
		prevAt     time.Time
	)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("velocity producer: GPS read error: %v", err)
			return err
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy GPS or partial sentences
			continue
		}

		if sentence.DataType() != nmea.TypeRMC {
			continue
		}
		m := sentence.(nmea.RMC)
		if string(m.Validity) != "A" {
			continue
		}

		now := time.Now()
		report := motion.VelocityReport{
			Stamp:        now,
			Longitudinal: m.Speed * motion.KnotsToMPS,
		}
		if havePrev {
			report.HeadingRate = motion.HeadingRateFromCourse(prevCourse, m.Course, now.Sub(prevAt).Seconds())
		}
		havePrev = true
		prevCourse = m.Course
		prevAt = now

		payload, err := json.Marshal(report)
		if err != nil {
			log.Printf("velocity producer: JSON marshal error: %v", err)
			continue
		}

		token := client.Publish(cfg.TopicVelocity, 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("velocity producer: publish error: %v", token.Error())
			continue
		}
	}
}
