// Package telemetry uplinks samples and classification results to an MQTT
// broker. It consumes queued bus subscriptions so a slow or absent broker
// can never stall the sampling worker or the detection bridge.
package telemetry

import (
	"context"
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"motionsense-go/bus"
	"motionsense-go/types"
)

// Config selects the broker and topic layout.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QueueLen    int
}

type Service struct {
	cfg    Config
	client mqtt.Client
}

func New(cfg Config) *Service {
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 32
	}
	return &Service{cfg: cfg}
}

// Start connects to the broker and launches the uplink loop. It returns an
// error only when the initial connect fails.
func (s *Service) Start(ctx context.Context,
	samples *bus.Channel[types.InertialSample],
	results *bus.Channel[types.ClassificationResult]) error {

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID)

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("telemetry: connected to %s", s.cfg.Broker)

	sampleSub := samples.Subscribe(s.cfg.QueueLen)
	resultSub := results.Subscribe(s.cfg.QueueLen)
	go s.loop(ctx, sampleSub, resultSub)
	return nil
}

func (s *Service) loop(ctx context.Context,
	sampleSub *bus.Subscription[types.InertialSample],
	resultSub *bus.Subscription[types.ClassificationResult]) {

	imuTopic := s.cfg.TopicPrefix + "/imu"
	classTopic := s.cfg.TopicPrefix + "/classification"

	for {
		select {
		case <-ctx.Done():
			sampleSub.Unsubscribe()
			resultSub.Unsubscribe()
			s.client.Disconnect(250)
			log.Print("telemetry: stopped")
			return
		case sample := <-sampleSub.Channel():
			s.publish(imuTopic, samplePayload(sample))
		case res := <-resultSub.Channel():
			s.publish(classTopic, resultPayload(res))
		}
	}
}

func (s *Service) publish(topic string, payload []byte) {
	if payload == nil {
		return
	}
	if token := s.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("telemetry: publish error (%s): %v", topic, token.Error())
	}
}

func samplePayload(s types.InertialSample) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		log.Printf("telemetry: sample marshal error: %v", err)
		return nil
	}
	return b
}

// resultPayload adds the display name next to the raw class id.
func resultPayload(r types.ClassificationResult) []byte {
	out := struct {
		types.ClassificationResult
		Name string `json:"name"`
	}{r, types.ClassName(r.PredictedClass)}

	b, err := json.Marshal(out)
	if err != nil {
		log.Printf("telemetry: result marshal error: %v", err)
		return nil
	}
	return b
}
