package events

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

const publishTimeout = 5 * time.Second

// NewMQTTClient connects to broker. The client announces itself as online on
// <topic>/status and the broker marks it offline through the last will.
func NewMQTTClient(broker, clientID, topic string, log zerolog.Logger) (mqtt.Client, error) {
	status := topic + "/status"

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetWill(status, "offline", 1, true)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		log.Debug().Str("topic", msg.Topic()).Bytes("payload", msg.Payload()).Msg("mqtt message received")
	})
	opts.OnConnect = func(c mqtt.Client) {
		log.Info().Str("broker", broker).Msg("connected to MQTT broker")
		c.Publish(status, 1, true, "online")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) {
		return client, nil // keeps retrying in the background
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return client, nil
}

// MQTTSink publishes event envelopes to <topic>/events/<type>.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
	log    zerolog.Logger
}

func NewMQTTSink(client mqtt.Client, topic string, log zerolog.Logger) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: 1, log: log}
}

func (s *MQTTSink) Topic(t model.EventType) string {
	return s.topic + "/events/" + string(t)
}

func (s *MQTTSink) Publish(e model.Event) {
	payload, err := json.Marshal(model.NewEnvelope(e))
	if err != nil {
		s.log.Error().Err(err).Str("event", string(e.Type())).Msg("failed to encode event")
		return
	}
	topic := s.Topic(e.Type())
	token := s.client.Publish(topic, s.qos, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			s.log.Warn().Str("topic", topic).Msg("MQTT publish timed out")
			return
		}
		if err := token.Error(); err != nil {
			s.log.Error().Err(err).Str("topic", topic).Msg("failed to publish event")
		}
	}()
}

// Close marks the device offline and disconnects.
func (s *MQTTSink) Close() {
	s.client.Publish(s.topic+"/status", 1, true, "offline").WaitTimeout(time.Second)
	s.client.Disconnect(250)
}
