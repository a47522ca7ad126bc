package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/hubertat/pacball/mqtt"
)

// MqttSink publishes each snapshot as retained JSON on "<prefix>/<kind>".
type MqttSink struct {
	client *mqtt.MqttClient
	pub    mqtt.Publisher
	topic  func(kind string) string
}

func NewMqttSink(client *mqtt.MqttClient) *MqttSink {
	return &MqttSink{client: client, pub: client, topic: client.Topic}
}

func (ms *MqttSink) String() string {
	return "mqtt"
}

func (ms *MqttSink) Write(ctx context.Context, kind string, fields map[string]bool, ts time.Time) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	err = ms.pub.Publish(ms.topic(kind), payload)
	if err != nil {
		return errors.Wrapf(err, "failed to publish %s", kind)
	}
	return nil
}

func (ms *MqttSink) Close() error {
	if ms.client != nil {
		ms.client.Disconnect()
	}
	return nil
}
