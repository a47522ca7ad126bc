package mqtt

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

const connectionTimeoutSeconds = 5
const publishTimeoutSeconds = 4
const disconnectQuiesceMs = 250

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

type Publisher interface {
	Publish(topic string, payload []byte) error
}

// MqttClient publishes retained state under a topic prefix and keeps
// "<prefix>/status" up to date through a last will.
type MqttClient struct {
	prefix string
	client paho.Client
	logger *log.Logger
}

func (mc *MqttClient) StatusTopic() string {
	return mc.prefix + "/status"
}

// Topic joins name to the client prefix.
func (mc *MqttClient) Topic(name string) string {
	return mc.prefix + "/" + name
}

func (mc *MqttClient) Publish(topic string, payload []byte) error {
	token := mc.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeoutSeconds * time.Second) {
		return errors.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// Subscribe calls handle for every message on topic, wildcards allowed.
func (mc *MqttClient) Subscribe(topic string, handle func(topic string, payload []byte)) error {
	token := mc.client.Subscribe(topic, 1, func(c paho.Client, msg paho.Message) {
		handle(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(publishTimeoutSeconds * time.Second) {
		return errors.Errorf("subscribe to %s timed out", topic)
	}
	return errors.Wrapf(token.Error(), "subscribe to %s failed", topic)
}

func (mc *MqttClient) onConnUp(c paho.Client) {
	mc.logger.Info("Connected to MQTT broker")
	c.Publish(mc.StatusTopic(), 1, true, statusOnline)
}

func (mc *MqttClient) onConnLost(c paho.Client, err error) {
	mc.logger.Error("Lost MQTT connection", "err", err)
}

func (mc *MqttClient) Connect() error {
	token := mc.client.Connect()
	if !token.WaitTimeout(connectionTimeoutSeconds * time.Second) {
		return errors.New("mqtt connect timed out")
	}
	return errors.Wrap(token.Error(), "mqtt connect failed")
}

func (mc *MqttClient) Disconnect() {
	if !mc.client.IsConnected() {
		return
	}
	token := mc.client.Publish(mc.StatusTopic(), 1, true, statusOffline)
	token.WaitTimeout(publishTimeoutSeconds * time.Second)
	mc.client.Disconnect(disconnectQuiesceMs)
	mc.logger.Info("Disconnected from MQTT broker")
}

func NewMqttClient(broker, clientId, username, password, prefix string) *MqttClient {
	mc := &MqttClient{
		prefix: prefix,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "MqttClient 🐰: ",
			Level:  log.GetLevel(),
		}),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientId)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetConnectTimeout(connectionTimeoutSeconds * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Second)
	opts.SetWill(mc.StatusTopic(), statusOffline, 1, true)
	opts.SetOnConnectHandler(mc.onConnUp)
	opts.SetConnectionLostHandler(mc.onConnLost)

	mc.client = paho.NewClient(opts)
	return mc
}
