package raspiaprs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttPublishTimeout = 5 * time.Second

// BeaconEvent is the JSON published for every transmitted packet.
type BeaconEvent struct {
	Station string    `json:"station"`
	Kind    string    `json:"kind"`
	Packet  string    `json:"packet"`
	Time    time.Time `json:"time"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
}

// publisher is the part of mqtt.Client we use.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier is a TransmitObserver that tells an MQTT broker about
// every packet.  Publishing never holds up the beacon.
type MQTTNotifier struct {
	client publisher
	topic  string
	call   string
	logger *log.Logger
}

// NewMQTTNotifier connects to the broker in the background; paho keeps
// reconnecting on its own.
func NewMQTTNotifier(cfg MQTTConfig, call string, logger *log.Logger) *MQTTNotifier {
	var opts = mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("MQTT connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "err", err)
	})

	var client = mqtt.NewClient(opts)
	client.Connect()

	return newMQTTNotifier(client, cfg.Topic, call, logger)
}

func newMQTTNotifier(client publisher, topic string, call string, logger *log.Logger) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, call: call, logger: logger}
}

// Topic is <topic>/<call>/<kind>.
func (n *MQTTNotifier) Topic(kind PacketKind) string {
	return fmt.Sprintf("%s/%s/%s", n.topic, n.call, kind)
}

func (n *MQTTNotifier) ObserveTransmit(tx Transmission) {
	var ev = BeaconEvent{
		Station: n.call,
		Kind:    string(tx.Kind),
		Packet:  tx.Line,
		Time:    tx.Time.UTC(),
		OK:      tx.Err == nil,
	}
	if tx.Err != nil {
		ev.Error = tx.Err.Error()
	}

	var data, err = json.Marshal(ev)
	if err != nil {
		n.logger.Warn("MQTT marshal failed", "err", err)
		return
	}

	var topic = n.Topic(tx.Kind)
	var token = n.client.Publish(topic, 1, false, data)

	go func() {
		if !token.WaitTimeout(mqttPublishTimeout) {
			n.logger.Warn("MQTT publish timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			n.logger.Warn("MQTT publish failed", "topic", topic, "err", err)
		}
	}()
}

// Close disconnects if the client supports it.
func (n *MQTTNotifier) Close() {
	if c, ok := n.client.(mqtt.Client); ok {
		c.Disconnect(250)
	}
}
