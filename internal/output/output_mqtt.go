package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tkjaer/esweep/internal/shared"
)

const mqttTimeout = 5 * time.Second

// mqttClient is the part of mqtt.Client the output uses
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTOutput publishes scan reports to <topic>/scan and retained host state
// to <topic>/host/<ip>
type MQTTOutput struct {
	mu     sync.Mutex
	client mqttClient
	topic  string
}

// newMQTTClient connects to the broker. Variable for mocking in tests.
var newMQTTClient = func(broker, clientID string) (mqttClient, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "broker", broker, "error", err)
	})

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, err)
	}
	return c, nil
}

func NewMQTTOutput(broker, topic, clientID string) (*MQTTOutput, error) {
	if clientID == "" {
		hostname, _ := os.Hostname()
		clientID = "esweep-" + hostname
	}
	client, err := newMQTTClient(broker, clientID)
	if err != nil {
		return nil, err
	}
	slog.Info("Connected to MQTT broker", "broker", broker, "client_id", clientID)
	return &MQTTOutput{client: client, topic: topic}, nil
}

func (o *MQTTOutput) CompleteScan(report *shared.ScanReport) {
	o.publish(o.topic+"/scan", false, report)
}

func (o *MQTTOutput) HostChange(event shared.PresenceEvent) {
	o.publish(o.topic+"/host/"+event.IP.String(), true, event)
}

func (o *MQTTOutput) publish(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to encode MQTT payload", "topic", topic, "error", err)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	token := o.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(mqttTimeout) {
		slog.Warn("Timed out publishing to MQTT", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		slog.Warn("Failed to publish to MQTT", "topic", topic, "error", err)
	}
}

func (o *MQTTOutput) Close() error {
	o.client.Disconnect(250)
	return nil
}
