package app

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tturner/cipadapter/internal/logging"
)

// assemblyChangeMessage is the JSON payload published on each
// AfterAssemblyDataReceived callback.
type assemblyChangeMessage struct {
	Instance  uint16 `json:"instance"`
	Data      []byte `json:"data"`
	Timestamp string `json:"timestamp"`
}

// mqttBridge publishes assembly data-change events to a single broker
// (grounded on the teacher pack's warlogix mqtt.Publisher, trimmed to one
// broker and one direction: this adapter never accepts MQTT writes back
// into an assembly, since that would re-introduce an originator role).
type mqttBridge struct {
	broker string
	topic  string
	logger *logging.Logger

	mu      sync.Mutex
	client  pahomqtt.Client
	running bool
}

func newMQTTBridge(broker, topic string, logger *logging.Logger) *mqttBridge {
	return &mqttBridge{broker: broker, topic: topic, logger: logger}
}

func (b *mqttBridge) connect() error {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(b.broker)
	opts.SetClientID("cipadapter")
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("app: mqtt connect to %s timed out", b.broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("app: mqtt connect to %s: %w", b.broker, err)
	}

	b.mu.Lock()
	b.client = client
	b.running = true
	b.mu.Unlock()
	b.logger.Info("connected to mqtt broker %s", b.broker)
	return nil
}

func (b *mqttBridge) disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running || b.client == nil {
		return
	}
	b.client.Disconnect(250)
	b.running = false
	b.client = nil
}

func (b *mqttBridge) publish(instance uint16, data []byte) {
	b.mu.Lock()
	client := b.client
	running := b.running
	b.mu.Unlock()
	if !running || client == nil {
		return
	}

	msg := assemblyChangeMessage{Instance: instance, Data: data, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("mqtt: marshal assembly %d change: %v", instance, err)
		return
	}
	topic := fmt.Sprintf("%s/%d", b.topic, instance)
	token := client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		b.logger.Error("mqtt: publish to %s timed out", topic)
	}
}
