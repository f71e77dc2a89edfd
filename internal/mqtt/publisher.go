// Package mqtt republishes device output and session transitions as
// telemetry topics, so dashboards can observe the controller without a
// direct link to it.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	topicDeviceLine   = "irrigation/telemetry/raw"
	topicSessionState = "irrigation/session/state"

	publishTimeout = 5 * time.Second
)

// Publisher is the outbound telemetry client. A nil *Publisher is valid and
// publishes nothing, so telemetry stays optional.
type Publisher struct {
	client mqtt.Client
}

// SessionStateMessage is the JSON payload published on session transitions.
type SessionStateMessage struct {
	State    string `json:"state"`
	Mode     string `json:"mode,omitempty"`
	Trigger  string `json:"trigger,omitempty"`
	Progress int    `json:"progress"`
	At       string `json:"at"`
}

// NewPublisher connects to the broker. An empty broker disables telemetry
// and returns a nil client.
func NewPublisher(broker, clientID, username, password string) (*Publisher, error) {
	if broker == "" {
		log.Println("MQTT broker not configured. Telemetry publishing disabled.")
		return nil, nil
	}

	p := &Publisher{}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Println("Connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("Connection to MQTT broker lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	p.client = client
	return p, nil
}

// PublishDeviceLine forwards one raw line of device output.
func (p *Publisher) PublishDeviceLine(line string) {
	if p == nil {
		return
	}
	p.publish(topicDeviceLine, line)
}

// PublishSessionState forwards a session transition or progress update.
func (p *Publisher) PublishSessionState(msg SessionStateMessage) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to encode session state: %v", err)
		return
	}
	p.publish(topicSessionState, string(payload))
}

func (p *Publisher) publish(topic, payload string) {
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("Timeout publishing to topic %s", topic)
		return
	}
	if token.Error() != nil {
		log.Printf("Error publishing to topic %s: %v", topic, token.Error())
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p != nil && p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
