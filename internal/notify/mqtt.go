package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	disconnectQuiesceMs   = 250
)

var (
	// ErrNotConnected is returned when publishing on a disconnected client
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrPublishFailed is returned when a publish does not complete
	ErrPublishFailed = errors.New("mqtt: publish failed")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MQTTOptions configures the broker connection
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// MQTTPublisher publishes retained device state messages
type MQTTPublisher struct {
	client pahomqtt.Client
	prefix string
	qos    byte
	log    *logrus.Logger
}

// NewMQTTPublisher connects to the broker and returns a ready publisher.
// The paho client reconnects on its own after the initial connection.
func NewMQTTPublisher(opts MQTTOptions, log *logrus.Logger) (*MQTTPublisher, error) {
	clientOpts := pahomqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(defaultConnectTimeout).
		SetOrderMatters(false)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	clientOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.WithField("error", err).Warn("MQTT connection lost")
	})
	clientOpts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		log.WithField("broker", opts.Broker).Info("MQTT connected")
	})

	client := pahomqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connection to %s timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connection to %s failed: %w", opts.Broker, err)
	}

	return &MQTTPublisher{
		client: client,
		prefix: opts.TopicPrefix,
		qos:    opts.QoS,
		log:    log,
	}, nil
}

// PublishDeviceState publishes the event as a retained message on the device's state topic
func (p *MQTTPublisher) PublishDeviceState(ctx context.Context, event DeviceEvent) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	timeout := defaultPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	token := p.client.Publish(StateTopic(p.prefix, event.UserID, event.DeviceID), p.qos, true, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(disconnectQuiesceMs)
}
