package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/keypad-sensor/internal/logic"
)

// DefaultBufferSize is how many messages are kept while disconnected.
const DefaultBufferSize = 100

// ClientIDPrefix prefixes the random per-process client id.
const ClientIDPrefix = "keypad-sensor-"

// client is the part of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client  client
	timeout time.Duration
	now     func() time.Time

	mu            sync.Mutex
	buffer        *ringBuffer
	everConnected bool
}

// Options configures NewRealPublisher.
type Options struct {
	Broker string
	// ClientID defaults to ClientIDPrefix plus a random UUID.
	ClientID string
	// BufferSize defaults to DefaultBufferSize.
	BufferSize int
}

// NewRealPublisher creates a publisher connected to the given broker.
// A last-will OFFLINE event is registered on the system topic.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.ClientID == "" {
		o.ClientID = ClientIDPrefix + uuid.NewString()
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventOffline})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	p := newPublisher(nil, o.BufferSize)
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warnln("mqtt connection lost")
		})

	c := paho.NewClient(opts)
	p.client = c

	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// SetConnectRetry keeps trying in the background; publishes are
		// buffered until it succeeds.
		log.WithField("broker", o.Broker).Warnln("mqtt connect timeout, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	log.WithFields(log.Fields{
		"broker":    o.Broker,
		"client_id": o.ClientID,
	}).Infoln("mqtt connected")
	return p, nil
}

func newPublisher(c client, bufferSize int) *RealPublisher {
	return &RealPublisher{
		client:  c,
		timeout: 5 * time.Second,
		now:     time.Now,
		buffer:  newRingBuffer(bufferSize),
	}
}

// Publish sends an input event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	msg, err := systemMsg(event)
	if err != nil {
		return err
	}
	return p.send(msg)
}

// systemMsg formats a lifecycle event for the system topic.
func systemMsg(event SystemEvent) (bufferedMsg, error) {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return bufferedMsg{}, fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once), lifecycle events should arrive
	return bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}, nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buffer.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.publish(msg)
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect replays anything buffered while disconnected. Every connect after
// the first also announces RECONNECTED.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	reconnect := p.everConnected
	p.everConnected = true
	msgs, dropped := p.buffer.drainAll()
	p.mu.Unlock()

	if len(msgs) > 0 || dropped > 0 {
		log.WithFields(log.Fields{
			"replayed": len(msgs),
			"dropped":  dropped,
		}).Infoln("mqtt replaying buffered messages")
	}
	for _, msg := range msgs {
		if err := p.publish(msg); err != nil {
			log.WithError(err).Warnln("mqtt replay failed")
		}
	}

	if !reconnect {
		return
	}
	msg, err := systemMsg(SystemEvent{Timestamp: p.now(), Event: EventReconnected})
	if err == nil {
		err = p.publish(msg)
	}
	if err != nil {
		log.WithError(err).Warnln("mqtt reconnected event failed")
	}
}

// Buffered returns how many messages are waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
