package comm

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"sitebridge.dev/phasebridge/internal/logging"
	"sitebridge.dev/phasebridge/internal/metrics"
	"sitebridge.dev/phasebridge/internal/model"
)

// MqttEdgeCommAdapter subscribes to the configured edge-events topic and
// publishes the committed phase, retained, to the phase topic.
type MqttEdgeCommAdapter struct {
	BrokerURL      string
	ClientID       string
	EventsTopic    string
	PhaseTopic     string
	QoS            byte
	Retain         bool
	ServiceName    string
	ConnectTimeout time.Duration

	mu      sync.Mutex
	client  mqtt.Client
	started atomic.Bool
	stopped atomic.Bool
}

// NewMqttEdgeCommAdapter builds an adapter with the given broker/topic
// configuration. Call StartEventIngestion to connect and subscribe.
func NewMqttEdgeCommAdapter(brokerURL, clientID, eventsTopic, phaseTopic, serviceName string, qos byte, retain bool) *MqttEdgeCommAdapter {
	return &MqttEdgeCommAdapter{
		BrokerURL:      brokerURL,
		ClientID:       clientID,
		EventsTopic:    eventsTopic,
		PhaseTopic:     phaseTopic,
		QoS:            qos,
		Retain:         retain,
		ServiceName:    serviceName,
		ConnectTimeout: 10 * time.Second,
	}
}

func (a *MqttEdgeCommAdapter) StartEventIngestion(onEvent EventHandler) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	log := logging.L().WithField("component", "mqtt_comm_adapter")

	opts := mqtt.NewClientOptions().
		AddBroker(a.BrokerURL).
		SetClientID(a.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	opts.SetDefaultPublishHandler(func(c mqtt.Client, m mqtt.Message) {})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt connection lost, reconnecting")
	})

	client := mqtt.NewClient(opts)
	a.mu.Lock()
	a.client = client
	a.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(a.ConnectTimeout) {
		return fmt.Errorf("mqtt comm adapter: connect timed out after %s", a.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt comm adapter: connect failed: %w", err)
	}

	subToken := client.Subscribe(a.EventsTopic, a.QoS, func(c mqtt.Client, m mqtt.Message) {
		ev, err := decodeEvent(m.Payload(), time.Now())
		if err != nil {
			metrics.EdgeEventsRejectedTotal.WithLabelValues("mqtt", "decode_error").Inc()
			log.WithError(err).Warn("rejecting malformed edge event")
			return
		}
		if onEvent(ev) {
			metrics.EdgeEventsIngestedTotal.WithLabelValues(ev.CameraID, "mqtt").Inc()
			return
		}
		metrics.EdgeEventsRejectedTotal.WithLabelValues("mqtt", "store_rejected").Inc()
		log.WithField("camera_id", ev.CameraID).Warn("edge event not accepted by store")
	})
	subToken.Wait()
	if err := subToken.Error(); err != nil {
		return fmt.Errorf("mqtt comm adapter: subscribe failed: %w", err)
	}

	log.WithFields(map[string]any{
		"broker": a.BrokerURL,
		"topic":  a.EventsTopic,
	}).Info("subscribed to edge events topic")

	return nil
}

type phaseWireMessage struct {
	Phase     string  `json:"phase"`
	Timestamp float64 `json:"timestamp"`
	Service   string  `json:"service"`
}

// PublishPhase publishes the retained phase payload. Returns true only
// when the broker acknowledges the publish within ConnectTimeout.
func (a *MqttEdgeCommAdapter) PublishPhase(phase model.Phase, ts time.Time) bool {
	a.mu.Lock()
	client := a.client
	a.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return false
	}

	payload, err := json.Marshal(phaseWireMessage{
		Phase:     string(phase),
		Timestamp: float64(ts.UnixNano()) / float64(time.Second),
		Service:   a.ServiceName,
	})
	if err != nil {
		return false
	}

	token := client.Publish(a.PhaseTopic, a.QoS, a.Retain, payload)
	if !token.WaitTimeout(a.ConnectTimeout) {
		return false
	}
	return token.Error() == nil
}

func (a *MqttEdgeCommAdapter) Stop() error {
	if !a.stopped.CompareAndSwap(false, true) {
		return nil
	}
	a.mu.Lock()
	client := a.client
	a.mu.Unlock()
	if client == nil {
		return nil
	}

	logging.L().WithField("component", "mqtt_comm_adapter").Info("disconnecting mqtt client")
	client.Disconnect(250)
	return nil
}
