// Package mqtt publishes device state to Home Assistant via MQTT discovery.
// Publishing is best effort: a broker outage never fails a sync pass.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/tempiro/tempiro-integration/internal/pkg/config"
	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

const publishTimeout = 10 * time.Second

type Publisher struct {
	client paho_mqtt.Client
	logger *zap.Logger

	// The hourly pass and a manually triggered sync can publish at the same
	// time; the dedup map needs the lock.
	mu         sync.Mutex
	registered map[string]struct{}
}

func New(cfg config.MqttConfig) (*Publisher, error) {
	opts := paho_mqtt.NewClientOptions().
		AddBroker("tcp://" + cfg.Host).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetClientID("tempiro-integration")

	p := &Publisher{
		client:     paho_mqtt.NewClient(opts),
		logger:     zap.L(),
		registered: map[string]struct{}{},
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	token := p.client.Connect()
	if token.WaitTimeout(5 * time.Second) {
		return token.Error()
	}
	if err := token.Error(); err != nil {
		return err
	}
	return errors.New("unable to connect in time")
}

type registerMessage struct {
	Tilda       string         `json:"~"`
	Name        string         `json:"name"`
	ID          string         `json:"unique_id"`
	StateTopic  string         `json:"state_topic"`
	Unit        string         `json:"unit_of_measurement"`
	DeviceClass string         `json:"device_class"`
	Template    string         `json:"value_template"`
	Device      registerDevice `json:"device"`
}

type registerDevice struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
}

type stateMessage struct {
	Power   float64 `json:"power"`
	On      bool    `json:"on"`
	Offline bool    `json:"offline"`
}

// PublishDevices pushes each device's current power and switch state.
// Unknown devices get a discovery config first so Home Assistant picks them
// up without manual setup.
func (p *Publisher) PublishDevices(ctx context.Context, devices []model.Device) {
	for _, device := range devices {
		ident := identifier(device)
		if err := p.ensureRegistered(device, ident); err != nil {
			p.logger.Warn("mqtt discovery publish failed", zap.String("device", device.Name), zap.Error(err))
			continue
		}

		payload, err := json.Marshal(stateMessage{
			Power:   device.CurrentPower,
			On:      device.Value == 1,
			Offline: device.Offline,
		})
		if err != nil {
			p.logger.Warn("mqtt state marshal failed", zap.String("device", device.Name), zap.Error(err))
			continue
		}
		token := p.client.Publish(stateTopic(ident), 0, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			p.logger.Warn("mqtt state publish timed out", zap.String("device", device.Name))
			continue
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("mqtt state publish failed", zap.String("device", device.Name), zap.Error(err))
		}
	}
}

func (p *Publisher) ensureRegistered(device model.Device, ident string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.registered[ident]; ok {
		return nil
	}
	if err := p.register(device, ident); err != nil {
		return err
	}
	p.registered[ident] = struct{}{}
	return nil
}

func (p *Publisher) register(device model.Device, ident string) error {
	msg := registerMessage{
		Tilda:       "homeassistant/sensor/" + ident,
		Name:        device.Name,
		ID:          ident,
		StateTopic:  "~/state",
		Unit:        "W",
		DeviceClass: "power",
		Template:    "{{ value_json.power }}",
		Device: registerDevice{
			Name:         device.Name,
			Identifiers:  []string{ident},
			Manufacturer: "Tempiro",
		},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	token := p.client.Publish(fmt.Sprintf("homeassistant/sensor/%s/config", ident), 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timed out")
	}
	return token.Error()
}

func identifier(device model.Device) string {
	return "tempiro_" + slug.Make(device.Name)
}

func stateTopic(ident string) string {
	return fmt.Sprintf("homeassistant/sensor/%s/state", ident)
}
