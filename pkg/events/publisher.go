/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package events publishes CloudEvents to NATS JetStream when devices
// change state or alerts open and resolve. Publishing is strictly
// post-commit and best-effort: a broker outage never fails a collection
// cycle.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
)

const (
	eventSource         = "lanpulse/engine"
	deviceTransitionTyp = "com.carverauto.lanpulse.device.transition"
	alertTyp            = "com.carverauto.lanpulse.alert"

	subjectDeviceOnline  = "events.device.online"
	subjectDeviceOffline = "events.device.offline"
	subjectAlertOpened   = "events.alert.opened"
	subjectAlertResolved = "events.alert.resolved"
)

// jsPublisher is the JetStream subset the publisher uses.
type jsPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher emits CloudEvents for device transitions and alert lifecycle.
type Publisher struct {
	js     jsPublisher
	logger logger.Logger
}

// NewPublisher creates a Publisher over an existing JetStream context.
func NewPublisher(js jetstream.JetStream, log logger.Logger) *Publisher {
	return &Publisher{js: js, logger: log}
}

// Connect dials NATS, ensures the configured stream exists and returns a
// ready Publisher. The caller owns the returned connection.
func Connect(ctx context.Context, cfg *models.EventsConfig, log logger.Logger) (*Publisher, *nats.Conn, error) {
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("lanpulse-engine"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: cfg.Subjects,
	}); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}

	log.Info().
		Str("stream", cfg.StreamName).
		Str("url", nc.ConnectedUrl()).
		Msg("Event publishing enabled")

	return NewPublisher(js, log), nc, nil
}

// PublishDeviceTransition emits one event for a device that changed
// activity state.
func (p *Publisher) PublishDeviceTransition(ctx context.Context, device *models.Device, previousState, currentState string, at time.Time) error {
	subject := subjectDeviceOnline
	if currentState == models.StateOffline {
		subject = subjectDeviceOffline
	}

	return p.publish(ctx, subject, deviceTransitionTyp, at, models.DeviceTransitionEventData{
		DeviceID:      device.ID,
		MAC:           device.MAC,
		PreviousState: previousState,
		CurrentState:  currentState,
		Timestamp:     at,
		LastSeen:      device.LastSeen,
		IP:            device.PrimaryIP,
	})
}

// PublishAlertEvent emits one event for an alert that opened or resolved.
func (p *Publisher) PublishAlertEvent(ctx context.Context, alert *models.Alert, resolved bool, at time.Time) error {
	subject := subjectAlertOpened
	if resolved {
		subject = subjectAlertResolved
	}

	return p.publish(ctx, subject, alertTyp, at, models.AlertEventData{
		AlertID:   alert.ID,
		AlertType: alert.AlertType,
		Severity:  alert.Severity,
		DeviceID:  alert.DeviceID,
		Title:     alert.Title,
		Resolved:  resolved,
		Timestamp: at,
	})
}

func (p *Publisher) publish(ctx context.Context, subject, eventType string, at time.Time, data any) error {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &at,
		Data:            data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	ack, err := p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("seq", ack.Sequence).
		Msg("Published event")

	return nil
}
