// Package mqttsource is a reference types.Source backed by an MQTT broker:
// one topic per property, "<base>/<property>" by convention. Not part of
// the core's test matrix (spec §1 Non-goals exclude transport adapters;
// see SPEC_FULL.md §1) — grounded on eclipse/paho.mqtt.golang, a direct
// dependency of the teacher's go.mod.
package mqttsource

import (
	"context"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bittoy/reactor/internal/jsonx"
	"github.com/bittoy/reactor/types"
)

// Source publishes and subscribes to "<Base>/<property>" topics on an
// already-connected mqtt.Client, encoding each property's value as a bare
// JSON scalar.
type Source struct {
	Client     mqtt.Client
	Base       string
	Properties []string
	QoS        byte
}

func (s *Source) topic(property string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(s.Base, "/"), property)
}

func (s *Source) IsPropertyIncluded(_ types.Subject, property string) bool {
	for _, p := range s.Properties {
		if p == property {
			return true
		}
	}
	return false
}

func (s *Source) StartListening(ctx context.Context, root types.Subject, onChange func(types.PropertyChange)) error {
	for _, property := range s.Properties {
		property := property
		token := s.Client.Subscribe(s.topic(property), s.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			var value any
			if err := jsonx.Unmarshal(msg.Payload(), &value); err != nil {
				return
			}
			onChange(types.PropertyChange{Subject: root, Property: property, NewValue: value, Source: "mqtt"})
		})
		if token.Wait() && token.Error() != nil {
			return token.Error()
		}
	}
	go func() {
		<-ctx.Done()
		for _, property := range s.Properties {
			s.Client.Unsubscribe(s.topic(property))
		}
	}()
	return nil
}

func (s *Source) LoadInitialState(ctx context.Context, root types.Subject) (*types.SubjectUpdate, error) {
	// Retained-message pull is not modeled here: a real deployment would
	// subscribe with a short-lived handler to collect any retained
	// payloads before StartListening takes over. Left for the adapter
	// owner to extend; the coordinator tolerates a nil initial state.
	return nil, nil
}

func (s *Source) WriteChangesAsync(ctx context.Context, changes []types.PropertyChange) error {
	for _, change := range changes {
		payload, err := jsonx.Marshal(change.NewValue)
		if err != nil {
			return err
		}
		token := s.Client.Publish(s.topic(change.Property), s.QoS, false, payload)
		if token.Wait() && token.Error() != nil {
			return token.Error()
		}
	}
	return nil
}

func (s *Source) WriteBatchSize() int { return 0 }

var _ types.Source = (*Source)(nil)
