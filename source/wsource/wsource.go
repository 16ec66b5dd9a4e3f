// Package wsource is a reference types.Source backed by a websocket peer
// exchanging JSON property-change frames, one per websocket message. Not part of
// the core's test matrix (spec §1 Non-goals exclude transport adapters;
// see SPEC_FULL.md §1) — grounded on gorilla/websocket, an indirect
// dependency of the teacher's go.mod promoted to direct use here.
package wsource

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bittoy/reactor/internal/jsonx"
	"github.com/bittoy/reactor/types"
)

// frame is the wire shape of one property change.
type frame struct {
	Property string `json:"property"`
	Value    any    `json:"value"`
}

// Source exchanges frame messages over an already-dialed
// *websocket.Conn. Writes are serialized through writeMu since gorilla's
// Conn forbids concurrent writers.
type Source struct {
	Conn       *websocket.Conn
	Properties []string

	writeMu sync.Mutex
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
	go func() {
		<-ctx.Done()
		_ = s.Conn.Close()
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := s.Conn.ReadMessage()
		if err != nil {
			return err
		}
		var f frame
		if err := jsonx.Unmarshal(data, &f); err != nil {
			continue
		}
		onChange(types.PropertyChange{Subject: root, Property: f.Property, NewValue: f.Value, Source: "websocket"})
	}
}

func (s *Source) LoadInitialState(ctx context.Context, root types.Subject) (*types.SubjectUpdate, error) {
	return nil, nil
}

func (s *Source) WriteChangesAsync(ctx context.Context, changes []types.PropertyChange) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, change := range changes {
		data, err := jsonx.Marshal(frame{Property: change.Property, Value: change.NewValue})
		if err != nil {
			return err
		}
		if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) WriteBatchSize() int { return 32 }

var _ types.Source = (*Source)(nil)
