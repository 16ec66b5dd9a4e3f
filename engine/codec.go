package engine

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/bittoy/reactor/internal/jsonx"
	"github.com/bittoy/reactor/types"
)

// wireProperty is the JSON shape of one SubjectPropertyUpdate.
type wireProperty struct {
	Name       string                   `json:"name"`
	Value      any                      `json:"value,omitempty"`
	HasValue   bool                     `json:"hasValue,omitempty"`
	HasItem    bool                     `json:"hasItem,omitempty"`
	Subject    *wireSubject             `json:"subject,omitempty"`
	Collection []wireCollectionEntry    `json:"collection,omitempty"`
	Dictionary map[string]*wireSubject  `json:"dictionary,omitempty"`
	Attributes map[string]*wireProperty `json:"attributes,omitempty"`
}

type wireCollectionEntry struct {
	Index   int          `json:"index"`
	Subject *wireSubject `json:"subject"`
}

type wireSubject struct {
	Type       string         `json:"type"`
	Partial    bool           `json:"partial,omitempty"`
	Properties []wireProperty `json:"properties"`
}

func toWire(u *types.SubjectUpdate) *wireSubject {
	if u == nil {
		return nil
	}
	w := &wireSubject{Type: u.Type, Partial: u.Partial}
	for _, p := range u.Properties {
		wp := wireProperty{Name: p.Name, HasValue: p.HasValue, Value: p.Value, HasItem: p.HasItem, Subject: toWire(p.Subject)}
		for _, e := range p.Collection {
			wp.Collection = append(wp.Collection, wireCollectionEntry{Index: e.Index, Subject: toWire(e.Subject)})
		}
		if p.Dictionary != nil {
			wp.Dictionary = make(map[string]*wireSubject, len(p.Dictionary))
			for k, v := range p.Dictionary {
				wp.Dictionary[k] = toWire(v)
			}
		}
		if p.Attributes != nil {
			wp.Attributes = make(map[string]*wireProperty, len(p.Attributes))
			for k, v := range p.Attributes {
				wp.Attributes[k] = &wireProperty{Name: v.Name, HasValue: v.HasValue, Value: v.Value}
			}
		}
		w.Properties = append(w.Properties, wp)
	}
	return w
}

func fromWire(w *wireSubject) *types.SubjectUpdate {
	if w == nil {
		return nil
	}
	u := &types.SubjectUpdate{Type: w.Type, Partial: w.Partial}
	for _, wp := range w.Properties {
		p := types.SubjectPropertyUpdate{Name: wp.Name, HasValue: wp.HasValue, Value: wp.Value, HasItem: wp.HasItem, Subject: fromWire(wp.Subject)}
		for _, e := range wp.Collection {
			p.Collection = append(p.Collection, types.CollectionEntry{Index: e.Index, Subject: fromWire(e.Subject)})
		}
		if wp.Dictionary != nil {
			p.Dictionary = make(map[string]*types.SubjectUpdate, len(wp.Dictionary))
			for k, v := range wp.Dictionary {
				p.Dictionary[k] = fromWire(v)
			}
		}
		if wp.Attributes != nil {
			p.Attributes = make(map[string]*types.SubjectPropertyUpdate, len(wp.Attributes))
			for k, v := range wp.Attributes {
				p.Attributes[k] = &types.SubjectPropertyUpdate{Name: v.Name, HasValue: v.HasValue, Value: v.Value}
			}
		}
		u.Properties = append(u.Properties, p)
	}
	return u
}

// EncodeUpdate marshals a SubjectUpdate tree to JSON via internal/jsonx
// (goccy/go-json), grounded on the teacher's missing-but-referenced
// rule/utils/json wrapper convention — see DESIGN.md's §H entry.
func EncodeUpdate(u *types.SubjectUpdate) ([]byte, error) {
	return jsonx.Marshal(toWire(u))
}

// DecodeUpdate is EncodeUpdate's inverse.
func DecodeUpdate(data []byte) (*types.SubjectUpdate, error) {
	var w wireSubject
	if err := jsonx.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(&w), nil
}

// PatchPropertyValue rewrites a single scalar property's value inside an
// already-encoded SubjectUpdate document, in place, without a full
// decode/re-encode round trip — the scenario github.com/tidwall/sjson is
// built for (source adapters calling this hold a cached wire blob and only
// need to stamp one changed field into it before forwarding).
func PatchPropertyValue(document []byte, propertyName string, value any) ([]byte, error) {
	path, err := propertyValuePath(document, propertyName)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(document, path, value)
}

// ReadPropertyValue extracts one scalar property's value out of an
// encoded SubjectUpdate document using github.com/tidwall/gjson, without
// decoding the whole tree into wireSubject/SubjectUpdate first.
func ReadPropertyValue(document []byte, propertyName string) (gjson.Result, bool) {
	path, err := propertyValuePath(document, propertyName)
	if err != nil {
		return gjson.Result{}, false
	}
	result := gjson.GetBytes(document, path)
	return result, result.Exists()
}

// propertyValuePath locates the "properties.N.value" gjson path for the
// entry named propertyName at the top level of document.
func propertyValuePath(document []byte, propertyName string) (string, error) {
	props := gjson.GetBytes(document, "properties")
	if !props.Exists() || !props.IsArray() {
		return "", fmt.Errorf("reactor: document has no properties array")
	}
	var index = -1
	props.ForEach(func(key, value gjson.Result) bool {
		if value.Get("name").String() == propertyName {
			index = int(key.Int())
			return false
		}
		return true
	})
	if index < 0 {
		return "", fmt.Errorf("reactor: property %q not found in document", propertyName)
	}
	return fmt.Sprintf("properties.%d.value", index), nil
}
