// Package metadata builds types.PropertyMetadata from Go struct tags at
// runtime, the spec's "dynamic factory" alternative to a compile-time code
// generator (spec §4.A). Grounded on bittoy-rule's go.mod direct
// dependency on github.com/fatih/structs (unused by any retrieved teacher
// file — this package gives it a concrete home) — see DESIGN.md's §A
// entry.
package metadata

import (
	"reflect"

	"github.com/fatih/structs"

	"github.com/bittoy/reactor/types"
)

// Tag is the struct tag this provider reads, e.g.:
//
//	type Car struct {
//	    Tires []*Tire `reactor:"name=Tires,subjectCollection"`
//	    Name  string  `reactor:"name=Name"`
//	}
const Tag = "reactor"

// Reflective builds a map[string]*types.PropertyMetadata for v (a pointer
// to a struct) by inspecting its exported fields' Tag tags. Fields with no
// Tag tag are skipped. The returned Get/Set close over reflect.Value, not
// the original v, so metadata built once per type cannot be reused across
// instances — call this once per constructed subject.
func Reflective(v any) (map[string]*types.PropertyMetadata, error) {
	s := structs.New(v)
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return nil, &reflectError{"reflective metadata requires a pointer to a struct"}
	}
	elem := rv.Elem()

	out := make(map[string]*types.PropertyMetadata)
	for _, f := range s.Fields() {
		tag := f.Tag(Tag)
		if tag == "" {
			continue
		}
		opts := parseTag(tag)
		if opts.name == "" {
			continue
		}

		fieldIndex := elem.FieldByName(f.Name())
		if !fieldIndex.IsValid() {
			continue
		}

		meta := &types.PropertyMetadata{
			Name:                opts.name,
			Type:                fieldIndex.Type(),
			IsSubjectReference:  opts.subjectReference,
			IsSubjectCollection: opts.subjectCollection,
			IsSubjectDictionary: opts.subjectDictionary,
			IsDerived:           opts.derived,
		}

		field := fieldIndex
		meta.Get = func(types.Subject) any { return field.Interface() }
		if !opts.derived && field.CanSet() {
			meta.Set = func(_ types.Subject, value any) error {
				field.Set(reflect.ValueOf(value))
				return nil
			}
		}

		out[opts.name] = meta
	}
	return out, nil
}

type tagOptions struct {
	name              string
	subjectReference  bool
	subjectCollection bool
	subjectDictionary bool
	derived           bool
}

func parseTag(tag string) tagOptions {
	var opts tagOptions
	for _, part := range splitComma(tag) {
		switch {
		case len(part) > 5 && part[:5] == "name=":
			opts.name = part[5:]
		case part == "subjectReference":
			opts.subjectReference = true
		case part == "subjectCollection":
			opts.subjectCollection = true
		case part == "subjectDictionary":
			opts.subjectDictionary = true
		case part == "derived":
			opts.derived = true
		}
	}
	return opts
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

type reflectError struct{ msg string }

func (e *reflectError) Error() string { return e.msg }
