package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bittoy/reactor/types"
)

// Path is the default types.PathProvider: a "Name", "Name[0]",
// "Name[\"key\"]" dot-separated segment grammar (spec §4.E), built from
// spec.md directly rather than ported from the teacher (RuleGo addresses
// rule chains by node id, not object-graph paths) — see DESIGN.md's §E
// entry for why this is hand-written rather than gjson/sjson-backed.
type Path struct{}

func NewPath() Path { return Path{} }

var segmentPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(\[(\d+|"(?:[^"\\]|\\.)*")\])?$`)

func (Path) Parse(root types.Subject, path string) (types.PropertyReference, error) {
	if path == "" {
		return types.PropertyReference{}, fmt.Errorf("reactor: empty path")
	}
	segments := strings.Split(path, ".")
	current := root

	for i, seg := range segments {
		m := segmentPattern.FindStringSubmatch(seg)
		if m == nil {
			return types.PropertyReference{}, fmt.Errorf("reactor: invalid path segment %q in %q", seg, path)
		}
		name, indexLiteral := m[1], m[3]

		meta, ok := current.Properties()[name]
		if !ok {
			return types.PropertyReference{}, fmt.Errorf("reactor: unknown property %q in %q", name, path)
		}

		last := i == len(segments)-1
		if indexLiteral == "" {
			if last {
				return types.PropertyReference{Subject: current, Property: name}, nil
			}
			child, ok := meta.Get(current).(types.Subject)
			if !ok || child == nil {
				return types.PropertyReference{}, fmt.Errorf("reactor: %q is not a subject reference in %q", name, path)
			}
			current = child
			continue
		}

		child, err := resolveIndexed(meta, current, indexLiteral)
		if err != nil {
			return types.PropertyReference{}, fmt.Errorf("reactor: %q in %q: %w", seg, path, err)
		}
		if last {
			return types.PropertyReference{Subject: child, Property: name}, nil
		}
		current = child
	}
	return types.PropertyReference{}, fmt.Errorf("reactor: path %q resolved to nothing", path)
}

func resolveIndexed(meta *types.PropertyMetadata, owner types.Subject, literal string) (types.Subject, error) {
	for _, c := range childrenOf(meta, owner) {
		switch idx := c.Index.(type) {
		case int:
			if n, err := strconv.Atoi(literal); err == nil && idx == n {
				return c.Subject, nil
			}
		case string:
			if unquoted, err := strconv.Unquote(literal); err == nil && idx == unquoted {
				return c.Subject, nil
			}
		}
	}
	return nil, fmt.Errorf("index %s not found", literal)
}

func (Path) Format(reg types.Registry, ref types.PropertyReference) (string, error) {
	segments, err := formatSegments(reg, ref.Subject)
	if err != nil {
		return "", err
	}
	segments = append(segments, ref.Property)
	return strings.Join(segments, "."), nil
}

func formatSegments(reg types.Registry, subject types.Subject) ([]string, error) {
	rs, ok := reg.Get(subject)
	if !ok || len(rs.Parents) == 0 {
		return nil, nil
	}
	parent := rs.Parents[0]

	var seg string
	switch idx := parent.Index.(type) {
	case nil:
		seg = parent.Property
	case int:
		seg = fmt.Sprintf("%s[%d]", parent.Property, idx)
	case string:
		seg = fmt.Sprintf("%s[%s]", parent.Property, strconv.Quote(idx))
	default:
		return nil, fmt.Errorf("reactor: unsupported index type %T", idx)
	}

	prefix, err := formatSegments(reg, parent.Parent)
	if err != nil {
		return nil, err
	}
	return append(prefix, seg), nil
}

var _ types.PathProvider = Path{}
