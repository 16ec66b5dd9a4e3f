package engine

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/bittoy/reactor/types"
)

// BuildUpdate walks subject and its subject-valued properties into a
// complete types.SubjectUpdate tree (spec §4.H). processors run, in order,
// on every node before it is attached to its parent's tree, mirroring the
// teacher's chain-of-processors shape (no direct teacher precedent for the
// tree itself — RuleGo's Parser models a flat DSL, not a live-graph diff,
// see DESIGN.md's §H entry).
func BuildUpdate(subject types.Subject, processors []types.UpdateProcessor) (*types.SubjectUpdate, error) {
	update := &types.SubjectUpdate{Type: types.TypeTag(subject)}

	// Attribute properties (spec §3, §8 S6) nest under the property they
	// annotate instead of appearing as their own top-level entries; group
	// them by root property name before the main pass.
	attrsByRoot := make(map[string]map[string]string) // rootProperty -> attributeName -> backing property name
	for name, meta := range subject.Properties() {
		if !meta.IsAttribute {
			continue
		}
		attr, ok := meta.Attribute(types.AttributeRoleAttributeOf)
		if !ok {
			continue
		}
		of, ok := attr.Value.(types.AttributeOf)
		if !ok {
			continue
		}
		if attrsByRoot[of.RootProperty] == nil {
			attrsByRoot[of.RootProperty] = make(map[string]string)
		}
		attrsByRoot[of.RootProperty][of.AttributeName] = name
	}

	for name, meta := range subject.Properties() {
		if meta.IsAttribute {
			continue
		}
		pu := types.SubjectPropertyUpdate{Name: name}

		for attrName, backingName := range attrsByRoot[name] {
			attrMeta := subject.Properties()[backingName]
			attrPU, err := buildScalarPropertyUpdate(subject, backingName, attrMeta)
			if err != nil {
				return nil, err
			}
			if pu.Attributes == nil {
				pu.Attributes = make(map[string]*types.SubjectPropertyUpdate)
			}
			pu.Attributes[attrName] = attrPU
		}

		switch {
		case meta.IsSubjectReference:
			pu.HasItem = true
			child, _ := meta.Get(subject).(types.Subject)
			if child != nil {
				sub, err := BuildUpdate(child, processors)
				if err != nil {
					return nil, err
				}
				pu.Subject = sub
			}
		case meta.IsSubjectCollection:
			v := meta.Get(subject)
			rv := reflect.ValueOf(v)
			if rv.IsValid() && rv.Kind() == reflect.Slice {
				for i := 0; i < rv.Len(); i++ {
					child, _ := rv.Index(i).Interface().(types.Subject)
					if child == nil {
						continue
					}
					sub, err := BuildUpdate(child, processors)
					if err != nil {
						return nil, err
					}
					pu.Collection = append(pu.Collection, types.CollectionEntry{Index: i, Subject: sub})
				}
			}
		case meta.IsSubjectDictionary:
			v := meta.Get(subject)
			rv := reflect.ValueOf(v)
			if rv.IsValid() && rv.Kind() == reflect.Map {
				pu.Dictionary = make(map[string]*types.SubjectUpdate, rv.Len())
				for _, k := range rv.MapKeys() {
					child, _ := rv.MapIndex(k).Interface().(types.Subject)
					if child == nil {
						continue
					}
					sub, err := BuildUpdate(child, processors)
					if err != nil {
						return nil, err
					}
					pu.Dictionary[fmt.Sprint(k.Interface())] = sub
				}
			}
		default:
			pu.HasValue = true
			pu.Value = meta.Get(subject)
		}

		update.Properties = append(update.Properties, pu)
	}

	for _, p := range processors {
		processed, err := p.ProcessUpdate(update)
		if err != nil {
			return nil, err
		}
		update = processed
	}
	return update, nil
}

// attributeBackingProperty finds the property on subject declared as the
// rootProperty/attrName attribute (spec §3's AttributeRoleAttributeOf), so
// an inbound update shaped as Properties.Name.Attributes.MaxLength writes
// to whatever property actually backs it (by convention "Name_MaxLength",
// but ApplyUpdate never assumes the name, only the declared relationship).
func attributeBackingProperty(subject types.Subject, rootProperty, attrName string) (string, error) {
	for name, meta := range subject.Properties() {
		if !meta.IsAttribute {
			continue
		}
		attr, ok := meta.Attribute(types.AttributeRoleAttributeOf)
		if !ok {
			continue
		}
		of, ok := attr.Value.(types.AttributeOf)
		if !ok {
			continue
		}
		if of.RootProperty == rootProperty && of.AttributeName == attrName {
			return name, nil
		}
	}
	return "", types.NewError(types.UnknownProperty, subject, rootProperty+"."+attrName, fmt.Errorf("no attribute property declares this relationship"))
}

// buildScalarPropertyUpdate builds the nested SubjectPropertyUpdate for one
// attribute property. Attribute properties are always plain values (spec
// §3: an attribute annotates another property with metadata like a max
// length, never with its own subject graph), so this skips the
// subject/collection/dictionary cases BuildUpdate itself handles.
func buildScalarPropertyUpdate(subject types.Subject, name string, meta *types.PropertyMetadata) (*types.SubjectPropertyUpdate, error) {
	if meta == nil {
		return nil, fmt.Errorf("reactor: attribute property %q has no metadata", name)
	}
	return &types.SubjectPropertyUpdate{Name: name, HasValue: true, Value: meta.Get(subject)}, nil
}

// DiffUpdate returns a partial SubjectUpdate carrying only the entries of
// next that differ from prev (by value equality for scalars, recursively
// for subject-valued properties). prev and next must describe the same
// subject type. This compares two complete snapshots taken at different
// times; BuildPartialUpdate below builds the same shape of result directly
// from the PropertyChange records a write pipeline actually produced,
// without needing a full snapshot on either side (spec §4.H) — prefer it
// when a change feed is available, which is the common case via a Source
// coordinator's quiesced batch (spec §2).
func DiffUpdate(prev, next *types.SubjectUpdate) *types.SubjectUpdate {
	out := &types.SubjectUpdate{Type: next.Type, Partial: true}
	for _, np := range next.Properties {
		op, hadOld := prev.Property(np.Name)
		if hadOld && propertyUpdateEqual(op, np) {
			continue
		}
		out.Properties = append(out.Properties, np)
	}
	return out
}

// BuildPartialUpdate constructs a partial SubjectUpdate rooted at root from
// a batch of PropertyChange records (spec §4.H), by walking each change's
// subject up the registry's parent chain to root rather than diffing two
// full snapshots: changes rooted anywhere other than root (a detached
// subject, or one the registry has no record of) are silently dropped,
// since there is no path to wire them into root's tree.
func BuildPartialUpdate(reg types.Registry, root types.Subject, changes []types.PropertyChange, processors []types.UpdateProcessor) (*types.SubjectUpdate, error) {
	known := map[types.Subject]*types.SubjectUpdate{
		root: {Type: types.TypeTag(root), Partial: true},
	}
	processedParentPaths := make(map[parentPathKey]struct{})

	for _, change := range changes {
		subject := change.Subject
		meta, ok := subject.Properties()[change.Property]
		if !ok {
			continue
		}

		su := subjectUpdateFor(subject, known)
		if err := setPartialProperty(su, subject, change.Property, meta, processors); err != nil {
			return nil, err
		}
		if subject != root {
			wireUpParentChain(reg, subject, su, known, processedParentPaths)
		}
	}

	result := known[root]
	for _, p := range processors {
		processed, err := p.ProcessUpdate(result)
		if err != nil {
			return nil, err
		}
		result = processed
	}
	return result, nil
}

// parentPathKey identifies one (parent, property, index) slot a child
// subject-update was wired into, so BuildPartialUpdate's walk up a shared
// ancestor only wires each slot once even when multiple changes in the
// same batch touch descendants of that ancestor (spec §4.H's
// "processed-parent-paths" de-dupe set).
type parentPathKey struct {
	parent   types.Subject
	property string
	index    any
}

func subjectUpdateFor(subject types.Subject, known map[types.Subject]*types.SubjectUpdate) *types.SubjectUpdate {
	if su, ok := known[subject]; ok {
		return su
	}
	su := &types.SubjectUpdate{Type: types.TypeTag(subject), Partial: true}
	known[subject] = su
	return su
}

// setPartialProperty records one changed property onto su, the changed
// subject's own (possibly partial) update node. Attribute properties walk
// up to the root property they annotate and nest under its Attributes map
// instead of appearing as a sibling entry (spec §4.H step 3).
func setPartialProperty(su *types.SubjectUpdate, subject types.Subject, property string, meta *types.PropertyMetadata, processors []types.UpdateProcessor) error {
	rootProperty := property
	attrName := ""
	if meta.IsAttribute {
		attr, ok := meta.Attribute(types.AttributeRoleAttributeOf)
		if !ok {
			return fmt.Errorf("reactor: attribute property %q has no attribute-of relationship", property)
		}
		of, ok := attr.Value.(types.AttributeOf)
		if !ok {
			return fmt.Errorf("reactor: attribute property %q has a malformed attribute-of value", property)
		}
		rootProperty, attrName = of.RootProperty, of.AttributeName
	}

	pu := existingPropertyUpdate(su, rootProperty)

	if attrName != "" {
		if pu.Attributes == nil {
			pu.Attributes = make(map[string]*types.SubjectPropertyUpdate)
		}
		pu.Attributes[attrName] = &types.SubjectPropertyUpdate{Name: property, HasValue: true, Value: meta.Get(subject)}
		replacePropertyUpdate(su, pu)
		return nil
	}

	rootMeta := subject.Properties()[rootProperty]
	switch {
	case rootMeta.IsSubjectReference:
		pu.HasValue, pu.Value = false, nil
		pu.HasItem = true
		child, _ := rootMeta.Get(subject).(types.Subject)
		pu.Subject = nil
		if child != nil {
			sub, err := BuildUpdate(child, processors)
			if err != nil {
				return err
			}
			pu.Subject = sub
		}
	case rootMeta.IsSubjectCollection, rootMeta.IsSubjectDictionary:
		// A direct write to the collection/dictionary property itself (as
		// opposed to a change on one of its elements, which arrives
		// through wireUpParentChain instead) needs the same enumeration
		// BuildUpdate already does; rebuild the whole subject and lift out
		// just this property rather than duplicating that walk here.
		full, err := BuildUpdate(subject, processors)
		if err != nil {
			return err
		}
		rebuilt, _ := full.Property(rootProperty)
		pu = rebuilt
	default:
		pu.HasValue = true
		pu.Value = rootMeta.Get(subject)
	}

	replacePropertyUpdate(su, pu)
	return nil
}

// wireUpParentChain embeds childUpdate into every parent slot the registry
// currently records for subject, then recurses from each parent toward
// root, so a change several levels deep ends up wired through every
// intermediate ancestor's property update (spec §4.H step 4). A subject
// attached under more than one parent fans out and walks each branch
// independently.
func wireUpParentChain(reg types.Registry, subject types.Subject, childUpdate *types.SubjectUpdate, known map[types.Subject]*types.SubjectUpdate, processed map[parentPathKey]struct{}) {
	if reg == nil {
		return
	}
	rs, ok := reg.Get(subject)
	if !ok {
		return
	}
	for _, pr := range rs.Parents {
		key := parentPathKey{parent: pr.Parent, property: pr.Property, index: pr.Index}
		if _, seen := processed[key]; seen {
			continue
		}
		processed[key] = struct{}{}

		parentUpdate := subjectUpdateFor(pr.Parent, known)
		wireChildIntoParentSlot(parentUpdate, pr.Property, pr.Index, childUpdate)
		wireUpParentChain(reg, pr.Parent, parentUpdate, known, processed)
	}
}

func wireChildIntoParentSlot(parentUpdate *types.SubjectUpdate, property string, index any, childUpdate *types.SubjectUpdate) {
	pu := existingPropertyUpdate(parentUpdate, property)
	switch idx := index.(type) {
	case int:
		replaced := false
		for i := range pu.Collection {
			if pu.Collection[i].Index == idx {
				pu.Collection[i].Subject = childUpdate
				replaced = true
				break
			}
		}
		if !replaced {
			pu.Collection = append(pu.Collection, types.CollectionEntry{Index: idx, Subject: childUpdate})
		}
	case string:
		if pu.Dictionary == nil {
			pu.Dictionary = make(map[string]*types.SubjectUpdate)
		}
		pu.Dictionary[idx] = childUpdate
	default:
		pu.HasItem = true
		pu.Subject = childUpdate
	}
	replacePropertyUpdate(parentUpdate, pu)
}

func existingPropertyUpdate(update *types.SubjectUpdate, name string) types.SubjectPropertyUpdate {
	if pu, ok := update.Property(name); ok {
		return pu
	}
	return types.SubjectPropertyUpdate{Name: name}
}

func replacePropertyUpdate(update *types.SubjectUpdate, pu types.SubjectPropertyUpdate) {
	for i := range update.Properties {
		if update.Properties[i].Name == pu.Name {
			update.Properties[i] = pu
			return
		}
	}
	update.Properties = append(update.Properties, pu)
}

func propertyUpdateEqual(a, b types.SubjectPropertyUpdate) bool {
	if !attributesEqual(a.Attributes, b.Attributes) {
		return false
	}
	if a.HasValue != b.HasValue {
		return false
	}
	if a.HasValue {
		return a.Value == b.Value
	}
	if a.HasItem != b.HasItem {
		return false
	}
	if a.HasItem {
		return subjectUpdateEqual(a.Subject, b.Subject)
	}
	if len(a.Collection) != len(b.Collection) {
		return false
	}
	for i := range a.Collection {
		if a.Collection[i].Index != b.Collection[i].Index {
			return false
		}
		if !subjectUpdateEqual(a.Collection[i].Subject, b.Collection[i].Subject) {
			return false
		}
	}
	if len(a.Dictionary) != len(b.Dictionary) {
		return false
	}
	for k, av := range a.Dictionary {
		bv, ok := b.Dictionary[k]
		if !ok || !subjectUpdateEqual(av, bv) {
			return false
		}
	}
	return true
}

func attributesEqual(a, b map[string]*types.SubjectPropertyUpdate) bool {
	if len(a) != len(b) {
		return false
	}
	for name, av := range a {
		bv, ok := b[name]
		if !ok || av == nil || bv == nil || av.Value != bv.Value {
			return false
		}
	}
	return true
}

func subjectUpdateEqual(a, b *types.SubjectUpdate) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type || len(a.Properties) != len(b.Properties) {
		return false
	}
	for _, ap := range a.Properties {
		bp, ok := b.Property(ap.Name)
		if !ok || !propertyUpdateEqual(ap, bp) {
			return false
		}
	}
	return true
}

// ApplyUpdate writes update's properties onto subject through ctx's write
// pipeline (spec §4.H). A single reference with no live subject to recurse
// into, and a collection/dictionary index or key the live property doesn't
// hold yet, are both materialized via factory rather than rejected — a nil
// factory degrades to the old assign-only behavior, erroring only where
// construction is actually needed. A complete (non-partial) update also
// truncates an ordered collection to its new length and drops dictionary
// keys the update no longer mentions; a partial update never does either,
// since its omitted entries were never inspected, not found absent (spec
// §4.H's "properties it did not carry are not touched" invariant covers
// omitted container entries the same way it covers omitted properties).
func ApplyUpdate(ctx types.Context, subject types.Subject, update *types.SubjectUpdate, factory types.SubjectFactory) error {
	for _, pu := range update.Properties {
		meta, ok := subject.Properties()[pu.Name]
		if !ok {
			return types.NewError(types.UnknownProperty, subject, pu.Name, nil)
		}

		for attrName, attrPU := range pu.Attributes {
			backingName, err := attributeBackingProperty(subject, pu.Name, attrName)
			if err != nil {
				return err
			}
			if err := ctx.Write(subject, backingName, attrPU.Value); err != nil {
				return err
			}
		}

		switch {
		case pu.HasValue:
			// A derived property's value is carried in a complete update
			// for snapshot/display purposes (spec §4.H) but has no setter
			// to apply through; applying the subject's own snapshot back
			// onto itself must be an identity operation (spec §8, invariant
			// 5), so a derived value is read back, not written.
			if meta.IsDerived {
				continue
			}
			if err := ctx.Write(subject, pu.Name, pu.Value); err != nil {
				return err
			}
		case meta.IsSubjectReference:
			if err := applyItem(ctx, subject, meta, pu, factory); err != nil {
				return err
			}
		case meta.IsSubjectCollection:
			if err := applyCollectionEntries(ctx, subject, update, pu, meta, factory); err != nil {
				return err
			}
		case meta.IsSubjectDictionary:
			if err := applyDictionaryEntries(ctx, subject, update, pu, meta, factory); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyItem applies a single subject-reference property update: a nil
// target removes the reference, a non-nil target recurses onto the
// existing child if there is one, and constructs a new child via factory
// (applying the nested update to it before it is ever visible through the
// property) otherwise.
func applyItem(ctx types.Context, subject types.Subject, meta *types.PropertyMetadata, pu types.SubjectPropertyUpdate, factory types.SubjectFactory) error {
	existing, _ := meta.Get(subject).(types.Subject)
	if isNilSubject(existing) {
		existing = nil
	}

	if pu.Subject == nil {
		if existing == nil {
			return nil
		}
		return ctx.Write(subject, pu.Name, nil)
	}

	if existing != nil {
		return ApplyUpdate(ctx, existing, pu.Subject, factory)
	}

	if factory == nil {
		return types.NewError(types.TypeMismatch, subject, pu.Name, fmt.Errorf("no existing subject to apply nested update onto and no factory to construct one"))
	}
	child, err := factory(pu.Subject.Type)
	if err != nil {
		return err
	}
	if err := ApplyUpdate(ctx, child, pu.Subject, factory); err != nil {
		return err
	}
	return ctx.Write(subject, pu.Name, child)
}

// applyCollectionEntries applies pu.Collection onto subject's ordered
// collection property: existing elements recurse in place, missing
// indices are constructed via factory (in ascending order, so a gap is
// always filled by the lowest missing index first), and — only when update
// is not partial — the collection is truncated to one past the highest
// index the update mentions.
func applyCollectionEntries(ctx types.Context, subject types.Subject, update *types.SubjectUpdate, pu types.SubjectPropertyUpdate, meta *types.PropertyMetadata, factory types.SubjectFactory) error {
	rv := reflect.ValueOf(meta.Get(subject))
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return types.NewError(types.TypeMismatch, subject, pu.Name, fmt.Errorf("property is not a subject collection"))
	}

	elems := make([]reflect.Value, rv.Len())
	for i := range elems {
		elems[i] = rv.Index(i)
	}

	entries := append([]types.CollectionEntry(nil), pu.Collection...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })

	changed := false
	for _, entry := range entries {
		for len(elems) <= entry.Index {
			child, err := newCollectionElement(factory, subject, pu.Name, len(elems), entry)
			if err != nil {
				return err
			}
			elems = append(elems, reflect.ValueOf(child))
			changed = true
		}
		existing, _ := elems[entry.Index].Interface().(types.Subject)
		if isNilSubject(existing) {
			child, err := newCollectionElement(factory, subject, pu.Name, entry.Index, entry)
			if err != nil {
				return err
			}
			existing = child
			elems[entry.Index] = reflect.ValueOf(child)
			changed = true
		}
		if err := ApplyUpdate(ctx, existing, entry.Subject, factory); err != nil {
			return err
		}
	}

	if !update.Partial {
		maxIndex := -1
		for _, entry := range entries {
			if entry.Index > maxIndex {
				maxIndex = entry.Index
			}
		}
		if maxIndex+1 < len(elems) {
			elems = elems[:maxIndex+1]
			changed = true
		}
	}

	if !changed {
		return nil
	}
	out := reflect.MakeSlice(rv.Type(), len(elems), len(elems))
	for i, e := range elems {
		out.Index(i).Set(e)
	}
	return ctx.Write(subject, pu.Name, out.Interface())
}

func newCollectionElement(factory types.SubjectFactory, subject types.Subject, property string, index int, entry types.CollectionEntry) (types.Subject, error) {
	if factory == nil {
		return nil, types.NewError(types.TypeMismatch, subject, property, fmt.Errorf("collection index %d has no existing element and no factory to construct one", index))
	}
	typeTag := ""
	if entry.Subject != nil {
		typeTag = entry.Subject.Type
	}
	return factory(typeTag)
}

// applyDictionaryEntries applies pu.Dictionary onto subject's keyed
// dictionary property: existing keys recurse in place, missing keys are
// constructed via factory, and — only when update is not partial — any
// live key absent from pu.Dictionary is dropped. Dictionary keys are
// assumed to be strings, matching every dictionary property in this
// codebase (spec §4.H names dictionary removal as explicit, unlike an
// ordered collection's truncate-only policy).
func applyDictionaryEntries(ctx types.Context, subject types.Subject, update *types.SubjectUpdate, pu types.SubjectPropertyUpdate, meta *types.PropertyMetadata, factory types.SubjectFactory) error {
	rv := reflect.ValueOf(meta.Get(subject))
	if !rv.IsValid() || rv.Kind() != reflect.Map {
		return types.NewError(types.TypeMismatch, subject, pu.Name, fmt.Errorf("property is not a subject dictionary"))
	}
	if rv.Type().Key().Kind() != reflect.String {
		return types.NewError(types.TypeMismatch, subject, pu.Name, fmt.Errorf("dictionary keys must be strings"))
	}

	out := reflect.MakeMap(rv.Type())
	changed := false

	for _, k := range rv.MapKeys() {
		if _, mentioned := pu.Dictionary[k.String()]; mentioned {
			continue
		}
		if !update.Partial {
			changed = true
			continue
		}
		out.SetMapIndex(k, rv.MapIndex(k))
	}

	for key, su := range pu.Dictionary {
		keyValue := reflect.ValueOf(key)
		var child types.Subject
		if entry := rv.MapIndex(keyValue); entry.IsValid() {
			child, _ = entry.Interface().(types.Subject)
		}
		if isNilSubject(child) {
			if factory == nil {
				return types.NewError(types.TypeMismatch, subject, pu.Name, fmt.Errorf("dictionary key %q has no existing element and no factory to construct one", key))
			}
			typeTag := ""
			if su != nil {
				typeTag = su.Type
			}
			var err error
			child, err = factory(typeTag)
			if err != nil {
				return err
			}
			changed = true
		}
		if err := ApplyUpdate(ctx, child, su, factory); err != nil {
			return err
		}
		out.SetMapIndex(keyValue, reflect.ValueOf(child))
	}

	if !changed {
		return nil
	}
	return ctx.Write(subject, pu.Name, out.Interface())
}

// isNilSubject reports whether s is an untyped nil interface or a typed
// nil (a nil *Tire stored in a types.Subject variable, say) — the latter
// compares != nil as an interface, so a plain "s == nil" check would treat
// it as a live subject to recurse into instead of one to replace.
func isNilSubject(s types.Subject) bool {
	if s == nil {
		return true
	}
	rv := reflect.ValueOf(s)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
