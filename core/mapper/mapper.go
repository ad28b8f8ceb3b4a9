package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"crm-bridge/core/models"
	"crm-bridge/core/syncerr"
	"crm-bridge/core/utils"

	"github.com/goccy/go-json"
	"golang.org/x/text/cases"
)

// Mapper converts records between remote and canonical representations.
// It holds only immutable configuration and is safe for concurrent use.
type Mapper struct {
	mapping *Mapping
	region  string
}

// New creates a Mapper for a validated mapping.
func New(mapping *Mapping) (*Mapper, error) {
	if mapping == nil {
		return nil, fmt.Errorf("mapping is nil")
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	region := strings.ToUpper(mapping.DefaultRegion)
	if region == "" {
		region = "US"
	}
	return &Mapper{mapping: mapping, region: region}, nil
}

// Entity returns the configuration of an entity type.
func (m *Mapper) Entity(et models.EntityType) (*EntityMap, error) {
	em, ok := m.mapping.Entities[string(et)]
	if !ok {
		return nil, fmt.Errorf("entity type %q is not mapped", et)
	}
	return em, nil
}

// EntityTypes returns the mapped entity types in processing order.
func (m *Mapper) EntityTypes() []models.EntityType {
	var out []models.EntityType
	for _, et := range models.EntityTypes {
		if _, ok := m.mapping.Entities[string(et)]; ok {
			out = append(out, et)
		}
	}
	return out
}

// ToCanonical maps a remote record to canonical fields.
// Remote fields without a mapping are dropped. A required field that is
// missing or cannot be coerced yields a MappingError; optional fields that
// fail coercion are omitted.
func (m *Mapper) ToCanonical(system models.System, et models.EntityType, rec models.RawRecord) (models.Fields, error) {
	em, err := m.Entity(et)
	if err != nil {
		return nil, err
	}

	out := make(models.Fields, len(em.Fields))
	for i := range em.Fields {
		f := &em.Fields[i]
		side := f.Side(system)
		raw, ok := rec.Fields[side.Field]
		if side.SourceID {
			raw, ok = rec.ID, rec.ID != ""
		}
		if !ok || utils.IsEmpty(raw) {
			if f.Required {
				return nil, &syncerr.MappingError{
					System: string(system), EntityType: string(et), RecordID: rec.ID,
					Field: f.Name, Message: "required field is missing",
				}
			}
			continue
		}

		v, err := m.toCanonical(f, side, raw)
		if err != nil {
			if f.Required {
				return nil, &syncerr.MappingError{
					System: string(system), EntityType: string(et), RecordID: rec.ID,
					Field: f.Name, Value: raw, Message: err.Error(),
				}
			}
			continue
		}
		if f.Required && utils.IsEmpty(v) {
			return nil, &syncerr.MappingError{
				System: string(system), EntityType: string(et), RecordID: rec.ID,
				Field: f.Name, Value: raw, Message: "required field is empty",
			}
		}
		out[f.Name] = v
	}
	return out, nil
}

// ToRemote maps canonical fields to the remote field names and formats of system.
// Only the given fields are mapped, so it also serves partial updates. A nil
// value clears the remote field. Read-only fields are skipped.
func (m *Mapper) ToRemote(system models.System, et models.EntityType, fields models.Fields) (map[string]any, error) {
	em, err := m.Entity(et)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(fields))
	for name, val := range fields {
		f, ok := em.Field(name)
		if !ok {
			continue
		}
		side := f.Side(system)
		if side.ReadOnly || side.SourceID {
			continue
		}
		if val == nil {
			if f.Required {
				return nil, &syncerr.MappingError{
					System: string(system), EntityType: string(et),
					Field: name, Message: "required field cannot be cleared",
				}
			}
			out[side.Field] = nil
			continue
		}

		v, err := m.toRemote(f, side, val)
		if err != nil {
			if f.Required {
				return nil, &syncerr.MappingError{
					System: string(system), EntityType: string(et),
					Field: name, Value: val, Message: err.Error(),
				}
			}
			continue
		}
		out[side.Field] = v
	}
	return out, nil
}

// Representable splits fields into those system can hold and those it
// cannot, such as an enum value missing from the system's value table or a
// required field being cleared. Each rejected field carries its reason.
// Unmapped, read-only and source id fields are kept; ToRemote skips them.
func (m *Mapper) Representable(system models.System, et models.EntityType, fields models.Fields) (models.Fields, map[string]error) {
	em, err := m.Entity(et)
	if err != nil {
		return fields, nil
	}
	ok := make(models.Fields, len(fields))
	var rejected map[string]error
	reject := func(name string, err error) {
		if rejected == nil {
			rejected = map[string]error{}
		}
		rejected[name] = err
	}
	for name, val := range fields {
		f, mapped := em.Field(name)
		if !mapped || f.Side(system).ReadOnly || f.Side(system).SourceID {
			ok[name] = val
			continue
		}
		if val == nil {
			if f.Required {
				reject(name, fmt.Errorf("required field cannot be cleared"))
				continue
			}
			ok[name] = nil
			continue
		}
		if _, err := m.toRemote(f, f.Side(system), val); err != nil {
			reject(name, err)
			continue
		}
		ok[name] = val
	}
	return ok, rejected
}

// Writable reports whether a canonical field is written to system.
func (m *Mapper) Writable(system models.System, et models.EntityType, name string) bool {
	em, err := m.Entity(et)
	if err != nil {
		return false
	}
	f, ok := em.Field(name)
	return ok && !f.Side(system).ReadOnly && !f.Side(system).SourceID
}

// SourceKey returns the record id of the id-holding system carried by fields,
// and that system. It is empty when the entity has no source id field or the
// value is absent.
func (m *Mapper) SourceKey(et models.EntityType, fields models.Fields) (string, models.System) {
	em, err := m.Entity(et)
	if err != nil {
		return "", ""
	}
	f, sys, ok := em.SourceIDField()
	if !ok {
		return "", ""
	}
	return strings.TrimSpace(utils.ToString(fields[f.Name])), sys
}

// RemoteFields returns the remote field names system holds for et, sorted.
func (m *Mapper) RemoteFields(system models.System, et models.EntityType) []string {
	em, err := m.Entity(et)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(em.Fields))
	for i := range em.Fields {
		if side := em.Fields[i].Side(system); !side.SourceID {
			names = append(names, side.Field)
		}
	}
	sort.Strings(names)
	return names
}

// EnumGap is a canonical enum value that one side cannot represent.
type EnumGap struct {
	EntityType models.EntityType `json:"entity_type"`
	Field      string            `json:"field"`
	Value      string            `json:"value"`
	// MissingIn is the system without a remote value for Value.
	MissingIn models.System `json:"missing_in"`
}

// EnumGaps lists canonical enum values produced by one side's value table
// that the other side's table does not cover. Such values would fail to map
// on write.
func (m *Mapper) EnumGaps() []EnumGap {
	var gaps []EnumGap
	for _, et := range m.EntityTypes() {
		em, _ := m.Entity(et)
		for i := range em.Fields {
			f := &em.Fields[i]
			if f.Type != TypeEnum {
				continue
			}
			for _, sys := range models.Systems {
				covered := make(map[string]bool)
				for _, canonical := range f.Side(sys.Other()).Values {
					covered[canonical] = true
				}
				values := make([]string, 0, len(f.Side(sys).Values))
				for _, canonical := range f.Side(sys).Values {
					values = append(values, canonical)
				}
				sort.Strings(values)
				for j, v := range values {
					if covered[v] || (j > 0 && values[j-1] == v) {
						continue
					}
					gaps = append(gaps, EnumGap{EntityType: et, Field: f.Name, Value: v, MissingIn: sys.Other()})
				}
			}
		}
	}
	return gaps
}

// NaturalKey returns the normalized natural key of an entity, or "" when the
// key field is absent.
func (m *Mapper) NaturalKey(et models.EntityType, fields models.Fields) string {
	em, err := m.Entity(et)
	if err != nil {
		return ""
	}
	return NormalizeKey(utils.ToString(fields[em.NaturalKey]))
}

// NormalizeKey case folds and collapses whitespace.
func NormalizeKey(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// Fingerprint is a stable hash of canonical field values.
func Fingerprint(fields models.Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write(encodeValue(fields[k]))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Equal reports whether two canonical values are the same after normalization.
// Values read back from JSON storage lose their Go type (int64 becomes float64),
// so comparison is done on the encoded form.
func Equal(a, b any) bool {
	return string(encodeValue(a)) == string(encodeValue(b))
}

// Diff returns the fields of next whose values differ from prev. Fields present
// in prev but absent from next are returned with a nil value.
func Diff(prev, next models.Fields) models.Fields {
	out := models.Fields{}
	for k, v := range next {
		if old, ok := prev[k]; !ok || !Equal(old, v) {
			out[k] = v
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			out[k] = nil
		}
	}
	return out
}

// ChangedNames returns the sorted names of fields that differ between a and b.
func ChangedNames(a, b models.Fields) []string {
	d := Diff(a, b)
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func encodeValue(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%v", v))
	}
	return b
}
