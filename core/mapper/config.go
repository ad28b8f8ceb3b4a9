package mapper

import (
	"fmt"
	"os"

	"crm-bridge/core/models"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// FieldType selects the coercion applied to a mapped field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeEmail   FieldType = "email"
	TypeInt     FieldType = "int"
	TypeDecimal FieldType = "decimal"
	TypeBool    FieldType = "bool"
	TypeDate    FieldType = "date"
	TypeEnum    FieldType = "enum"
	TypePhone   FieldType = "phone"
)

// Authority values for InitialAuthority.
const (
	AuthorityProject = "project"
	AuthorityCRM     = "crm"
	AuthorityNone    = "none"
)

// CanonicalDateLayout is the layout of canonical date values.
const CanonicalDateLayout = "2006-01-02"

// Mapping is the static field map configuration, loaded once at startup.
type Mapping struct {
	// DefaultRegion is the ISO region used to parse phone numbers without a country code.
	DefaultRegion string `yaml:"default_region" validate:"omitempty,len=2"`
	// Entities maps entity type names to their field maps.
	Entities map[string]*EntityMap `yaml:"entities" validate:"required,min=1,dive,keys,oneof=company contact deal,endkeys,required"`
}

// EntityMap configures one entity type.
type EntityMap struct {
	// NaturalKey is the canonical field used to pair unlinked records.
	NaturalKey string `yaml:"natural_key" validate:"required"`
	// CreateMissingInCRM creates CRM records for project-only entities.
	CreateMissingInCRM bool `yaml:"create_missing_in_crm"`
	// CreateMissingInProject creates project records for CRM-only entities.
	CreateMissingInProject bool `yaml:"create_missing_in_project"`
	// InitialAuthority decides which side wins when a pair is first linked with differing values.
	InitialAuthority string `yaml:"initial_authority" validate:"omitempty,oneof=project crm none"`
	// Fields lists the mapped fields.
	Fields []FieldMap `yaml:"fields" validate:"required,min=1,dive"`
}

// FieldMap configures one canonical field and its remote representation on each side.
type FieldMap struct {
	Name     string    `yaml:"name" validate:"required"`
	Type     FieldType `yaml:"type" validate:"required,oneof=string email int decimal bool date enum phone"`
	Required bool      `yaml:"required"`
	Project  SideMap   `yaml:"project"`
	CRM      SideMap   `yaml:"crm"`
}

// SideMap describes how a canonical field appears on one remote system.
type SideMap struct {
	// Field is the remote field name. Custom fields use their remote id.
	Field string `yaml:"field" validate:"required_unless=SourceID true"`
	// SourceID reads the value from the record's own id on this side. The
	// other side stores it in Field, e.g. a CRM property holding the task id.
	SourceID bool `yaml:"source_id"`
	// Layout is the remote date layout (Go reference time). Defaults to the canonical layout.
	Layout string `yaml:"layout"`
	// Prefix is stripped on read and prepended on write.
	Prefix string `yaml:"prefix"`
	// Values maps remote enum values to canonical values.
	Values map[string]string `yaml:"values"`
	// ReadOnly fields are read for comparison but never written to this side.
	ReadOnly bool `yaml:"read_only"`
}

// Side returns the side configuration for a system.
func (f *FieldMap) Side(system models.System) *SideMap {
	if system == models.SystemProject {
		return &f.Project
	}
	return &f.CRM
}

// Authority returns the configured initial authority, defaulting to the project system.
func (e *EntityMap) Authority() string {
	if e.InitialAuthority == "" {
		return AuthorityProject
	}
	return e.InitialAuthority
}

// CreateMissingIn reports whether missing records are created on the target system.
func (e *EntityMap) CreateMissingIn(target models.System) bool {
	if target == models.SystemCRM {
		return e.CreateMissingInCRM
	}
	return e.CreateMissingInProject
}

// SourceIDField returns the field holding the record id of one system, and
// that system. ok is false when the entity declares none.
func (e *EntityMap) SourceIDField() (f *FieldMap, idSystem models.System, ok bool) {
	for i := range e.Fields {
		for _, sys := range models.Systems {
			if e.Fields[i].Side(sys).SourceID {
				return &e.Fields[i], sys, true
			}
		}
	}
	return nil, "", false
}

// Field returns the field map for a canonical name.
func (e *EntityMap) Field(name string) (*FieldMap, bool) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// LoadMapping reads and validates a mapping file.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes and validates mapping YAML.
func ParseMapping(data []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks struct constraints and cross-field rules.
func (m *Mapping) Validate() error {
	if err := validator.New().Struct(m); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}

	for name, em := range m.Entities {
		seen := make(map[string]bool, len(em.Fields))
		sourceIDs := 0
		for _, f := range em.Fields {
			if seen[f.Name] {
				return fmt.Errorf("invalid mapping: %s field %q declared twice", name, f.Name)
			}
			seen[f.Name] = true
			if f.Type == TypeEnum && (len(f.Project.Values) == 0 || len(f.CRM.Values) == 0) {
				return fmt.Errorf("invalid mapping: %s enum field %q needs value tables on both sides", name, f.Name)
			}
			if f.Project.SourceID || f.CRM.SourceID {
				if f.Project.SourceID == f.CRM.SourceID {
					return fmt.Errorf("invalid mapping: %s field %q can be a source id on one side only", name, f.Name)
				}
				if f.Type != TypeString {
					return fmt.Errorf("invalid mapping: %s source id field %q must be a string", name, f.Name)
				}
				if sourceIDs++; sourceIDs > 1 {
					return fmt.Errorf("invalid mapping: %s declares more than one source id field", name)
				}
			}
		}
		if !seen[em.NaturalKey] {
			return fmt.Errorf("invalid mapping: %s natural key %q is not a mapped field", name, em.NaturalKey)
		}
	}
	return nil
}
