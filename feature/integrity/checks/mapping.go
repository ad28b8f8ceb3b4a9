package checks

import (
	"fmt"

	"crm-bridge/core/mapper"
)

// EnumSource lists enum values one side cannot represent.
// *mapper.Mapper implements it.
type EnumSource interface {
	EnumGaps() []mapper.EnumGap
}

// MappingReport is the result of checking the field mapping for values that
// would fail to translate on write.
type MappingReport struct {
	Matched bool             `json:"matched"`
	Gaps    []mapper.EnumGap `json:"gaps"`
}

// CheckMapping reports enum gaps in the loaded mapping.
func CheckMapping(src EnumSource) (*MappingReport, error) {
	if src == nil {
		return nil, fmt.Errorf("field mapping is nil")
	}
	gaps := src.EnumGaps()
	if gaps == nil {
		gaps = []mapper.EnumGap{}
	}
	return &MappingReport{Matched: len(gaps) == 0, Gaps: gaps}, nil
}
