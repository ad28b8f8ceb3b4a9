package mapper

import (
	"fmt"
	"strings"
	"time"

	"crm-bridge/core/utils"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
	"golang.org/x/text/cases"
)

// toCanonical converts a remote value into its canonical form.
func (m *Mapper) toCanonical(f *FieldMap, side *SideMap, raw any) (any, error) {
	switch f.Type {
	case TypeString:
		s := strings.TrimSpace(utils.ToString(raw))
		if side.Prefix != "" {
			s = strings.TrimSpace(strings.TrimPrefix(s, side.Prefix))
		}
		return s, nil

	case TypeEmail:
		s := strings.TrimSpace(utils.ToString(raw))
		if !strings.Contains(s, "@") {
			return nil, fmt.Errorf("%q is not an email address", s)
		}
		return cases.Fold().String(s), nil

	case TypeInt:
		return utils.ToInt64(raw)

	case TypeDecimal:
		d, err := toDecimal(raw)
		if err != nil {
			return nil, err
		}
		return d.String(), nil

	case TypeBool:
		return utils.ToBool(raw)

	case TypeDate:
		s := strings.TrimSpace(utils.ToString(raw))
		t, err := time.Parse(layoutOf(side), s)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return t.Format(CanonicalDateLayout), nil

	case TypeEnum:
		s := strings.TrimSpace(utils.ToString(raw))
		if v, ok := side.Values[s]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("value %q has no canonical equivalent", s)

	case TypePhone:
		return m.normalizePhone(utils.ToString(raw))
	}
	return nil, fmt.Errorf("unsupported field type %q", f.Type)
}

// toRemote converts a canonical value into the representation expected by one side.
func (m *Mapper) toRemote(f *FieldMap, side *SideMap, val any) (any, error) {
	switch f.Type {
	case TypeString:
		return side.Prefix + utils.ToString(val), nil

	case TypeEmail:
		return utils.ToString(val), nil

	case TypeInt:
		return utils.ToInt64(val)

	case TypeDecimal:
		d, err := toDecimal(val)
		if err != nil {
			return nil, err
		}
		return d.String(), nil

	case TypeBool:
		return utils.ToBool(val)

	case TypeDate:
		s := utils.ToString(val)
		t, err := time.Parse(CanonicalDateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid canonical date %q: %w", s, err)
		}
		return t.Format(layoutOf(side)), nil

	case TypeEnum:
		s := utils.ToString(val)
		// Several remote values may map to one canonical value; pick the
		// lexically smallest so the choice is stable.
		var found string
		for remote, canonical := range side.Values {
			if canonical == s && (found == "" || remote < found) {
				found = remote
			}
		}
		if found == "" {
			return nil, fmt.Errorf("value %q has no remote equivalent", s)
		}
		return found, nil

	case TypePhone:
		return m.normalizePhone(utils.ToString(val))
	}
	return nil, fmt.Errorf("unsupported field type %q", f.Type)
}

func (m *Mapper) normalizePhone(s string) (string, error) {
	p, err := libphonenumber.Parse(strings.TrimSpace(s), m.region)
	if err != nil {
		return "", fmt.Errorf("invalid phone number %q: %w", s, err)
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number %q is not valid", s)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int, int64, int32:
		n, err := utils.ToInt64(v)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(n), nil
	case string:
		clean := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		return decimal.NewFromString(clean)
	}
	return decimal.Zero, fmt.Errorf("cannot convert %T to decimal", raw)
}

func layoutOf(side *SideMap) string {
	if side.Layout == "" {
		return CanonicalDateLayout
	}
	return side.Layout
}
