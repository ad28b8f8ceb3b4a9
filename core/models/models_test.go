package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystem_Other(t *testing.T) {
	assert.Equal(t, SystemCRM, SystemProject.Other())
	assert.Equal(t, SystemProject, SystemCRM.Other())
	assert.False(t, System("erp").Valid())
}

func TestParseEntityType(t *testing.T) {
	tests := []struct {
		in      string
		want    EntityType
		wantErr bool
	}{
		{"company", EntityCompany, false},
		{"contact", EntityContact, false},
		{"deal", EntityDeal, false},
		{"ticket", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEntityType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFields_Clone(t *testing.T) {
	f := Fields{"name": "Acme"}
	c := f.Clone()
	c["name"] = "Other"
	assert.Equal(t, "Acme", f["name"])
}
