package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt64(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"Int", 5, 5, false},
		{"JSONNumber", float64(42), 42, false},
		{"Fraction", 4.5, 0, true},
		{"String", " 17 ", 17, false},
		{"Bytes", []byte("9"), 9, false},
		{"BadString", "abc", 0, true},
		{"Unsupported", struct{}{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToInt64(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "1234567890123", ToString(float64(1234567890123)))
	assert.Equal(t, "12", ToString(12))
	assert.Equal(t, "x", ToString([]byte("x")))
}

func TestToBool(t *testing.T) {
	tests := []struct {
		in      any
		want    bool
		wantErr bool
	}{
		{true, true, false},
		{1, true, false},
		{float64(0), false, false},
		{"YES", true, false},
		{"off", false, false},
		{"maybe", false, true},
		{2, false, true},
	}

	for _, tt := range tests {
		got, err := ToBool(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty("  "))
	assert.False(t, IsEmpty(0))
	assert.False(t, IsEmpty("a"))
}
