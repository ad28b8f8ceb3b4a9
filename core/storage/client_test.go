package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "plain endpoint",
			cfg:  Config{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s", Bucket: "crm-bridge"},
		},
		{
			name: "https endpoint with region",
			cfg:  Config{Endpoint: "https://s3.amazonaws.com", AccessKey: "k", SecretKey: "s", Bucket: "crm-bridge-reports", Region: "us-east-1"},
		},
		{
			name:    "invalid bucket name",
			cfg:     Config{Endpoint: "localhost:9000", Bucket: "Reports_Bucket"},
			wantErr: true,
		},
		{
			name:    "empty bucket",
			cfg:     Config{Endpoint: "localhost:9000"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestSplitEndpoint(t *testing.T) {
	host, secure := splitEndpoint("https://minio.internal:9000/")
	assert.Equal(t, "minio.internal:9000", host)
	assert.True(t, secure)

	host, secure = splitEndpoint("http://localhost:9000")
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)

	host, secure = splitEndpoint("localhost:9000")
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)
}
