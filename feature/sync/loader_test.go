package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLoader_DisabledWithoutOrchestrator(t *testing.T) {
	assert.False(t, NewFeature(nil).IsEnabled())

	feature := NewFeature(NewService(nil, nil, nil, nil, zap.NewNop()))
	assert.Equal(t, "sync", feature.Name())
	assert.False(t, feature.IsEnabled())
}
