package loader

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeature struct {
	name    string
	enabled bool
	err     error
}

func (f *stubFeature) Name() string    { return f.name }
func (f *stubFeature) IsEnabled() bool { return f.enabled }
func (f *stubFeature) Load(app fiber.Router) error {
	if f.err != nil {
		return f.err
	}
	app.Get("/"+f.name, func(c *fiber.Ctx) error { return c.SendString(f.name) })
	return nil
}

func TestManager_LoadAll(t *testing.T) {
	m := NewManager()
	m.Register(&stubFeature{name: "sync", enabled: true})
	m.Register(&stubFeature{name: "archive", enabled: false})
	assert.Len(t, m.Features(), 2)

	app := fiber.New()
	loaded, err := m.LoadAll(app)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync"}, loaded)

	resp, err := app.Test(httptest.NewRequest("GET", "/sync", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/archive", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestManager_LoadAllError(t *testing.T) {
	m := NewManager()
	m.Register(&stubFeature{name: "a", enabled: true})
	m.Register(&stubFeature{name: "b", enabled: true, err: errors.New("boom")})

	loaded, err := m.LoadAll(fiber.New())
	assert.EqualError(t, err, "failed to load feature b: boom")
	assert.Equal(t, []string{"a"}, loaded)
}
