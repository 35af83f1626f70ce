//go:build live

package airquality

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/canopy-watch/internal/domain"
)

// These tests hit the real WAQI API and require a valid AIR_QUALITY_API_KEY
// env var.
// Run with: go test -tags=live ./internal/adapter/airquality/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("AIR_QUALITY_API_KEY")
	if token == "" {
		t.Fatal("AIR_QUALITY_API_KEY must be set to run smoke tests")
	}
	return NewClient(token, "", 30*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_Reading(t *testing.T) {
	c := smokeClient(t)

	// São Paulo has dense station coverage, so geo lookup reliably resolves.
	region := domain.Region{Name: "sao-paulo", Lat: -23.5505, Lon: -46.6333, SizeKm: 20}
	data, err := c.Reading(context.Background(), region)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, data.AQI, 0)
	assert.NotEmpty(t, data.HealthImpact)
}
