package graphitesend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClient(t *testing.T) {
	Reset()
	defer Reset()

	_, err := Send("metric", 1, time.Time{})
	assert.Equal(t, ErrNotInitialized, err)
	_, err = SendList([]Point{{Name: "metric", Value: 1}}, time.Time{})
	assert.Equal(t, ErrNotInitialized, err)
	_, err = SendDict(map[string]interface{}{"metric": 1}, time.Time{})
	assert.Equal(t, ErrNotInitialized, err)

	cfg := testConfig()
	cfg.DryRun = true
	_, err = Init(cfg, WithClock(fixedClock))
	require.NoError(t, err)

	got, err := SendList([]Point{{Name: "test_send_list", Value: 50}}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "test.test_send_list 50.000000 1\n", got)

	assert.True(t, Reset())
	assert.False(t, Reset())
	_, err = Send("metric", 1, time.Time{})
	assert.Equal(t, ErrNotInitialized, err)
}

func TestInitRejectsInvalidProtocol(t *testing.T) {
	defer Reset()
	cfg := testConfig()
	cfg.Protocol = "udp"
	_, err := Init(cfg)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
