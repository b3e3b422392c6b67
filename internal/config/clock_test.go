package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSettlementMillis_Nil(t *testing.T) {
	assert.Nil(t, FormatSettlementMillis(nil))
}

func TestFormatSettlementMillis_NonPositive(t *testing.T) {
	zero := int64(0)
	neg := int64(-1)
	assert.Nil(t, FormatSettlementMillis(&zero))
	assert.Nil(t, FormatSettlementMillis(&neg))
}

func TestFormatSettlementMillis_RoundTrip(t *testing.T) {
	ms := int64(1700000000000)
	got := FormatSettlementMillis(&ms)
	require := assert.New(t)
	require.NotNil(got)

	parsed, err := time.ParseInLocation(timeLayout, *got, utc8)
	require.NoError(err)
	require.True(parsed.Add(-8*time.Hour).UTC().Equal(time.UnixMilli(ms).UTC()))
}
