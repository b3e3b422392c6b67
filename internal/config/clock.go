package config

import "time"

var utc8 = time.FixedZone("UTC+8", 8*3600)

const timeLayout = "2006-01-02 15:04:05"

// FormatSettlementMillis renders a wire millisecond timestamp as a 24-hour
// UTC+8 string per spec §4.5 S3. Invalid timestamps (nil or <= 0) yield nil
// without dropping the enclosing record.
func FormatSettlementMillis(ms *int64) *string {
	if ms == nil || *ms <= 0 {
		return nil
	}
	s := time.UnixMilli(*ms).In(utc8).Format(timeLayout)
	return &s
}
