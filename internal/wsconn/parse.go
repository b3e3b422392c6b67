package wsconn

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shl888/feedcore/internal/venue"
)

// parseMessage turns one wire frame into zero or more normalized envelopes.
// Subscription acknowledgements and venue A's event/error frames yield no
// envelopes and no error: they are never emitted as data, and they are not
// logged either.
func parseMessage(v venue.Name, data []byte) ([]Envelope, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	switch v {
	case venue.Binance:
		return parseBinance(raw)
	case venue.OKX:
		return parseOKX(raw)
	default:
		return nil, fmt.Errorf("unknown venue %q", v)
	}
}

func parseBinance(raw map[string]interface{}) ([]Envelope, error) {
	if _, ok := raw["result"]; ok {
		return nil, nil
	}
	if _, ok := raw["id"]; ok {
		return nil, nil
	}

	eventType, _ := raw["e"].(string)
	symbol, _ := raw["s"].(string)
	if symbol == "" {
		return nil, nil
	}

	now := time.Now()
	switch eventType {
	case "24hrTicker":
		return []Envelope{{
			Venue:           venue.Binance,
			CanonicalSymbol: venue.Canonicalize(venue.Binance, symbol),
			EventKind:       venue.EventTicker,
			WireEventType:   eventType,
			Raw:             raw,
			IngestInstant:   now,
		}}, nil
	case "markPriceUpdate":
		return []Envelope{{
			Venue:           venue.Binance,
			CanonicalSymbol: venue.Canonicalize(venue.Binance, symbol),
			EventKind:       venue.EventMarkPrice,
			WireEventType:   eventType,
			Raw:             raw,
			IngestInstant:   now,
		}}, nil
	default:
		return nil, nil
	}
}

func parseOKX(raw map[string]interface{}) ([]Envelope, error) {
	if event, ok := raw["event"].(string); ok && event != "" {
		// subscribe acknowledgement or error frame; never forwarded as data.
		return nil, nil
	}

	arg, _ := raw["arg"].(map[string]interface{})
	channel, _ := arg["channel"].(string)
	instID, _ := arg["instId"].(string)

	items, _ := raw["data"].([]interface{})
	if len(items) == 0 {
		return nil, nil
	}

	now := time.Now()
	canonical := venue.Canonicalize(venue.OKX, instID)

	switch channel {
	case "tickers":
		return []Envelope{{
			Venue:           venue.OKX,
			CanonicalSymbol: canonical,
			EventKind:       venue.EventTicker,
			WireEventType:   channel,
			Raw:             raw,
			IngestInstant:   now,
		}}, nil
	case "funding-rate":
		return []Envelope{{
			Venue:           venue.OKX,
			CanonicalSymbol: canonical,
			EventKind:       venue.EventFundingRate,
			WireEventType:   channel,
			Raw:             raw,
			IngestInstant:   now,
		}}, nil
	default:
		return nil, nil
	}
}
