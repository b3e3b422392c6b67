package pipeline

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/shl888/feedcore/internal/venue"
	"github.com/shl888/feedcore/internal/wsconn"
)

// descriptor names the path into an envelope's Raw payload and the
// canonical output field names for its wire fields.
type descriptor struct {
	path   []interface{}
	fields map[string]string // output field -> wire field
}

var descriptors = map[string]descriptor{
	"okx_ticker": {
		path:   []interface{}{"data", 0},
		fields: map[string]string{"contract_name": "instId", "latest_price": "last"},
	},
	"okx_funding_rate": {
		path: []interface{}{"data", 0},
		fields: map[string]string{
			"contract_name":           "instId",
			"funding_rate":            "fundingRate",
			"current_settlement_time": "fundingTime",
			"next_settlement_time":    "nextFundingTime",
		},
	},
	"binance_ticker": {
		path:   nil,
		fields: map[string]string{"contract_name": "s", "latest_price": "c"},
	},
	"binance_mark_price": {
		path: nil,
		fields: map[string]string{
			"contract_name":           "s",
			"funding_rate":            "r",
			"current_settlement_time": "T",
		},
	},
	"binance_funding_settlement": {
		path: nil,
		fields: map[string]string{
			"contract_name":        "symbol",
			"funding_rate":         "funding_rate",
			"last_settlement_time": "funding_time",
		},
	},
}

func eventTypeKey(env wsconn.Envelope) string {
	if env.EventKind == venue.EventFundingSettlement {
		return "binance_funding_settlement"
	}
	return fmt.Sprintf("%s_%s", env.Venue, env.EventKind)
}

// traversePath walks a sequence of string keys / int indices into data. A
// nil at any step discards the record.
func traversePath(data interface{}, path []interface{}) interface{} {
	result := data
	for _, key := range path {
		if result == nil {
			return nil
		}
		switch k := key.(type) {
		case int:
			arr, ok := result.([]interface{})
			if !ok || k >= len(arr) {
				return nil
			}
			result = arr[k]
		case string:
			m, ok := result.(map[string]interface{})
			if !ok {
				return nil
			}
			result = m[k]
		default:
			return nil
		}
	}
	return result
}

// extract dispatches on event_type_key and pulls the descriptor's fields
// out of env.Raw. An unknown key or a malformed or missing path logs a
// warning and yields (Extracted{}, false); the caller drops the record.
func extract(env wsconn.Envelope) (Extracted, bool) {
	key := eventTypeKey(env)
	d, ok := descriptors[key]
	if !ok {
		log.Warn().Str("event_type_key", key).Msg("unknown event type, dropping")
		return Extracted{}, false
	}

	var source interface{} = env.Raw
	if len(d.path) > 0 {
		source = traversePath(env.Raw, d.path)
	}
	if source == nil {
		log.Warn().Str("event_type_key", key).Msg("extract path resolved to nil, dropping")
		return Extracted{}, false
	}
	sourceMap, ok := source.(map[string]interface{})
	if !ok {
		log.Warn().Str("event_type_key", key).Msg("extract path did not resolve to an object, dropping")
		return Extracted{}, false
	}

	fields := make(map[string]interface{}, len(d.fields))
	for outKey, wireKey := range d.fields {
		fields[outKey] = sourceMap[wireKey]
	}

	return Extracted{
		EventTypeKey:    key,
		Venue:           env.Venue,
		CanonicalSymbol: env.CanonicalSymbol,
		Fields:          fields,
	}, true
}
