package wsconn

import (
	"encoding/json"
	"strings"

	"github.com/shl888/feedcore/internal/venue"
)

type binanceSubscribeMsg struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

type okxSubArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxSubscribeMsg struct {
	Op   string      `json:"op"`
	Args []okxSubArg `json:"args"`
}

func binanceStreams(symbols []string) []string {
	streams := make([]string, 0, len(symbols)*2)
	for _, s := range symbols {
		lower := strings.ToLower(s)
		streams = append(streams, lower+"@ticker", lower+"@markPrice")
	}
	return streams
}

func okxArgs(symbols []string) []okxSubArg {
	args := make([]okxSubArg, 0, len(symbols)*2)
	for _, s := range symbols {
		args = append(args, okxSubArg{Channel: "tickers", InstID: s})
		args = append(args, okxSubArg{Channel: "funding-rate", InstID: s})
	}
	return args
}

func buildSubscribeFrames(v venue.Name, symbols []string, batchSize int, nextID *int) [][]byte {
	return buildFrames(v, symbols, batchSize, nextID, "SUBSCRIBE", "subscribe")
}

func buildUnsubscribeFrames(v venue.Name, symbols []string, batchSize int, nextID *int) [][]byte {
	return buildFrames(v, symbols, batchSize, nextID, "UNSUBSCRIBE", "unsubscribe")
}

func buildFrames(v venue.Name, symbols []string, batchSize int, nextID *int, binanceMethod, okxOp string) [][]byte {
	var frames [][]byte
	switch v {
	case venue.Binance:
		streams := binanceStreams(symbols)
		for i := 0; i < len(streams); i += batchSize {
			end := i + batchSize
			if end > len(streams) {
				end = len(streams)
			}
			*nextID++
			msg := binanceSubscribeMsg{Method: binanceMethod, Params: streams[i:end], ID: *nextID}
			b, _ := json.Marshal(msg)
			frames = append(frames, b)
		}
	case venue.OKX:
		args := okxArgs(symbols)
		for i := 0; i < len(args); i += batchSize {
			end := i + batchSize
			if end > len(args) {
				end = len(args)
			}
			msg := okxSubscribeMsg{Op: okxOp, Args: args[i:end]}
			b, _ := json.Marshal(msg)
			frames = append(frames, b)
		}
	}
	return frames
}
