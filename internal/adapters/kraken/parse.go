package kraken

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

const tickerChannel = "ticker"

// ErrInvalidJSON is returned for frames that are not valid JSON.
var ErrInvalidJSON = errors.New("kraken: invalid JSON frame")

// ParseMessage turns one raw websocket frame into a PriceTick.
//
// Object frames (heartbeat, systemStatus, subscriptionStatus) and arrays on
// other channels return ok=false with a nil error. A ticker frame looks like
//
//	[channelID, {"a":[ask,...],"b":[bid,...],"c":[last,...],"p":[vwap,...]}, "ticker", "XBT/USDT"]
//
// Price is the mean of whichever of bid, ask and last trade are present.
func ParseMessage(raw []byte, pair string, now time.Time) (tick domain.PriceTick, ok bool, err error) {
	if !gjson.ValidBytes(raw) {
		return tick, false, ErrInvalidJSON
	}
	msg := gjson.ParseBytes(raw)
	if !msg.IsArray() {
		return tick, false, nil
	}
	parts := msg.Array()
	if len(parts) < 4 || parts[len(parts)-2].String() != tickerChannel {
		return tick, false, nil
	}
	data := parts[1]
	if !data.IsObject() {
		return tick, false, nil
	}

	bid, hasBid := firstPrice(data.Get("b"))
	ask, hasAsk := firstPrice(data.Get("a"))
	last, hasLast := firstPrice(data.Get("c"))
	if !hasLast {
		last, hasLast = firstPrice(data.Get("p"))
	}
	if !hasBid && !hasAsk && !hasLast {
		return tick, false, nil
	}

	var sum float64
	var n int
	for _, c := range []struct {
		v  float64
		ok bool
	}{{bid, hasBid}, {ask, hasAsk}, {last, hasLast}} {
		if c.ok {
			sum += c.v
			n++
		}
	}
	price := sum / float64(n)

	if !hasBid {
		bid = price
	}
	if !hasAsk {
		ask = price
	}

	return domain.PriceTick{
		Pair:        strings.ToUpper(pair),
		Price:       price,
		BestBid:     bid,
		BestAsk:     ask,
		EventTimeMs: now.UnixMilli(),
	}, true, nil
}

// firstPrice reads element 0 of a [price, size, ...] field. Kraken sends
// prices as strings; plain numbers are accepted too.
func firstPrice(field gjson.Result) (float64, bool) {
	if !field.IsArray() {
		return 0, false
	}
	items := field.Array()
	if len(items) == 0 {
		return 0, false
	}
	switch v := items[0]; v.Type {
	case gjson.String:
		p, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return p, true
	case gjson.Number:
		return v.Num, true
	}
	return 0, false
}
