package polymarket

import (
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/latencybot/internal/domain"
)

// mapOrderBook convierte la respuesta de /book a domain.OrderBook.
// El CLOB no garantiza el orden de los niveles, así que se reordenan.
func mapOrderBook(r orderBookResponse) domain.OrderBook {
	return domain.OrderBook{
		TokenID:   r.AssetID,
		Bids:      mapBookEntries(r.Bids, false),
		Asks:      mapBookEntries(r.Asks, true),
		Timestamp: parseTimestamp(r.Timestamp),
		TickSize:  parseTick(r.TickSize),
	}
}

// parseTick devuelve 0 si el tick falta o no es válido.
func parseTick(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f >= 1 {
		return 0
	}
	return f
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Price > entries[j].Price
	})

	return entries
}

// parseTimestamp acepta epoch en ms o s, o ISO 8601.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		ts := int64(f)
		if ts > 1e12 {
			return time.UnixMilli(ts).UTC()
		}
		return time.Unix(ts, 0).UTC()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
