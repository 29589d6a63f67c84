package domain

import "time"

// OrderBook representa el libro de órdenes de un token.
type OrderBook struct {
	TokenID   string
	Bids      []BookEntry // ordenados mayor a menor precio
	Asks      []BookEntry // ordenados menor a mayor precio
	Timestamp time.Time
	TickSize  float64 // 0 si el CLOB no lo informa
}

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Quote reduce el book a su top of book.
func (ob OrderBook) Quote() Quote {
	q := Quote{Timestamp: ob.Timestamp, TickSize: ob.TickSize}
	if len(ob.Bids) > 0 {
		q.HasBid = true
		q.BestBid = ob.BestBid()
		q.BestBidSize = ob.Bids[0].Size
	}
	if len(ob.Asks) > 0 {
		q.HasAsk = true
		q.BestAsk = ob.BestAsk()
		q.BestAskSize = ob.Asks[0].Size
	}
	return q
}

// Quote is the best bid/ask of one outcome token. HasBid/HasAsk mark
// which sides were present in the book.
type Quote struct {
	BestBid     float64
	BestBidSize float64
	BestAsk     float64
	BestAskSize float64
	HasBid      bool
	HasAsk      bool
	TickSize    float64
	Timestamp   time.Time
}
