package executor

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evdnx/gosig/logger"
	"github.com/evdnx/gosig/metrics"
	"github.com/evdnx/gosig/types"
)

var ErrInvalidOrder = errors.New("order needs a book and a symbol")

// qtyEpsilon absorbs float residue when a book is brought back to flat.
const qtyEpsilon = 1e-12

type bookKey struct {
	book   string
	symbol string
}

// holding is the open position of one book on one symbol, plus the running
// totals of the trade it belongs to.
type holding struct {
	qty    float64 // positive = long, negative = short
	avg    float64
	side   types.Side
	opened time.Time
	peak   float64
	gross  float64
	comm   float64
}

type notice struct {
	book  string
	order *OrderEvent
	trade *TradeEvent
}

// PaperBroker simulates a cash account with market orders filled at the
// open of the bar after submission, a proportional commission and no
// slippage. All books share one cash balance.
type PaperBroker struct {
	mu         sync.Mutex
	cash       float64
	commission float64
	books      map[bookKey]*holding
	queue      []types.Order
	marks      map[string]float64
	listeners  map[string][]Listener
	trades     []TradeEvent
	log        logger.Logger
}

func NewPaperBroker(cash, commission float64, log logger.Logger) *PaperBroker {
	if log == nil {
		log = logger.Nop()
	}
	return &PaperBroker{
		cash:       cash,
		commission: commission,
		books:      make(map[bookKey]*holding),
		marks:      make(map[string]float64),
		listeners:  make(map[string][]Listener),
		log:        log,
	}
}

func (p *PaperBroker) Subscribe(book string, l Listener) {
	p.mu.Lock()
	p.listeners[book] = append(p.listeners[book], l)
	p.mu.Unlock()
}

// Submit queues a market order. Validation of the quantity happens at the
// next bar so that the rejection reaches the listener like any other status.
func (p *PaperBroker) Submit(o types.Order) (string, error) {
	if o.Strategy == "" || o.Symbol == "" {
		return "", ErrInvalidOrder
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	p.mu.Lock()
	p.queue = append(p.queue, o)
	p.mu.Unlock()
	return o.ID, nil
}

// Cancel withdraws an order that has not been filled yet.
func (p *PaperBroker) Cancel(id string) error {
	p.mu.Lock()
	idx := -1
	for i, o := range p.queue {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return ErrUnknownOrder
	}
	o := p.queue[idx]
	p.queue = append(p.queue[:idx], p.queue[idx+1:]...)
	p.mu.Unlock()

	p.dispatch([]notice{{book: o.Strategy, order: &OrderEvent{Order: o, Status: types.OrderCanceled}}})
	return nil
}

// OnBar processes every queued order for symbol against bar, then marks the
// symbol at the bar's close. Notifications are delivered after the broker
// state is updated and without holding the lock, so listeners may query it.
func (p *PaperBroker) OnBar(symbol string, bar types.Bar) {
	p.mu.Lock()
	var out []notice
	keep := p.queue[:0]
	for _, o := range p.queue {
		if o.Symbol != symbol {
			keep = append(keep, o)
			continue
		}
		out = append(out, orderNotice(o, types.OrderSubmitted, bar.Time))
		if o.Qty <= 0 || (o.Side != types.Buy && o.Side != types.Sell) {
			out = append(out, orderNotice(o, types.OrderRejected, bar.Time))
			continue
		}
		out = append(out, orderNotice(o, types.OrderAccepted, bar.Time))
		out = append(out, p.fill(o, bar)...)
	}
	p.queue = keep
	p.marks[symbol] = bar.Close
	value := p.valueLocked()
	p.mu.Unlock()

	metrics.EquityGauge.Set(value)
	p.dispatch(out)
}

// fill executes o at bar.Open. Caller holds p.mu.
func (p *PaperBroker) fill(o types.Order, bar types.Bar) []notice {
	price := bar.Open
	value := price * o.Qty
	comm := value * p.commission

	signed := o.Qty
	if o.Side == types.Buy {
		if value+comm > p.cash {
			return []notice{orderNotice(o, types.OrderMargin, bar.Time)}
		}
		p.cash -= value + comm
	} else {
		signed = -o.Qty
		p.cash += value - comm
	}

	k := bookKey{book: o.Strategy, symbol: o.Symbol}
	h := p.books[k]
	if h == nil {
		h = &holding{}
		p.books[k] = h
	}
	closed := h.apply(signed, price, comm, bar.Time, o.Side)

	p.log.Info("order_filled",
		logger.String("book", o.Strategy),
		logger.String("symbol", o.Symbol),
		logger.String("side", string(o.Side)),
		logger.Float64("qty", o.Qty),
		logger.Float64("price", price),
		logger.Float64("cash", p.cash),
	)

	out := []notice{{book: o.Strategy, order: &OrderEvent{
		Order:      o,
		Status:     types.OrderCompleted,
		Time:       bar.Time,
		ExecPrice:  price,
		ExecValue:  value,
		Commission: comm,
	}}}
	if closed != nil {
		closed.Book, closed.Symbol = o.Strategy, o.Symbol
		p.trades = append(p.trades, *closed)
		out = append(out, notice{book: o.Strategy, trade: closed})
	}
	return out
}

// apply books a fill of signed quantity. It returns the closed trade when
// the holding goes back to flat; a fill that flips the position closes the
// old trade and opens a new one with the remainder.
func (h *holding) apply(signed, price, comm float64, at time.Time, side types.Side) *TradeEvent {
	size := math.Abs(signed)
	if h.qty == 0 {
		h.open(signed, price, comm, at, side)
		return nil
	}
	if (h.qty > 0) == (signed > 0) {
		held := math.Abs(h.qty)
		h.avg = (h.avg*held + price*size) / (held + size)
		h.qty += signed
		h.comm += comm
		h.peak = math.Max(h.peak, math.Abs(h.qty))
		return nil
	}

	closing := math.Min(size, math.Abs(h.qty))
	dir := 1.0
	if h.qty < 0 {
		dir = -1
	}
	closeComm := comm * closing / size
	h.gross += (price - h.avg) * closing * dir
	h.comm += closeComm
	h.qty -= dir * closing
	if math.Abs(h.qty) > qtyEpsilon {
		return nil
	}

	tr := &TradeEvent{
		Side:       h.side,
		Qty:        h.peak,
		EntryPrice: h.avg,
		ExitPrice:  price,
		Opened:     h.opened,
		Closed:     at,
		Gross:      h.gross,
		Net:        h.gross - h.comm,
	}
	*h = holding{}
	if rest := size - closing; rest > qtyEpsilon {
		h.open(math.Copysign(rest, signed), price, comm-closeComm, at, side)
	}
	return tr
}

func (h *holding) open(signed, price, comm float64, at time.Time, side types.Side) {
	*h = holding{
		qty:    signed,
		avg:    price,
		side:   side,
		opened: at,
		peak:   math.Abs(signed),
		comm:   comm,
	}
}

func orderNotice(o types.Order, st types.OrderStatus, at time.Time) notice {
	return notice{book: o.Strategy, order: &OrderEvent{Order: o, Status: st, Time: at}}
}

func (p *PaperBroker) dispatch(out []notice) {
	for _, n := range out {
		p.mu.Lock()
		ls := append([]Listener(nil), p.listeners[n.book]...)
		p.mu.Unlock()
		for _, l := range ls {
			if n.order != nil {
				l.OnOrder(*n.order)
			}
			if n.trade != nil {
				l.OnTrade(*n.trade)
			}
		}
	}
}

func (p *PaperBroker) Position(book, symbol string) (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.books[bookKey{book: book, symbol: symbol}]
	if h == nil {
		return 0, 0
	}
	return h.qty, h.avg
}

func (p *PaperBroker) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

// Value is cash plus every open holding marked at its symbol's last close.
func (p *PaperBroker) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueLocked()
}

func (p *PaperBroker) valueLocked() float64 {
	v := p.cash
	for k, h := range p.books {
		mark, ok := p.marks[k.symbol]
		if !ok {
			mark = h.avg
		}
		v += h.qty * mark
	}
	return v
}

// Trades returns every closed trade so far, oldest first.
func (p *PaperBroker) Trades() []TradeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TradeEvent, len(p.trades))
	copy(out, p.trades)
	return out
}

// Pending reports how many orders wait for their next bar.
func (p *PaperBroker) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
