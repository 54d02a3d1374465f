// Package wager holds the counter-offer rules for a challenge wager.
//
// Offers are clamped to the absolute max, the componentwise minimum of both
// participants' balances when the wager was first proposed. The ceiling
// follows the highest offer until the second offer, then locks: from that
// point offers may only stay level or go down.
package wager

// Side names which participant made an offer.
type Side string

const (
	SideFrom Side = "from"
	SideTo   Side = "to"
)

func (s Side) Other() Side {
	if s == SideFrom {
		return SideTo
	}
	return SideFrom
}

func (s Side) Valid() bool {
	return s == SideFrom || s == SideTo
}

type Offer struct {
	Cash int64 `json:"cash"`
	Rep  int64 `json:"rep"`
}

func (o Offer) IsZero() bool {
	return o.Cash <= 0 && o.Rep <= 0
}

type Balances struct {
	Cash int64 `json:"cash"`
	Rep  int64 `json:"rep"`
}

type Ceiling struct {
	Cash   int64 `json:"cash"`
	Rep    int64 `json:"rep"`
	Locked bool  `json:"locked"`
}

type HistoryEntry struct {
	Cash int64 `json:"cash"`
	Rep  int64 `json:"rep"`
	By   Side  `json:"by"`
	At   int64 `json:"at"`
}

type Wager struct {
	Cash        int64          `json:"cash"`
	Rep         int64          `json:"rep"`
	AbsoluteMax Balances       `json:"absoluteMax"`
	Ceiling     Ceiling        `json:"ceiling"`
	ProposedBy  Side           `json:"proposedBy"`
	Revision    int            `json:"revision"`
	History     []HistoryEntry `json:"history"`
}

// CalculateAbsoluteMax is the componentwise minimum of both balances.
// Negative balances count as zero.
func CalculateAbsoluteMax(a, b Balances) Balances {
	return Balances{
		Cash: nonNegative(min(a.Cash, b.Cash)),
		Rep:  nonNegative(min(a.Rep, b.Rep)),
	}
}

// New seeds a wager from the opening offer. at is unix milliseconds.
func New(offer Offer, absoluteMax Balances, by Side, at int64) *Wager {
	if !by.Valid() {
		by = SideFrom
	}
	absoluteMax = Balances{Cash: nonNegative(absoluteMax.Cash), Rep: nonNegative(absoluteMax.Rep)}
	cash := clamp(offer.Cash, absoluteMax.Cash)
	rep := clamp(offer.Rep, absoluteMax.Rep)
	return &Wager{
		Cash:        cash,
		Rep:         rep,
		AbsoluteMax: absoluteMax,
		Ceiling:     Ceiling{Cash: cash, Rep: rep},
		ProposedBy:  by,
		Revision:    1,
		History:     []HistoryEntry{{Cash: cash, Rep: rep, By: by, At: at}},
	}
}

// ApplyCounterOffer records offer from by and returns w. The first counter
// raises the ceiling to the running max and locks it; later counters are
// clamped to the locked ceiling. Turn order is not checked here. A nil w
// yields nil.
func ApplyCounterOffer(w *Wager, offer Offer, by Side, at int64) *Wager {
	if w == nil {
		return nil
	}
	cash := clamp(offer.Cash, w.AbsoluteMax.Cash)
	rep := clamp(offer.Rep, w.AbsoluteMax.Rep)

	if w.Ceiling.Locked {
		cash = min(cash, w.Ceiling.Cash)
		rep = min(rep, w.Ceiling.Rep)
	} else {
		w.Ceiling.Cash = max(w.Ceiling.Cash, cash)
		w.Ceiling.Rep = max(w.Ceiling.Rep, rep)
		w.Ceiling.Locked = true
	}

	w.Cash = cash
	w.Rep = rep
	w.ProposedBy = by
	if w.Revision < 1 {
		w.Revision = 1
	}
	w.Revision++
	w.History = append(w.History, HistoryEntry{Cash: cash, Rep: rep, By: by, At: at})
	return w
}

// Clone returns a deep copy so callers can mutate without touching a
// cached record.
func (w *Wager) Clone() *Wager {
	if w == nil {
		return nil
	}
	out := *w
	out.History = append([]HistoryEntry(nil), w.History...)
	return &out
}

type Details struct {
	Cash          int64          `json:"cash"`
	Rep           int64          `json:"rep"`
	Ceiling       Ceiling        `json:"ceiling"`
	AbsoluteMax   Balances       `json:"absoluteMax"`
	ProposedBy    Side           `json:"proposedBy"`
	Revision      int            `json:"revision"`
	CeilingLocked bool           `json:"ceilingLocked"`
	History       []HistoryEntry `json:"history"`
}

// DetailsOf flattens w for display. ok is false when there is no wager.
func DetailsOf(w *Wager) (Details, bool) {
	if w == nil {
		return Details{}, false
	}
	history := append([]HistoryEntry{}, w.History...)
	return Details{
		Cash:          w.Cash,
		Rep:           w.Rep,
		Ceiling:       w.Ceiling,
		AbsoluteMax:   w.AbsoluteMax,
		ProposedBy:    w.ProposedBy,
		Revision:      w.Revision,
		CeilingLocked: w.Ceiling.Locked,
		History:       history,
	}, true
}

func clamp(v, limit int64) int64 {
	return min(nonNegative(v), nonNegative(limit))
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
