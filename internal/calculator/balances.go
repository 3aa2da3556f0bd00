package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ExpenseForBalance is an expense with the minimal information needed for
// netting.
type ExpenseForBalance struct {
	ID       string
	PayerID  string
	Currency string
	Approved bool
	Splits   []SplitForBalance
}

// SplitForBalance is a participant's outstanding share of an expense.
type SplitForBalance struct {
	UserID    string
	Remaining decimal.Decimal
}

// SettlementForBalance is a recorded payment with the minimal information
// needed for netting.
type SettlementForBalance struct {
	FromUserID string // Who paid (debtor settling up)
	ToUserID   string // Who received (creditor being paid)
	Amount     decimal.Decimal
	Currency   string
	Confirmed  bool
}

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From     string // Person who owes
	To       string // Person who is owed
	Amount   decimal.Decimal
	Currency string
}

// MemberBalance summarizes one member's position in a single currency.
type MemberBalance struct {
	UserID     string
	Currency   string
	TotalOwed  decimal.Decimal // Others owe this member
	TotalOwing decimal.Decimal // This member owes others
	NetBalance decimal.Decimal // Positive = owed money, Negative = owes money
}

type edgeKey struct {
	currency string
	from     string
	to       string
}

type pairKey struct {
	currency string
	a, b     string // a < b
}

// NetDebts computes the outstanding debt graph.
//
// Algorithm:
//   - Every split of an approved expense whose user is not the payer adds its
//     remaining amount to raw[ower][payer].
//   - Each unordered pair is netted once: raw[A][B] - raw[B][A] decides the
//     single direction, equal totals cancel out.
//   - Confirmed settlements from ower to payer are subtracted; the pair is
//     emitted only if something is still owed. Overpayment is never credited
//     in the opposite direction.
//
// Amounts in different currencies are never netted against each other.
// The result is sorted by currency, then debtor, then creditor.
func NetDebts(expenses []ExpenseForBalance, settlements []SettlementForBalance) []DebtEdge {
	raw := make(map[edgeKey]decimal.Decimal)
	pairs := make(map[pairKey]bool)

	for _, e := range expenses {
		if !e.Approved {
			continue
		}
		for _, s := range e.Splits {
			if s.UserID == e.PayerID || !s.Remaining.IsPositive() {
				continue
			}
			k := edgeKey{currency: e.Currency, from: s.UserID, to: e.PayerID}
			raw[k] = raw[k].Add(s.Remaining)
			pairs[newPairKey(e.Currency, s.UserID, e.PayerID)] = true
		}
	}

	settled := make(map[edgeKey]decimal.Decimal)
	for _, s := range settlements {
		if !s.Confirmed || s.FromUserID == s.ToUserID {
			continue
		}
		k := edgeKey{currency: s.Currency, from: s.FromUserID, to: s.ToUserID}
		settled[k] = settled[k].Add(s.Amount)
	}

	keys := make([]pairKey, 0, len(pairs))
	for p := range pairs {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].currency != keys[j].currency {
			return keys[i].currency < keys[j].currency
		}
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	var edges []DebtEdge
	for _, p := range keys {
		net := raw[edgeKey{p.currency, p.a, p.b}].Sub(raw[edgeKey{p.currency, p.b, p.a}])
		if net.IsZero() {
			continue
		}
		from, to := p.a, p.b
		if net.IsNegative() {
			from, to = p.b, p.a
			net = net.Neg()
		}
		remaining := net.Sub(settled[edgeKey{p.currency, from, to}])
		if !remaining.IsPositive() {
			continue
		}
		edges = append(edges, DebtEdge{From: from, To: to, Amount: remaining, Currency: p.currency})
	}

	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Currency != edges[j].Currency {
			return edges[i].Currency < edges[j].Currency
		}
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// CalculateGroupBalances nets a group's expenses and settlements and returns
// both per-member totals and the debt matrix.
func CalculateGroupBalances(expenses []ExpenseForBalance, settlements []SettlementForBalance) ([]MemberBalance, []DebtEdge) {
	edges := NetDebts(expenses, settlements)
	return MemberBalances(edges), edges
}

// MemberBalances folds a debt graph into per-member, per-currency totals,
// sorted by currency then user.
func MemberBalances(edges []DebtEdge) []MemberBalance {
	type memberKey struct{ currency, user string }
	balances := make(map[memberKey]*MemberBalance)
	get := func(currency, user string) *MemberBalance {
		k := memberKey{currency, user}
		if b, ok := balances[k]; ok {
			return b
		}
		b := &MemberBalance{UserID: user, Currency: currency}
		balances[k] = b
		return b
	}

	for _, e := range edges {
		debtor := get(e.Currency, e.From)
		debtor.TotalOwing = debtor.TotalOwing.Add(e.Amount)
		creditor := get(e.Currency, e.To)
		creditor.TotalOwed = creditor.TotalOwed.Add(e.Amount)
	}

	out := make([]MemberBalance, 0, len(balances))
	for _, b := range balances {
		b.NetBalance = b.TotalOwed.Sub(b.TotalOwing)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Currency != out[j].Currency {
			return out[i].Currency < out[j].Currency
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func newPairKey(currency, x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{currency: currency, a: x, b: y}
}
