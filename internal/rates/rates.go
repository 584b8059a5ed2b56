package rates

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Source looks up the number of units of the fiat side per one unit of the
// crypto side for a currency pair.
type Source interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
	Table(ctx context.Context) (map[string]decimal.Decimal, error)
}

// StaticTable serves a fixed rate table. Pairs missing from the table quote at 1.
type StaticTable struct {
	rates map[string]map[string]decimal.Decimal
}

// NewStaticTable returns the demo rate table.
func NewStaticTable() *StaticTable {
	fiat := map[string]int64{"KES": 146, "UGX": 3700, "TZS": 2500, "SOS": 570}
	table := map[string]map[string]decimal.Decimal{}
	for _, crypto := range []string{"USDT", "USDC"} {
		table[crypto] = map[string]decimal.Decimal{}
		for currency, rate := range fiat {
			r := decimal.NewFromInt(rate)
			table[crypto][currency] = r
			if table[currency] == nil {
				table[currency] = map[string]decimal.Decimal{}
			}
			table[currency][crypto] = r
		}
	}
	return &StaticTable{rates: table}
}

// NewStaticTableFrom serves a caller-provided table keyed by from then to.
func NewStaticTableFrom(rates map[string]map[string]decimal.Decimal) *StaticTable {
	return &StaticTable{rates: rates}
}

// Rate returns the rate for the pair, or 1 when the pair is unknown.
func (t *StaticTable) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	if r, ok := t.rates[strings.ToUpper(from)][strings.ToUpper(to)]; ok {
		return r, nil
	}
	return decimal.NewFromInt(1), nil
}

// Table flattens the rates into "FROM/TO" keys.
func (t *StaticTable) Table(context.Context) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for from, row := range t.rates {
		for to, r := range row {
			out[from+"/"+to] = r
		}
	}
	return out, nil
}
