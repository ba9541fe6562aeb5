// Package localize maps TWSE column labels onto the stable internal vocabulary.
package localize

import "github.com/guttosm/twpulse/internal/domain/models"

// t86Columns is the T86 report with the dealer self/hedge breakdown. The older
// report layout without that breakdown is not supported.
var t86Columns = map[string]string{
	"證券代號": "code",
	"證券名稱": "name",
	"外資及陸資(不含外資自營商)買進股數":  "foreign_buy",
	"外資及陸資(不含外資自營商)賣出股數":  "foreign_sell",
	"外資及陸資(不含外資自營商)買賣超股數": "foreign_net",
	"外資自營商買進股數":           "foreign_dealer_buy",
	"外資自營商賣出股數":           "foreign_dealer_sell",
	"外資自營商買賣超股數":          "foreign_dealer_net",
	"投信買進股數":              "it_buy",
	"投信賣出股數":              "it_sell",
	"投信買賣超股數":             "it_net",
	"自營商買賣超股數":            "dealer_net",
	"自營商買進股數(自行買賣)":       "dealer_self_buy",
	"自營商賣出股數(自行買賣)":       "dealer_self_sell",
	"自營商買賣超股數(自行買賣)":      "dealer_self_net",
	"自營商買進股數(避險)":         "dealer_hedge_buy",
	"自營商賣出股數(避險)":         "dealer_hedge_sell",
	"自營商買賣超股數(避險)":        "dealer_hedge_net",
	"三大法人買賣超股數":           "three_investors_net",
}

var bfi82uColumns = map[string]string{
	"單位名稱": "unit",
	"買進金額": "buy_value",
	"賣出金額": "sell_value",
	"買賣差額": "net_value",
}

var twtb4uColumns = map[string]string{
	"證券代號": "code",
	"證券名稱": "name",
	"暫停現股賣出後現款買進當沖註記": "suspension_flag",
	"當日沖銷交易成交股數":      "daytrade_volume",
	"當日沖銷交易買進成交股數":    "daytrade_buy_volume",
	"當日沖銷交易賣出成交股數":    "daytrade_sell_volume",
	"當日沖銷交易買進成交金額":    "daytrade_buy_value",
	"當日沖銷交易賣出成交金額":    "daytrade_sell_value",
	"全部成交股數":          "total_volume",
	"當日沖銷比率(%)":       "daytrade_ratio_pct",
}

var numericColumns = map[models.Kind][]string{
	models.KindInstitutional: {
		"foreign_buy", "foreign_sell", "foreign_net",
		"foreign_dealer_buy", "foreign_dealer_sell", "foreign_dealer_net",
		"it_buy", "it_sell", "it_net",
		"dealer_net",
		"dealer_self_buy", "dealer_self_sell", "dealer_self_net",
		"dealer_hedge_buy", "dealer_hedge_sell", "dealer_hedge_net",
		"three_investors_net",
	},
	models.KindMarketFlows: {"buy_value", "sell_value", "net_value"},
	models.KindDaytrade: {
		"daytrade_volume", "daytrade_buy_volume", "daytrade_sell_volume",
		"daytrade_buy_value", "daytrade_sell_value", "total_volume",
	},
}

// columnMap returns the label dictionary for kind, or nil for kinds that keep
// their source header.
func columnMap(kind models.Kind) map[string]string {
	switch kind {
	case models.KindInstitutional:
		return t86Columns
	case models.KindMarketFlows:
		return bfi82uColumns
	case models.KindDaytrade:
		return twtb4uColumns
	default:
		return nil
	}
}

// NumericColumns lists the internal labels coerced to numbers for kind.
func NumericColumns(kind models.Kind) []string {
	return append([]string(nil), numericColumns[kind]...)
}

// Apply renames t's header through kind's dictionary. Labels outside the
// dictionary pass through, so applying twice is a no-op.
func Apply(kind models.Kind, t *models.Table) *models.Table {
	if t == nil {
		return nil
	}
	if m := columnMap(kind); m != nil {
		t.RenameColumns(m)
	}
	return t
}
