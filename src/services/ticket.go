package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"depotbook/src/models"
	"depotbook/src/utils"

	"github.com/shopspring/decimal"
)

type TicketKind int

const (
	TicketInvalid TicketKind = iota
	TicketTrade
	TicketCashflow
)

func (k TicketKind) String() string {
	switch k {
	case TicketTrade:
		return "trade"
	case TicketCashflow:
		return "cashflow"
	default:
		return "invalid"
	}
}

type DepotRef struct {
	Broker     string `json:"broker"`
	ExternalID string `json:"external_id"`
}

// TradeLeg is the trade part of a ticket. Qty is negative for sells.
type TradeLeg struct {
	Qty      *decimal.Decimal `json:"qty"`
	Price    *decimal.Decimal `json:"prc"`
	Currency string           `json:"ccy"`
}

type PaymentEntry struct {
	Type     models.PaymentType `json:"type"`
	Amount   *decimal.Decimal   `json:"amount"`
	Currency string             `json:"ccy"`
}

type CashflowEntry struct {
	Type     models.CashflowType `json:"type"`
	Amount   *decimal.Decimal    `json:"amount"`
	Currency string              `json:"ccy"`
}

// Ticket is an inbound booking request. It carries either a trade (with
// optional extra payments) or a list of cashflows, never both.
type Ticket struct {
	Valuedate string          `json:"valuedate"`
	Depot     *DepotRef       `json:"depot"`
	ISIN      string          `json:"isin,omitempty"`
	Trade     *TradeLeg       `json:"trade,omitempty"`
	Payment   []PaymentEntry  `json:"payment,omitempty"`
	Cashflow  []CashflowEntry `json:"cashflow,omitempty"`
}

// ParseTicket decodes a JSON ticket. Unknown fields are rejected.
func ParseTicket(data []byte) (*Ticket, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var t Ticket
	if err := dec.Decode(&t); err != nil {
		return nil, utils.ValidationError("malformed ticket: %v", err)
	}
	return &t, nil
}

// Classify decides whether t is a trade or a cashflow ticket. Membership in
// each kind is checked on its own and exactly one has to hold.
func (t *Ticket) Classify() (TicketKind, error) {
	if reasons := t.commonReasons(); len(reasons) > 0 {
		return TicketInvalid, utils.ValidationError("invalid ticket: %s", strings.Join(reasons, "; "))
	}

	tradeReasons := t.tradeReasons()
	cashflowReasons := t.cashflowReasons()
	isTrade, isCashflow := len(tradeReasons) == 0, len(cashflowReasons) == 0

	switch {
	case isTrade && isCashflow, t.Trade != nil && t.Cashflow != nil:
		return TicketInvalid, utils.ValidationError("ambiguous ticket: carries both trade and cashflow")
	case isTrade:
		return TicketTrade, nil
	case isCashflow:
		return TicketCashflow, nil
	default:
		return TicketInvalid, utils.ValidationError(
			"ticket is neither a trade (%s) nor a cashflow (%s)",
			strings.Join(tradeReasons, "; "), strings.Join(cashflowReasons, "; "))
	}
}

// ValueDate returns the parsed valuedate. Call it after Classify.
func (t *Ticket) ValueDate() time.Time {
	date, _ := utils.ParseDate(t.Valuedate)
	return date
}

func (t *Ticket) commonReasons() []string {
	var reasons []string
	if t.Valuedate == "" {
		reasons = append(reasons, "valuedate is required")
	} else if _, err := utils.ParseDate(t.Valuedate); err != nil {
		reasons = append(reasons, err.Error())
	}
	if t.Depot == nil || t.Depot.Broker == "" {
		reasons = append(reasons, "depot.broker is required")
	}
	if t.Depot == nil || t.Depot.ExternalID == "" {
		reasons = append(reasons, "depot.external_id is required")
	}
	return reasons
}

func (t *Ticket) tradeReasons() []string {
	var reasons []string
	if t.Trade == nil {
		reasons = append(reasons, "trade is missing")
	} else {
		if t.Trade.Qty == nil {
			reasons = append(reasons, "trade.qty is required")
		}
		if t.Trade.Price == nil {
			reasons = append(reasons, "trade.prc is required")
		}
		if t.Trade.Currency == "" {
			reasons = append(reasons, "trade.ccy is required")
		}
	}
	if t.ISIN == "" {
		reasons = append(reasons, "isin is required")
	}
	for i, p := range t.Payment {
		if !p.Type.Valid() {
			reasons = append(reasons, fmt.Sprintf("payment[%d].type %q is invalid", i, p.Type))
		}
		if p.Amount == nil {
			reasons = append(reasons, fmt.Sprintf("payment[%d].amount is required", i))
		}
		if p.Currency == "" {
			reasons = append(reasons, fmt.Sprintf("payment[%d].ccy is required", i))
		}
	}
	if t.Cashflow != nil {
		reasons = append(reasons, "cashflow must be absent")
	}
	return reasons
}

func (t *Ticket) cashflowReasons() []string {
	var reasons []string
	if len(t.Cashflow) == 0 {
		reasons = append(reasons, "cashflow is missing")
	}
	dividend := false
	for i, c := range t.Cashflow {
		if !c.Type.Valid() {
			reasons = append(reasons, fmt.Sprintf("cashflow[%d].type %q is invalid", i, c.Type))
		}
		if c.Type == models.CashflowDividend {
			dividend = true
		}
		if c.Amount == nil {
			reasons = append(reasons, fmt.Sprintf("cashflow[%d].amount is required", i))
		}
		if c.Currency == "" {
			reasons = append(reasons, fmt.Sprintf("cashflow[%d].ccy is required", i))
		}
	}
	if dividend && t.ISIN == "" {
		reasons = append(reasons, "isin is required for dividends")
	}
	if t.Trade != nil {
		reasons = append(reasons, "trade must be absent")
	}
	if t.Payment != nil {
		reasons = append(reasons, "payment must be absent")
	}
	return reasons
}
