package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"nebenkosten/internal/apportion"
	"nebenkosten/internal/core"
	"nebenkosten/internal/history"
)

// MessageType tags every calculation event on the wire.
const MessageType = "calculation.recorded"

// CalculationRecordedMessage announces a calculation that was added to the
// history. It carries the computed shares so consumers never need access to
// the history store.
type CalculationRecordedMessage struct {
	Type      string         `json:"type"`
	EntryID   string         `json:"entry_id"`
	Timestamp time.Time      `json:"timestamp"`
	Year      int            `json:"year"`
	Tenants   []TenantShares `json:"tenants"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// TenantShares is one tenant's amounts in euros, rounded to cents.
type TenantShares struct {
	Tenant      int             `json:"tenant"`
	Start       string          `json:"start"`
	End         string          `json:"end"`
	Days        int             `json:"days"`
	PropertyTax decimal.Decimal `json:"property_tax"`
	SharedCosts decimal.Decimal `json:"shared_costs"`
	Heating     decimal.Decimal `json:"heating"`
	Basis       string          `json:"basis"`
}

// NewCalculationRecordedMessage builds the event for a recorded entry and its result.
func NewCalculationRecordedMessage(e history.Entry, res apportion.Result) *CalculationRecordedMessage {
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	msg := &CalculationRecordedMessage{
		Type:      MessageType,
		EntryID:   e.ID,
		Timestamp: ts,
		Year:      res.Year,
	}
	for _, t := range res.Tenants {
		msg.Tenants = append(msg.Tenants, TenantShares{
			Tenant:      t.Tenant,
			Start:       t.Period.Start.ISO(),
			End:         t.Period.End.ISO(),
			Days:        t.Days,
			PropertyTax: euros(t.PropertyTax),
			SharedCosts: euros(t.SharedCosts),
			Heating:     euros(t.Heating),
			Basis:       t.Basis.Note(),
		})
	}
	for _, w := range res.Warnings {
		msg.Warnings = append(msg.Warnings, string(w.Code))
	}
	return msg
}

func euros(v float64) decimal.Decimal {
	return core.RoundShare(v)
}

func (m *CalculationRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CalculationRecordedMessageFromJSON decodes a message and rejects foreign
// message types and entries without an ID.
func CalculationRecordedMessageFromJSON(data []byte) (*CalculationRecordedMessage, error) {
	var msg CalculationRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != MessageType {
		return nil, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	if msg.EntryID == "" {
		return nil, fmt.Errorf("message has no entry id")
	}
	return &msg, nil
}
