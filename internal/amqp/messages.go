package amqp

import (
	"encoding/json"
	"time"
)

// BudgetAccumulateMessage carries one debit's contribution to the month's
// budget aggregate. The worker applies it asynchronously so a slow or flaky
// budget store never delays ledger writes.
type BudgetAccumulateMessage struct {
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewBudgetAccumulateMessage(year int, month time.Month, category string, amountCents int64) *BudgetAccumulateMessage {
	return &BudgetAccumulateMessage{
		Year:        year,
		Month:       int(month),
		Category:    category,
		AmountCents: amountCents,
		Timestamp:   time.Now(),
	}
}

func (m *BudgetAccumulateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAccumulateMessageFromJSON(data []byte) (*BudgetAccumulateMessage, error) {
	var msg BudgetAccumulateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
