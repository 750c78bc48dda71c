package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reasons carried by recompute requests.
const (
	ReasonImport   = "import"
	ReasonRates    = "rates"
	ReasonManual   = "manual"
	ReasonSchedule = "schedule"
)

// RecomputeRequest asks the worker to recompute and store a report. An empty
// Month means the current month; an empty Division means general.
type RecomputeRequest struct {
	Month     string    `json:"month,omitempty"` // YYYY-MM
	Week      int       `json:"week,omitempty"`
	Division  string    `json:"division,omitempty"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecomputeRequest(month string, week int, division, reason string) *RecomputeRequest {
	return &RecomputeRequest{
		Month:     month,
		Week:      week,
		Division:  division,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecomputeRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecomputeRequestFromJSON decodes and checks a message body.
func RecomputeRequestFromJSON(data []byte) (*RecomputeRequest, error) {
	var msg RecomputeRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Month != "" {
		if _, err := time.Parse("2006-01", msg.Month); err != nil {
			return nil, fmt.Errorf("invalid month %q: %w", msg.Month, err)
		}
	}
	if msg.Week < 0 || msg.Week > 5 {
		return nil, fmt.Errorf("invalid week %d", msg.Week)
	}
	return &msg, nil
}
