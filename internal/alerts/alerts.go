package alerts

import (
	"context"
	"sort"
	"time"
)

// Component is one category score shown in an alert
type Component struct {
	Name  string
	Score float64
}

// AlertPayload contains all information for an alert
type AlertPayload struct {
	AlertID      string
	TokenID      string
	Chain        string
	Address      string
	AddressShort string // Shortened for display
	Name         string
	Symbol       string
	Score        float64
	Components   []Component
	Confidence   float64
	Level        string
	Risk         string
	Timeframe    string
	WeakPoints   []string
	StrongPoints []string
	Tier         string
	Action       string
	ActionText   string
	Threshold    float64
	LaunchTime   time.Time
	Timestamp    time.Time
	Environment  string
}

// Sender defines the interface for alert senders
type Sender interface {
	Send(ctx context.Context, payload *AlertPayload) error
}

// SortedComponents orders a component map by descending score, ties by name
func SortedComponents(in map[string]float64) []Component {
	out := make([]Component, 0, len(in))
	for name, score := range in {
		out = append(out, Component{Name: name, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ShortAddress abbreviates an address as 0x1234…cdef
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func displayName(p *AlertPayload) string {
	switch {
	case p.Name != "" && p.Symbol != "":
		return p.Name + " ($" + p.Symbol + ")"
	case p.Symbol != "":
		return "$" + p.Symbol
	case p.Name != "":
		return p.Name
	default:
		return p.AddressShort
	}
}
