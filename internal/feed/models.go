package feed

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/liamashdown/launchwatch/internal/token"
)

// Launch is one entry of the discovery feed
type Launch struct {
	Chain     string `json:"chain"`
	Address   string `json:"address"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	CreatedAt int64  `json:"created_at"` // unix seconds
}

type launchesEnvelope struct {
	Launches []Launch `json:"launches"`
}

// decodeLaunches accepts either a bare array or {"launches": [...]}
func decodeLaunches(body []byte) ([]Launch, error) {
	var launches []Launch
	if err := json.Unmarshal(body, &launches); err == nil {
		return sortLaunches(launches), nil
	}

	var env launchesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return sortLaunches(env.Launches), nil
}

func sortLaunches(in []Launch) []Launch {
	sort.SliceStable(in, func(i, j int) bool { return in[i].CreatedAt < in[j].CreatedAt })
	return in
}

// event converts a launch to a discovery event. Entries without an address
// or belonging to another chain are skipped.
func (l Launch) event(want token.Chain) (token.DiscoveryEvent, bool) {
	if l.Address == "" {
		return token.DiscoveryEvent{}, false
	}
	chain := want
	if l.Chain != "" {
		parsed, err := token.ParseChain(l.Chain)
		if err != nil || parsed != want {
			return token.DiscoveryEvent{}, false
		}
		chain = parsed
	}

	ev := token.DiscoveryEvent{
		Chain:   chain,
		Address: l.Address,
		Name:    l.Name,
		Symbol:  l.Symbol,
	}
	if l.CreatedAt > 0 {
		ev.LaunchTime = time.Unix(l.CreatedAt, 0).UTC()
	}
	return ev, true
}
