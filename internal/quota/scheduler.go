package quota

import (
	"fmt"
	"sync"
	"time"

	"github.com/liamashdown/launchwatch/internal/token"
)

// ThresholdClosed is reported when the hour's budget is spent. No score
// can reach it.
const ThresholdClosed = 101.0

// DayLayout formats the scheduler's local calendar day
const DayLayout = "2006-01-02"

// Reason explains an admission decision
type Reason string

const (
	ReasonAdmitted       Reason = "admitted"
	ReasonHourExhausted  Reason = "hour_quota_exhausted"
	ReasonBelowThreshold Reason = "below_threshold"
)

// Decision is the outcome of one admission request
type Decision struct {
	Accepted     bool
	Threshold    float64
	Reason       Reason
	ChainPenalty bool // the chain's hourly share was already used up
	Day          string
	Hour         int
}

// QuotaLimited reports whether the rejection came from spent budget rather
// than from the score alone. Such candidates are held, not dropped.
func (d Decision) QuotaLimited() bool {
	if d.Accepted {
		return false
	}
	return d.Reason == ReasonHourExhausted || d.ChainPenalty
}

// Slot identifies one consumed unit of budget, used to restore counters
type Slot struct {
	Chain token.Chain
	Hour  int
}

// Scheduler turns the daily target into per-request admission decisions.
// All counters are guarded by mu.
type Scheduler struct {
	mu sync.Mutex

	cfg   Config
	plan  [HoursPerDay]int
	quota [HoursPerDay]map[token.Chain]int

	day        string
	hourlySent [HoursPerDay]int
	chainSent  [HoursPerDay]map[token.Chain]int
	totalSent  int
}

// New validates cfg and builds a scheduler with an empty day
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quota config: %w", err)
	}

	split := make(map[token.Chain]float64, len(cfg.ChainSplit))
	for k, v := range cfg.ChainSplit {
		split[k] = v
	}
	cfg.ChainSplit = split

	s := &Scheduler{cfg: cfg, plan: BuildPlan(cfg)}
	for h := 0; h < HoursPerDay; h++ {
		s.quota[h] = make(map[token.Chain]int, len(split))
		for chain, pct := range split {
			s.quota[h][chain] = ChainHourQuota(s.plan[h], pct)
		}
	}
	s.resetCounters("")
	return s, nil
}

// Plan returns the hourly budgets
func (s *Scheduler) Plan() [HoursPerDay]int {
	return s.plan
}

// DailyTarget returns the configured daily target
func (s *Scheduler) DailyTarget() int {
	return s.cfg.DailyTarget
}

// Location returns the time zone the day boundaries are computed in
func (s *Scheduler) Location() *time.Location {
	return s.cfg.Location
}

// DayOf returns the scheduler day key of t
func (s *Scheduler) DayOf(t time.Time) string {
	return t.In(s.cfg.Location).Format(DayLayout)
}

// Day returns the active day, empty before the first admission
func (s *Scheduler) Day() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day
}

func (s *Scheduler) resetCounters(day string) {
	s.day = day
	s.totalSent = 0
	for h := 0; h < HoursPerDay; h++ {
		s.hourlySent[h] = 0
		s.chainSent[h] = make(map[token.Chain]int)
	}
}

// Rollover clears all counters when now falls on a new local day.
// It returns true when a new day was started.
func (s *Scheduler) Rollover(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rolloverLocked(now)
}

func (s *Scheduler) rolloverLocked(now time.Time) bool {
	day := s.DayOf(now)
	if day == s.day {
		return false
	}
	s.resetCounters(day)
	return true
}

// Admit decides whether a candidate from chain with score may be sent now.
// Accepted decisions consume budget before returning.
func (s *Scheduler) Admit(chain token.Chain, score float64, now time.Time) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rolloverLocked(now)

	local := now.In(s.cfg.Location)
	hour := local.Hour()
	d := Decision{Day: s.day, Hour: hour}

	budget := s.plan[hour]
	if s.hourlySent[hour] >= budget {
		d.Threshold = ThresholdClosed
		d.Reason = ReasonHourExhausted
		return d
	}

	remaining := budget - s.hourlySent[hour]
	minutesLeft := 60 - local.Minute()
	if minutesLeft < 1 {
		minutesLeft = 1
	}
	urgency := float64(remaining) / float64(minutesLeft)

	threshold := s.cfg.RelaxedThreshold
	for _, band := range s.cfg.Urgency {
		if urgency > band.Above {
			threshold = band.Threshold
			break
		}
	}

	if s.chainSent[hour][chain] >= s.quota[hour][chain] {
		threshold += s.cfg.ChainPenalty
		d.ChainPenalty = true
	}
	d.Threshold = threshold

	if score < threshold {
		d.Reason = ReasonBelowThreshold
		return d
	}

	s.hourlySent[hour]++
	s.chainSent[hour][chain]++
	s.totalSent++
	d.Accepted = true
	d.Reason = ReasonAdmitted
	return d
}

// Release returns a slot consumed by an admitted candidate that could not
// be delivered. Slots of a previous day are ignored.
func (s *Scheduler) Release(chain token.Chain, day string, hour int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if day != s.day || hour < 0 || hour >= HoursPerDay {
		return
	}
	if s.hourlySent[hour] > 0 {
		s.hourlySent[hour]--
		s.totalSent--
	}
	if s.chainSent[hour][chain] > 0 {
		s.chainSent[hour][chain]--
	}
}

// Restore rebuilds the counters of day from persisted slots. Counters of
// any other day are discarded.
func (s *Scheduler) Restore(day string, slots []Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetCounters(day)
	for _, slot := range slots {
		if slot.Hour < 0 || slot.Hour >= HoursPerDay {
			continue
		}
		s.hourlySent[slot.Hour]++
		s.chainSent[slot.Hour][slot.Chain]++
		s.totalSent++
	}
}

// HourStatus is one row of the hourly breakdown
type HourStatus struct {
	Hour  int `json:"hour"`
	Sent  int `json:"sent"`
	Quota int `json:"quota"`
}

// ChainStatus compares a chain's sends with its daily expectation
type ChainStatus struct {
	Sent     int `json:"sent"`
	Expected int `json:"expected"`
}

// Status is a point-in-time view of the scheduler
type Status struct {
	Day            string                      `json:"day"`
	DailyTarget    int                         `json:"daily_target"`
	TotalSentToday int                         `json:"total_sent_today"`
	CurrentHour    int                         `json:"current_hour"`
	PerHour        []HourStatus                `json:"per_hour"`
	PerChain       map[token.Chain]ChainStatus `json:"per_chain"`
}

// Snapshot reports the counters as of now. It never rolls the day over:
// when the active day is stale the counters of now's day are reported as
// zero and left for the consumer to clear.
func (s *Scheduler) Snapshot(now time.Time) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.DayOf(now)
	return s.statusLocked(day, now.In(s.cfg.Location).Hour(), day == s.day)
}

// ActiveStatus reports the counters of the active day, whatever the clock
// says. It is read just before a rollover to summarise the closing day.
func (s *Scheduler) ActiveStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(s.day, HoursPerDay-1, true)
}

func (s *Scheduler) statusLocked(day string, hour int, live bool) Status {
	st := Status{
		Day:         day,
		DailyTarget: s.cfg.DailyTarget,
		CurrentHour: hour,
		PerHour:     make([]HourStatus, HoursPerDay),
		PerChain:    make(map[token.Chain]ChainStatus, len(s.cfg.ChainSplit)),
	}
	if live {
		st.TotalSentToday = s.totalSent
	}

	sentByChain := make(map[token.Chain]int)
	for h := 0; h < HoursPerDay; h++ {
		st.PerHour[h] = HourStatus{Hour: h, Quota: s.plan[h]}
		if !live {
			continue
		}
		st.PerHour[h].Sent = s.hourlySent[h]
		for chain, n := range s.chainSent[h] {
			sentByChain[chain] += n
		}
	}
	for chain, expected := range ChainExpected(s.cfg.DailyTarget, s.cfg.ChainSplit) {
		st.PerChain[chain] = ChainStatus{Sent: sentByChain[chain], Expected: expected}
	}
	for chain, n := range sentByChain {
		if _, ok := st.PerChain[chain]; !ok {
			st.PerChain[chain] = ChainStatus{Sent: n}
		}
	}
	return st
}
