package model

import "time"

// Period is the wall-clock window of one stage.
// Start/End are zero when the case has no meta.start.
type Period struct {
	Index int
	Start time.Time
	End   time.Time
}

func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Periods lays the stages out back to back from Meta.Start.
func (m Meta) Periods() []Period {
	out := make([]Period, m.Horizon)
	step := time.Duration(m.PeriodHours * float64(time.Hour))
	for t := range out {
		out[t] = Period{Index: t}
		if m.Start.IsZero() {
			continue
		}
		out[t].Start = m.Start.Add(time.Duration(t) * step)
		out[t].End = out[t].Start.Add(step)
	}
	return out
}
