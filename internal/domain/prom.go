package domain

import "time"

// PromRange is the evaluation window for a PromQL range query.
type PromRange struct {
	Start int64 // unix seconds
	End   int64 // unix seconds
	Step  string
}

// Info renders the range for a log entry.
func (r PromRange) Info(query string) *PromInfo {
	return &PromInfo{
		Start: time.Unix(r.Start, 0).Format(PromTimeFormat),
		End:   time.Unix(r.End, 0).Format(PromTimeFormat),
		Step:  r.Step,
		Query: query,
	}
}

// PromForm is the user-editable time-range form.
type PromForm struct {
	Start      int64
	End        int64
	Step       string
	IsRelative bool
	// Time is the relative window in minutes.
	Time int
}

// DefaultRelativeMinutes is the window used when a relative form has no time.
const DefaultRelativeMinutes = 5

// DefaultPromForm returns the initial form: relative, last five minutes.
func DefaultPromForm() PromForm {
	return PromForm{IsRelative: true, Time: DefaultRelativeMinutes}
}

// Normalize switches a zero-length relative window to absolute mode and
// restores the default window length.
func (f PromForm) Normalize() PromForm {
	if f.Time == 0 {
		f.IsRelative = false
		f.Time = DefaultRelativeMinutes
	}
	return f
}

// Resolve turns the form into a concrete range relative to now.
func (f PromForm) Resolve(now time.Time) PromRange {
	if f.IsRelative {
		end := now.Unix()
		return PromRange{
			Start: end - int64(f.Time)*60,
			End:   end,
			Step:  f.Step,
		}
	}
	return PromRange{Start: f.Start, End: f.End, Step: f.Step}
}
