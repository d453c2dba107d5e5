package signals

import "time"

// Session is a UTC time-of-day window during which signals are admitted.
// Windows may wrap midnight (StartHour > EndHour).
type Session struct {
	Name      string         `yaml:"name"`
	Days      []time.Weekday `yaml:"days"`       // empty means every day
	StartHour int            `yaml:"start_hour"` // inclusive, UTC
	EndHour   int            `yaml:"end_hour"`   // exclusive, UTC
}

// Contains reports whether the timestamp falls inside this session.
func (s Session) Contains(t time.Time) bool {
	t = t.UTC()
	if len(s.Days) > 0 {
		ok := false
		for _, d := range s.Days {
			if t.Weekday() == d {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	h := t.Hour()
	if s.StartHour <= s.EndHour {
		return h >= s.StartHour && h < s.EndHour
	}
	return h >= s.StartHour || h < s.EndHour
}

// DefaultSessions covers the London and New York cash sessions on weekdays.
func DefaultSessions() []Session {
	weekdays := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
	}
	return []Session{
		{Name: "london", Days: weekdays, StartHour: 7, EndHour: 16},
		{Name: "newyork", Days: weekdays, StartHour: 12, EndHour: 21},
	}
}
