package period

import (
	"fmt"
	"time"
)

const (
	monthlyKey          = "periodicity.monthly"
	weeklyKey           = "periodicity.weekly"
	weeklyStartDayKey   = "periodicity.weekly.start_day"
	defaultStartWeekday = time.Monday
)

// KeyValueStore is the generic settings storage preferences are persisted in
type KeyValueStore interface {
	GetBool(key string) (value bool, found bool, err error)
	GetInt(key string) (value int, found bool, err error)
	SetBool(key string, value bool) error
	SetInt(key string, value int) error
	Delete(key string) error
}

// PreferenceStore reads and writes the periodization preference
type PreferenceStore struct {
	kv KeyValueStore
}

func NewPreferenceStore(kv KeyValueStore) *PreferenceStore {
	return &PreferenceStore{kv: kv}
}

// Load returns the stored preference, or nil if none was stored
func (s *PreferenceStore) Load() (*Preference, error) {
	monthly, _, err := s.kv.GetBool(monthlyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read monthly flag: %w", err)
	}
	if monthly {
		pref := MonthlyPreference()
		return &pref, nil
	}

	weekly, _, err := s.kv.GetBool(weeklyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read weekly flag: %w", err)
	}
	if !weekly {
		return nil, nil
	}

	start, found, err := s.kv.GetInt(weeklyStartDayKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read weekly start day: %w", err)
	}
	weekday := defaultStartWeekday
	if found && start >= 0 && start <= 6 {
		weekday = time.Weekday(start)
	}
	pref := WeeklyPreference(weekday)
	return &pref, nil
}

// Save persists pref
func (s *PreferenceStore) Save(pref Preference) error {
	switch pref.Kind {
	case Monthly:
		if err := s.kv.SetBool(monthlyKey, true); err != nil {
			return fmt.Errorf("failed to store monthly flag: %w", err)
		}
		if err := s.kv.SetBool(weeklyKey, false); err != nil {
			return fmt.Errorf("failed to store weekly flag: %w", err)
		}
	case Weekly:
		if err := s.kv.SetBool(monthlyKey, false); err != nil {
			return fmt.Errorf("failed to store monthly flag: %w", err)
		}
		if err := s.kv.SetBool(weeklyKey, true); err != nil {
			return fmt.Errorf("failed to store weekly flag: %w", err)
		}
		if err := s.kv.SetInt(weeklyStartDayKey, int(pref.StartWeekday)); err != nil {
			return fmt.Errorf("failed to store weekly start day: %w", err)
		}
	default:
		return fmt.Errorf("unknown periodization kind %d", pref.Kind)
	}
	return nil
}

// Clear removes any stored preference
func (s *PreferenceStore) Clear() error {
	for _, key := range []string{monthlyKey, weeklyKey, weeklyStartDayKey} {
		if err := s.kv.Delete(key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}
