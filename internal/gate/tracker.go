package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hoangvle/recall-cycle/internal/errs"
)

const usageVersion = "1"

// counts holds per-call-type tallies inside one window. The "total" key
// aggregates every call type and is always >= any individual entry.
type counts map[string]int

const totalKey = "total"

type usageData struct {
	Version     string                       `json:"version"`
	LastUpdated string                       `json:"last_updated"`
	Daily       map[string]map[string]counts `json:"daily_usage"`
	Hourly      map[string]map[string]counts `json:"hourly_usage"`
	Meta        usageMeta                    `json:"metadata"`
}

type usageMeta struct {
	LastResetUTC string `json:"last_reset_utc"`
}

func newUsageData(now time.Time) *usageData {
	return &usageData{
		Version: usageVersion,
		Daily:   map[string]map[string]counts{},
		Hourly:  map[string]map[string]counts{},
		Meta:    usageMeta{LastResetUTC: dateKey(now)},
	}
}

// dateKey and hourKey are always derived from UTC, regardless of the local
// timezone the cycle runs in.
func dateKey(t time.Time) string { return t.UTC().Format("2006-01-02") }
func hourKey(t time.Time) string { return t.UTC().Format("2006-01-02T15") }

// Limits bounds one call type over the tracker's windows. Zero means
// unbounded for that window.
type Limits struct {
	PerHour int
	PerDay  int
}

// Tracker persists usage counters across processes. Mutations take an
// in-process mutex plus an advisory file lock, then rewrite the file
// atomically, so concurrent runs never lose counts.
type Tracker struct {
	path     string
	lockPath string

	mu  sync.Mutex
	now func() time.Time
}

// NewTracker stores counters at path; the advisory lock lives alongside it.
func NewTracker(path string) *Tracker {
	return &Tracker{
		path:     path,
		lockPath: path + ".lock",
		now:      time.Now,
	}
}

// withFileLock runs fn while holding the cross-process advisory lock.
func (t *Tracker) withFileLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(t.lockPath), 0o755); err != nil {
		return errs.Infra("creating usage dir: %v", err)
	}
	f, err := os.OpenFile(t.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return errs.Infra("opening usage lock: %v", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return errs.Infra("locking usage file: %v", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn()
}

func (t *Tracker) load() (*usageData, error) {
	raw, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return newUsageData(t.now()), nil
	}
	if err != nil {
		return nil, errs.Infra("reading usage file: %v", err)
	}
	var data usageData
	if err := json.Unmarshal(raw, &data); err != nil {
		// A corrupt counter file must not block the run; start fresh.
		return newUsageData(t.now()), nil
	}
	if data.Daily == nil {
		data.Daily = map[string]map[string]counts{}
	}
	if data.Hourly == nil {
		data.Hourly = map[string]map[string]counts{}
	}
	return &data, nil
}

func (t *Tracker) save(data *usageData) error {
	data.Version = usageVersion
	data.LastUpdated = t.now().UTC().Format(time.RFC3339)

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errs.Infra("encoding usage file: %v", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.path), ".usage-*")
	if err != nil {
		return errs.Infra("creating usage temp file: %v", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errs.Infra("writing usage temp file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errs.Infra("closing usage temp file: %v", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		os.Remove(tmp.Name())
		return errs.Infra("replacing usage file: %v", err)
	}
	return nil
}

// rollover drops every counter when the UTC date has advanced past the last
// recorded reset. Hourly entries from the old date go with it.
func (t *Tracker) rollover(data *usageData) {
	today := dateKey(t.now())
	if data.Meta.LastResetUTC == today {
		return
	}
	data.Daily = map[string]map[string]counts{}
	data.Hourly = map[string]map[string]counts{}
	data.Meta.LastResetUTC = today
}

// update runs fn against the current counters under both locks and persists
// the result.
func (t *Tracker) update(fn func(*usageData)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.withFileLock(func() error {
		data, err := t.load()
		if err != nil {
			return err
		}
		t.rollover(data)
		fn(data)
		return t.save(data)
	})
}

// view runs fn against the current counters without persisting. Rollover is
// applied in memory so reads never see stale windows.
func (t *Tracker) view(fn func(*usageData)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.withFileLock(func() error {
		data, err := t.load()
		if err != nil {
			return err
		}
		t.rollover(data)
		fn(data)
		return nil
	})
}

func bump(window map[string]map[string]counts, key, provider, callType string) {
	if window[key] == nil {
		window[key] = map[string]counts{}
	}
	if window[key][provider] == nil {
		window[key][provider] = counts{}
	}
	window[key][provider][callType]++
	window[key][provider][totalKey]++
}

// Record notes the outcome of one upstream call. Only successful calls debit
// the budgets; failed calls leave every counter untouched.
func (t *Tracker) Record(callType, provider string, success bool) error {
	if !success {
		return nil
	}
	now := t.now()
	return t.update(func(data *usageData) {
		bump(data.Daily, dateKey(now), provider, callType)
		bump(data.Hourly, hourKey(now), provider, callType)
	})
}

func get(window map[string]map[string]counts, key, provider, callType string) int {
	if window[key] == nil || window[key][provider] == nil {
		return 0
	}
	return window[key][provider][callType]
}

// CanAcquire reports whether one more call of callType fits inside limits.
// On denial the returned reason names the exhausted window.
func (t *Tracker) CanAcquire(callType, provider string, limits Limits, providerDailyLimit int) (bool, string, error) {
	now := t.now()
	ok := true
	reason := ""
	err := t.view(func(data *usageData) {
		day := dateKey(now)
		hour := hourKey(now)

		if providerDailyLimit > 0 && get(data.Daily, day, provider, totalKey) >= providerDailyLimit {
			ok = false
			reason = fmt.Sprintf("provider %s daily limit reached (%d)", provider, providerDailyLimit)
			return
		}
		if limits.PerDay > 0 && get(data.Daily, day, provider, callType) >= limits.PerDay {
			ok = false
			reason = fmt.Sprintf("%s daily limit reached (%d)", callType, limits.PerDay)
			return
		}
		if limits.PerHour > 0 && get(data.Hourly, hour, provider, callType) >= limits.PerHour {
			ok = false
			reason = fmt.Sprintf("%s hourly limit reached (%d)", callType, limits.PerHour)
			return
		}
	})
	if err != nil {
		return false, "", err
	}
	return ok, reason, nil
}

// Snapshot summarizes today's usage for one provider.
type Snapshot struct {
	Provider  string         `json:"provider"`
	Date      string         `json:"date_utc"`
	Hour      string         `json:"hour_utc"`
	DayTotal  int            `json:"day_total"`
	HourTotal int            `json:"hour_total"`
	ByType    map[string]int `json:"by_type"`
}

// Usage returns today's counters for provider.
func (t *Tracker) Usage(provider string) (Snapshot, error) {
	now := t.now()
	snap := Snapshot{
		Provider: provider,
		Date:     dateKey(now),
		Hour:     hourKey(now),
		ByType:   map[string]int{},
	}
	err := t.view(func(data *usageData) {
		day := data.Daily[snap.Date][provider]
		for ct, n := range day {
			if ct == totalKey {
				snap.DayTotal = n
				continue
			}
			snap.ByType[ct] = n
		}
		snap.HourTotal = get(data.Hourly, snap.Hour, provider, totalKey)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
