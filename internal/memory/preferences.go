package memory

import (
	"sort"
	"sync"
	"time"

	"parley/internal/logging"
	"parley/internal/types"
)

// UserPreferences learns user preferences from repeated observations.
// Confidence is observations/promotionThreshold capped at 1.0, so it is
// monotonically non-decreasing under consistent observations and a
// preference becomes active exactly at the threshold.
type UserPreferences struct {
	mu        sync.RWMutex
	threshold int
	prefs     map[string]*types.Preference // key: category + "/" + key
}

// NewUserPreferences creates a preference learner with the given promotion
// threshold.
func NewUserPreferences(promotionThreshold int) *UserPreferences {
	if promotionThreshold <= 0 {
		promotionThreshold = 3
	}
	return &UserPreferences{
		threshold: promotionThreshold,
		prefs:     make(map[string]*types.Preference),
	}
}

// Learn records one observation of (category, key) = value. A consistent
// observation increments the counter; a conflicting value restarts the
// count at one for the new value.
func (u *UserPreferences) Learn(category, key, value string) types.Preference {
	u.mu.Lock()
	defer u.mu.Unlock()

	mapKey := category + "/" + key
	pref, ok := u.prefs[mapKey]
	if !ok || pref.Value != value {
		if ok {
			logging.Memory("Preference %s changed value %q -> %q, restarting observations", mapKey, pref.Value, value)
		}
		pref = &types.Preference{
			Category: category,
			Key:      key,
			Value:    value,
		}
		u.prefs[mapKey] = pref
	}

	pref.Observations++
	pref.Confidence = float64(pref.Observations) / float64(u.threshold)
	if pref.Confidence > 1 {
		pref.Confidence = 1
	}
	pref.LastObserved = time.Now()

	logging.MemoryDebug("Preference %s=%q: observations=%d confidence=%.2f active=%v",
		mapKey, value, pref.Observations, pref.Confidence, pref.Active())

	return *pref
}

// Get returns the preference for (category, key), if observed.
func (u *UserPreferences) Get(category, key string) (types.Preference, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	pref, ok := u.prefs[category+"/"+key]
	if !ok {
		return types.Preference{}, false
	}
	return *pref, true
}

// Active returns all promoted preferences, sorted by category then key for
// stable output.
func (u *UserPreferences) Active() []types.Preference {
	u.mu.RLock()
	defer u.mu.RUnlock()

	var active []types.Preference
	for _, pref := range u.prefs {
		if pref.Active() {
			active = append(active, *pref)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Category != active[j].Category {
			return active[i].Category < active[j].Category
		}
		return active[i].Key < active[j].Key
	})
	return active
}

// Snapshot returns every preference, active or not, for session flush.
func (u *UserPreferences) Snapshot() []types.Preference {
	u.mu.RLock()
	defer u.mu.RUnlock()

	all := make([]types.Preference, 0, len(u.prefs))
	for _, pref := range u.prefs {
		all = append(all, *pref)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Category != all[j].Category {
			return all[i].Category < all[j].Category
		}
		return all[i].Key < all[j].Key
	})
	return all
}
