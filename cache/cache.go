package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Portal responses are cached per account so a second command within the TTL
// costs no portal traffic. Grades move slowly, timetables can change within
// the week.
const (
	TTLTimetable = time.Hour
	TTLExams     = 6 * time.Hour
	TTLGrades    = 24 * time.Hour
	TTLCourses   = time.Hour
)

// Store is a TTL cache for portal responses, keyed per chat user and account.
type Store interface {
	// Get decodes the cached value into out. The returned time is when the
	// value was cached; found is false on a miss or an expired entry.
	Get(ctx context.Context, key string, out interface{}) (cachedAt time.Time, found bool, err error)

	// Set stores a value under key for ttl
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes one entry
	Delete(ctx context.Context, key string) error

	// ClearUser removes every entry belonging to a chat user. Called on
	// login, logout and account switching so stale data from another
	// account is never served.
	ClearUser(ctx context.Context, chatID int64) error
}

// Key builds a cache key of the form "<kind>:<chatID>[:<part>...]".
func Key(kind string, chatID int64, parts ...string) string {
	key := fmt.Sprintf("%s:%d", kind, chatID)
	if len(parts) > 0 {
		key += ":" + strings.Join(parts, ":")
	}
	return key
}

// envelope wraps a cached value with the time it was stored, so commands can
// tell the user how fresh the data is.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	CachedAt time.Time       `json:"cached_at"`
}

func seal(value interface{}, now time.Time) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Data: data, CachedAt: now})
}

func open(raw []byte, out interface{}) (time.Time, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return time.Time{}, err
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return time.Time{}, err
		}
	}
	return env.CachedAt, nil
}
