package entry

import (
	"errors"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Wire format identity. Stored payloads that do not carry this tag and a
// known version are foreign data and decode as a miss, never an error.
const (
	formatTag     = "swr"
	formatVersion = 1
)

// envelope is the versioned wire representation of an Entry.
//
// Freshness is stored as durations relative to cachedAt rather than as
// absolute deadlines, so an entry decoded after a process restart still
// expires the configured amount of time after it was cached.
type envelope struct {
	Tag      string             `msgpack:"t"`
	Version  int                `msgpack:"v"`
	Value    msgpack.RawMessage `msgpack:"d"`
	CachedAt time.Time          `msgpack:"c"`
	FreshFor time.Duration      `msgpack:"f"`
	StaleFor time.Duration      `msgpack:"s"` // 0 = no stale window
}

// Encode serializes the entry into its versioned msgpack envelope.
func Encode[V any](e Entry[V]) ([]byte, error) {
	raw, err := msgpack.Marshal(e.value)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}

	env := envelope{
		Tag:      formatTag,
		Version:  formatVersion,
		Value:    raw,
		CachedAt: e.cachedAt,
		FreshFor: e.freshUntil.Sub(e.cachedAt),
	}
	if !e.staleUntil.IsZero() {
		env.StaleFor = e.staleUntil.Sub(e.cachedAt)
	}

	data, err := msgpack.Marshal(env)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

// Decode reconstructs an entry from its wire form. The second return is
// false for anything that is not a well-formed, current-version envelope:
// corrupt bytes, a foreign format, an unknown version, or a value that
// does not unmarshal into V. Callers treat false as a cache miss.
func Decode[V any](data []byte) (Entry[V], bool) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Entry[V]{}, false
	}
	if env.Tag != formatTag || env.Version != formatVersion {
		return Entry[V]{}, false
	}
	if env.CachedAt.IsZero() || env.FreshFor <= 0 {
		return Entry[V]{}, false
	}
	if env.StaleFor != 0 && env.StaleFor <= env.FreshFor {
		return Entry[V]{}, false
	}

	var value V
	if err := msgpack.Unmarshal(env.Value, &value); err != nil {
		return Entry[V]{}, false
	}

	e := Entry[V]{
		value:      value,
		cachedAt:   env.CachedAt,
		freshUntil: env.CachedAt.Add(env.FreshFor),
	}
	if env.StaleFor > 0 {
		e.staleUntil = env.CachedAt.Add(env.StaleFor)
	}
	return e, true
}
