package conditional

import (
	"strconv"
	"strings"
)

// Kind names the scheme a Validator belongs to.
type Kind int

const (
	// KindNone is the zero Validator: nothing was supplied.
	KindNone Kind = iota
	// KindTimestamp validators are freshness registry stamps in epoch milliseconds.
	KindTimestamp
	// KindEntityTag validators are quoted content hashes sent as ETag headers.
	KindEntityTag
)

// Validator is an opaque freshness token a client presents to prove its copy
// is current. Timestamps and entity tags never compare equal to each other.
type Validator struct {
	Kind  Kind
	Value string
}

// Timestamp returns a timestamp validator for stamp.
func Timestamp(stamp int64) Validator {
	return Validator{Kind: KindTimestamp, Value: strconv.FormatInt(stamp, 10)}
}

// EntityTag returns an entity-tag validator. tag is stored quoted.
func EntityTag(tag string) Validator {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "W/")
	if tag == "" {
		return Validator{}
	}
	if !strings.HasPrefix(tag, `"`) {
		tag = `"` + tag + `"`
	}
	return Validator{Kind: KindEntityTag, Value: tag}
}

// ParseTimestamp parses a client supplied timestamp. Anything other than a
// positive base-10 integer yields the zero Validator.
func ParseTimestamp(raw string) Validator {
	stamp, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || stamp <= 0 {
		return Validator{}
	}
	return Timestamp(stamp)
}

// IsZero reports whether no validator was supplied.
func (v Validator) IsZero() bool {
	return v.Kind == KindNone || v.Value == ""
}

// Equal reports whether v and o are the same non-empty token of the same scheme.
func (v Validator) Equal(o Validator) bool {
	return !v.IsZero() && v.Kind == o.Kind && v.Value == o.Value
}

func (v Validator) String() string {
	return v.Value
}
