package delivery

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var numericID = regexp.MustCompile(`^-?\d+$`)

// ErrEmptyDestination is wrapped by the missing-credentials error for an empty chat id.
var ErrEmptyDestination = errors.New("delivery: chat id is empty")

// Destination is a chat to deliver to: a numeric id or a handle/string id.
type Destination struct {
	Raw     string
	ID      int64
	Numeric bool
}

// ParseDestination treats all-digit strings (optionally negative) as numeric
// ids and anything else as a handle passed through unchanged.
func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Destination{}, &Error{Reason: ReasonMissingCredentials, Detail: "chat id is empty", Err: ErrEmptyDestination}
	}
	if numericID.MatchString(raw) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			return Destination{Raw: raw, ID: id, Numeric: true}, nil
		}
	}
	return Destination{Raw: raw}, nil
}

func (d Destination) String() string { return d.Raw }

// chatIDValue is the JSON chat_id for the Bot API.
func (d Destination) chatIDValue() any {
	if d.Numeric {
		return d.ID
	}
	return d.Raw
}
