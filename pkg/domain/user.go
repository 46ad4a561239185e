package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidUserID = errors.New("invalid user id")

// ParseUserID reads a positive Telegram user id.
func ParseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUserID, s)
	}
	return id, nil
}
