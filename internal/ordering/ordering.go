// Package ordering maintains dense lexicographic order keys for rows that
// share a parent.
//
// Keys are built from the lowercase latin alphabet. A key never ends on the
// first or the last letter of the alphabet, so there is always room to insert
// another key before or after it.
package ordering

import (
	"errors"
	"fmt"
)

const (
	first byte = 'a'
	last  byte = 'z'
)

var (
	ErrInconsistentOrdering = errors.New("the order bounds are inconsistent")
	ErrInvalidKey           = errors.New("the order key is invalid")
	ErrPositionOutOfRange   = errors.New("the position is out of range")
)

// Middle is the key used for the first row of an empty table.
const Middle = "n"

// Validate checks that a key only consists of alphabet characters and does
// not end on a sentinel letter.
func Validate(key string) error {
	if key == "" {
		return fmt.Errorf("%w: the key must not be empty", ErrInvalidKey)
	}

	for i := 0; i < len(key); i++ {
		if key[i] < first || key[i] > last {
			return fmt.Errorf("%w: '%s' contains the character '%c'", ErrInvalidKey, key, key[i])
		}
	}

	if key[len(key)-1] == first || key[len(key)-1] == last {
		return fmt.Errorf("%w: '%s' must not end with '%c'", ErrInvalidKey, key, key[len(key)-1])
	}

	return nil
}

// Between returns a key that sorts strictly between lower and upper.
//
// An empty lower bound means "before everything", an empty upper bound means
// "after everything".
func Between(lower, upper string) (string, error) {
	if upper != "" && lower >= upper {
		return "", fmt.Errorf("%w: '%s' is not lower than '%s'", ErrInconsistentOrdering, lower, upper)
	}

	for _, k := range []string{lower, upper} {
		if k == "" {
			continue
		}

		for i := 0; i < len(k); i++ {
			if k[i] < first || k[i] > last {
				return "", fmt.Errorf("%w: '%s' contains the character '%c'", ErrInvalidKey, k, k[i])
			}
		}
	}

	bounded := upper != ""
	key := make([]byte, 0, len(lower)+1)

	for i := 0; ; i++ {
		p := first
		if i < len(lower) {
			p = lower[i]
		}

		n := last
		if bounded {
			// lower is a strict prefix of upper and upper ran out of characters
			// while matching the implied 'a's: there is no key in between.
			if i >= len(upper) {
				return "", fmt.Errorf("%w: there is no space before '%s'", ErrInconsistentOrdering, upper)
			}
			n = upper[i]
		}

		switch {
		case p == n:
			key = append(key, p)
		case n-p >= 2:
			// Rounding up keeps the new key away from the lower bound
			return string(append(key, p+(n-p+1)/2)), nil
		default:
			// Adjacent characters: keep the lower one, everything after it is
			// unbounded from above
			key = append(key, p)
			bounded = false
		}
	}
}

// After returns a key that sorts after key.
func After(key string) (string, error) {
	return Between(key, "")
}

// Before returns a key that sorts before key.
func Before(key string) (string, error) {
	return Between("", key)
}

// AtPosition computes the key for a row inserted at position k of a table
// with the sorted keys passed in.
func AtPosition(keys []string, k int) (string, error) {
	if k < 0 || k > len(keys) {
		return "", fmt.Errorf("%w: %d is not within [0, %d]", ErrPositionOutOfRange, k, len(keys))
	}

	var lower, upper string
	if k > 0 {
		lower = keys[k-1]
	}

	if k < len(keys) {
		upper = keys[k]
	}

	return Between(lower, upper)
}

// Move computes the new key for the row at index from when it is moved to
// position to. The position is relative to the table with the moved row
// removed. No other key changes.
func Move(keys []string, from, to int) (string, error) {
	if from < 0 || from >= len(keys) {
		return "", fmt.Errorf("%w: %d is not within [0, %d)", ErrPositionOutOfRange, from, len(keys))
	}

	rest := make([]string, 0, len(keys)-1)
	rest = append(rest, keys[:from]...)
	rest = append(rest, keys[from+1:]...)

	return AtPosition(rest, to)
}

// Sequence returns n increasing keys that all sort after lower and before
// upper. Either bound may be empty.
func Sequence(lower, upper string, n int) ([]string, error) {
	keys := make([]string, 0, n)

	for i := 0; i < n; i++ {
		key, err := Between(lower, upper)
		if err != nil {
			return nil, err
		}

		keys = append(keys, key)
		lower = key
	}

	return keys, nil
}

// Rekey distributes fresh keys for a table of n rows: the first row gets
// the middle letter, every following row the key after its predecessor.
func Rekey(n int) []string {
	keys := make([]string, 0, n)
	if n == 0 {
		return keys
	}

	keys = append(keys, Middle)
	for i := 1; i < n; i++ {
		// Between never fails for a valid lower bound and no upper bound
		key, _ := After(keys[i-1])
		keys = append(keys, key)
	}

	return keys
}
