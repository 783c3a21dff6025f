package errors

import (
	"cmp"
	"errors"
	"reflect"
	"strings"
)

var typeCleaner = strings.NewReplacer("*", "", ".", "_")

// Classify renders the root cause of err as a lower_snake type name for
// metric and log tags. A nil error classifies as the empty string.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	return typeName(rootCause(err))
}

// rootCause follows the Unwrap chain to its end. Joined errors stop at the
// join, where the aggregate carries the signal.
func rootCause(err error) error {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err
		}
		err = inner
	}
}

// typeName names the dynamic type of err with pointers stripped, so *AppError
// and AppError tag identically.
func typeName(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return "unknown"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return cmp.Or(strings.ToLower(typeCleaner.Replace(t.String())), "unknown")
}
