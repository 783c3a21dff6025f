package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Patterns for pulling structure out of PgError.Detail text. Postgres phrases
// these messages consistently, which is the only machine-readable signal when
// column metadata is absent.
var (
	// "Key (house_number)=(A-01) already exists."
	reDetailKey = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// "... is still referenced from table \"message_recipients\"."
	reStillReferenced = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	// "... is not present in table \"residences\"."
	reMissingParent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// MapDBError converts a database failure into a coded AppError:
//
//	pgx.ErrNoRows                    -> not_found
//	unique violation                 -> conflict
//	foreign key violation            -> foreign_key
//	check / not-null violation       -> validation
//	serialization / deadlock         -> internal (retryable message)
//	context deadline / cancellation  -> timeout / canceled
//
// Anything unrecognized passes through unchanged so callers can still match
// their own sentinels.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "The request timed out. Try again shortly.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "The request was canceled before it finished.")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "The requested record does not exist.")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgError(pgErr)
	}

	return err
}

func classifyPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return uniqueViolation(pgErr)
	case pgerrcode.ForeignKeyViolation:
		return foreignKeyViolation(pgErr)
	case pgerrcode.CheckViolation:
		return constraintViolation(pgErr, "The value is not allowed here.", "The submitted data failed a database check.")
	case pgerrcode.NotNullViolation:
		return constraintViolation(pgErr, "This field is required.", "A required field is missing.")
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		// Concurrent batch writes occasionally trip these; the statement is
		// safe to retry as-is.
		return Wrap(pgErr, ErrCodeInternal, "The database was busy. Retry the request.")
	default:
		return Wrap(pgErr, ErrCodeInternal, "A database error occurred. Try again.")
	}
}

// uniqueViolation reports a conflict, attributed to a field when one can be
// recovered from the error metadata.
func uniqueViolation(pgErr *pgconn.PgError) error {
	appErr := Wrap(pgErr, ErrCodeConflict, "A record with this value already exists.")
	appErr.Field = violatedField(pgErr)
	return appErr
}

// constraintViolation covers check and not-null failures. The field message is
// used when the offending column is known, the generic one otherwise.
func constraintViolation(pgErr *pgconn.PgError, fieldMessage, genericMessage string) error {
	if pgErr.ColumnName != "" {
		appErr := Wrap(pgErr, ErrCodeValidation, fieldMessage)
		appErr.Field = pgErr.ColumnName
		return appErr
	}
	return Wrap(pgErr, ErrCodeValidation, genericMessage)
}

// foreignKeyViolation distinguishes "parent still referenced" from "parent
// missing" by the phrasing of the detail text.
func foreignKeyViolation(pgErr *pgconn.PgError) error {
	var message string

	if pgErr.Detail != "" {
		if m := reStillReferenced.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			message = "Cannot delete while " + humanizeTable(m[1]) + " records still reference it."
		} else if m := reMissingParent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			message = "The referenced " + humanizeTable(m[1]) + " does not exist."
		}
	}

	if message == "" && pgErr.TableName != "" {
		message = "This record is still in use by " + humanizeTable(pgErr.TableName) + "."
	}
	if message == "" {
		message = fallbackForeignKeyMessage(pgErr.ConstraintName)
	}

	return Wrap(pgErr, ErrCodeForeignKey, message)
}

// violatedField recovers the column behind a unique violation. Column
// metadata wins; detail-text parsing and constraint-name inference are
// fallbacks, in that order.
func violatedField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if pgErr.Detail != "" {
		if m := reDetailKey.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			return m[1]
		}
	}
	return fieldFromConstraintName(pgErr.ConstraintName)
}

// fieldFromConstraintName guesses the column from names shaped like
// "residences_house_number_key". Multi-part or expression-index names are
// ambiguous and yield "".
func fieldFromConstraintName(constraintName string) string {
	if constraintName == "" {
		return ""
	}

	parts := strings.Split(constraintName, "_")
	if len(parts) != 3 {
		return ""
	}

	candidate := parts[1]
	if isSQLFunctionName(candidate) {
		// Expression index such as "residences_lower_key", not a column.
		return ""
	}
	return candidate
}

// humanizeTable turns a table name into the term the directory API uses for
// it.
func humanizeTable(tableName string) string {
	tableName = strings.ToLower(strings.TrimSpace(tableName))

	switch tableName {
	case "residences":
		return "Residence"
	case "residence_phone_numbers":
		return "Phone Number"
	case "residence_email_addresses":
		return "Email Address"
	case "message_jobs":
		return "Message Job"
	case "message_recipients":
		return "Recipient"
	}

	return titleWords(strings.ReplaceAll(tableName, "_", " "))
}

// titleWords uppercases the first letter of each space-separated word.
// Identifier charsets are ASCII, so no unicode-aware casing is needed.
func titleWords(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w != "" && w[0] >= 'a' && w[0] <= 'z' {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// fallbackForeignKeyMessage builds a message from the constraint name when no
// table metadata survived the trip.
func fallbackForeignKeyMessage(constraintName string) string {
	constraintName = strings.ToLower(constraintName)

	// Recipient constraints mention both "recipients" and "job", so test for
	// them before the residence case.
	if strings.Contains(constraintName, "recipient") || strings.Contains(constraintName, "job") {
		return "The referenced Message Job does not exist."
	}
	if strings.Contains(constraintName, "residence") {
		return "The referenced Residence does not exist."
	}
	return "This record is referenced by other data."
}

// isSQLFunctionName reports whether s is a function commonly used in
// expression indexes.
func isSQLFunctionName(s string) bool {
	switch strings.ToLower(s) {
	case "lower", "upper", "trim", "ltrim", "rtrim", "md5", "encode", "decode":
		return true
	}
	return false
}
