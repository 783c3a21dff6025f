package model

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
)

const (
	maxResidenceNameLen = 255
	maxHouseNumberLen   = 50
	maxContactLabelLen  = 50
	maxPhoneNumberLen   = 20
	minPhoneDigits      = 7
)

// PhoneNumber is a dialable number attached to a residence.
type PhoneNumber struct {
	ID        int64  `json:"id"         db:"id"`
	Number    string `json:"number"     db:"number"`
	Label     string `json:"label"      db:"label"`
	IsPrimary bool   `json:"is_primary" db:"is_primary"`
}

// EmailAddress is an email contact attached to a residence.
type EmailAddress struct {
	ID        int64  `json:"id"         db:"id"`
	Email     string `json:"email"      db:"email"`
	Label     string `json:"label"      db:"label"`
	IsPrimary bool   `json:"is_primary" db:"is_primary"`
}

// Residence represents a house in the directory with its contact information.
type Residence struct {
	ID             int64          `json:"id"              db:"id"`
	HouseNumber    string         `json:"house_number"    db:"house_number"`
	Name           string         `json:"name"            db:"name"`
	PhoneNumbers   []PhoneNumber  `json:"phone_numbers"   db:"-"`
	EmailAddresses []EmailAddress `json:"email_addresses" db:"-"`
	CreatedAt      time.Time      `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"      db:"updated_at"`
}

// PhoneNumberInput is a phone number supplied on create/update.
type PhoneNumberInput struct {
	Number    string `json:"number"`
	Label     string `json:"label,omitempty"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

// EmailAddressInput is an email address supplied on create/update.
type EmailAddressInput struct {
	Email     string `json:"email"`
	Label     string `json:"label,omitempty"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

// CreateResidenceRequest represents parameters to create a Residence with its
// contact rows.
type CreateResidenceRequest struct {
	HouseNumber    string              `json:"house_number"`
	Name           string              `json:"name"`
	PhoneNumbers   []PhoneNumberInput  `json:"phone_numbers,omitempty"`
	EmailAddresses []EmailAddressInput `json:"email_addresses,omitempty"`
}

// UpdateResidenceRequest represents parameters to update a Residence. A nil
// contact list leaves the existing rows untouched; a non-nil list replaces
// them wholesale.
type UpdateResidenceRequest struct {
	HouseNumber    *string              `json:"house_number,omitempty"`
	Name           *string              `json:"name,omitempty"`
	PhoneNumbers   *[]PhoneNumberInput  `json:"phone_numbers,omitempty"`
	EmailAddresses *[]EmailAddressInput `json:"email_addresses,omitempty"`
}

// Validate validates CreateResidenceRequest.
func (r *CreateResidenceRequest) Validate() error {
	if err := validateHouseNumber(r.HouseNumber); err != nil {
		return err
	}
	if err := validateResidenceName(r.Name); err != nil {
		return err
	}
	if err := validatePhoneNumbers(r.PhoneNumbers); err != nil {
		return err
	}
	return validateEmailAddresses(r.EmailAddresses)
}

// HasUpdates reports whether any field is set in UpdateResidenceRequest.
func (r *UpdateResidenceRequest) HasUpdates() bool {
	return r.HouseNumber != nil || r.Name != nil || r.PhoneNumbers != nil || r.EmailAddresses != nil
}

// Validate validates UpdateResidenceRequest, ensuring at least one field is set
// and values are sane.
func (r *UpdateResidenceRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.HouseNumber != nil {
		if err := validateHouseNumber(*r.HouseNumber); err != nil {
			return err
		}
	}
	if r.Name != nil {
		if err := validateResidenceName(*r.Name); err != nil {
			return err
		}
	}
	if r.PhoneNumbers != nil {
		if err := validatePhoneNumbers(*r.PhoneNumbers); err != nil {
			return err
		}
	}
	if r.EmailAddresses != nil {
		return validateEmailAddresses(*r.EmailAddresses)
	}
	return nil
}

func validateHouseNumber(houseNumber string) error {
	v := strings.TrimSpace(houseNumber)
	if v == "" {
		return errors.New("house_number is required and cannot be empty")
	}
	if utf8.RuneCountInString(v) > maxHouseNumberLen {
		return errors.New("house_number cannot exceed 50 characters")
	}
	return nil
}

func validateResidenceName(name string) error {
	v := strings.TrimSpace(name)
	if v == "" {
		return errors.New("name is required and cannot be empty")
	}
	if utf8.RuneCountInString(v) > maxResidenceNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	return nil
}

func validatePhoneNumbers(phones []PhoneNumberInput) error {
	primaries := 0
	for i := range phones {
		if err := validatePhoneNumber(phones[i].Number); err != nil {
			return err
		}
		if utf8.RuneCountInString(phones[i].Label) > maxContactLabelLen {
			return errors.New("phone label cannot exceed 50 characters")
		}
		if phones[i].IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return errors.New("at most one phone number can be primary")
	}
	return nil
}

func validateEmailAddresses(emails []EmailAddressInput) error {
	primaries := 0
	for i := range emails {
		if err := validateEmailAddress(emails[i].Email); err != nil {
			return err
		}
		if utf8.RuneCountInString(emails[i].Label) > maxContactLabelLen {
			return errors.New("email label cannot exceed 50 characters")
		}
		if emails[i].IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return errors.New("at most one email address can be primary")
	}
	return nil
}

func validatePhoneNumber(number string) error {
	v := strings.TrimSpace(number)
	if v == "" {
		return errors.New("phone number is required and cannot be empty")
	}
	if utf8.RuneCountInString(v) > maxPhoneNumberLen {
		return errors.New("phone number cannot exceed 20 characters")
	}
	digits := 0
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return fmt.Errorf("invalid phone number: %q", number)
		}
	}
	if digits < minPhoneDigits {
		return fmt.Errorf("invalid phone number: %q", number)
	}
	return nil
}

// validateEmailAddress requires a bare RFC 5322 address whose domain is
// registrable under the public suffix list, so typos like "user@gmail" or
// internal hostnames are rejected before they become recipient rows.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address: %q", email)
	}
	at := strings.LastIndex(email, "@")
	domain := strings.ToLower(email[at+1:])
	if _, err := publicsuffix.EffectiveTLDPlusOne(domain); err != nil {
		return fmt.Errorf("email address %q does not have a registrable domain", email)
	}
	return nil
}

// ResidencesListOptions controls paging and filtering for listing residences.
// Q matches house_number, name, or a phone number via ILIKE substring.
type ResidencesListOptions struct {
	Limit  int
	Offset int
	Q      *string
}

// ResidenceSearchPage is the search envelope: Next and Previous carry "page=N"
// tokens when the neighboring page exists, mirroring the legacy search API.
type ResidenceSearchPage struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  []Residence `json:"results"`
}
