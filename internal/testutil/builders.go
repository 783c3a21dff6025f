// Package testutil provides testing utilities and helpers for the residency messaging system.
package testutil

import (
	"fmt"

	"github.com/gagyekum/residency/internal/domain/model"
)

// MessageJobRequestBuilder provides a fluent interface for building CreateMessageJobRequest objects for testing.
type MessageJobRequestBuilder struct {
	req *model.CreateMessageJobRequest
}

// NewMessageJobRequest creates a new MessageJobRequestBuilder with sensible defaults.
func NewMessageJobRequest() *MessageJobRequestBuilder {
	return &MessageJobRequestBuilder{
		req: &model.CreateMessageJobRequest{
			Subject:  "Community update",
			Body:     "Hello residents, please see the latest community update.",
			Channels: []model.Channel{model.ChannelEmail},
			Sender:   "Residents Association",
		},
	}
}

// WithSubject sets the message subject.
func (b *MessageJobRequestBuilder) WithSubject(subject string) *MessageJobRequestBuilder {
	b.req.Subject = subject
	return b
}

// WithBody sets the message body.
func (b *MessageJobRequestBuilder) WithBody(body string) *MessageJobRequestBuilder {
	b.req.Body = body
	return b
}

// WithSMSBody sets the SMS-specific body.
func (b *MessageJobRequestBuilder) WithSMSBody(smsBody string) *MessageJobRequestBuilder {
	b.req.SMSBody = smsBody
	return b
}

// WithChannels sets the delivery channels.
func (b *MessageJobRequestBuilder) WithChannels(channels ...model.Channel) *MessageJobRequestBuilder {
	b.req.Channels = channels
	return b
}

// WithSender sets the sender label.
func (b *MessageJobRequestBuilder) WithSender(sender string) *MessageJobRequestBuilder {
	b.req.Sender = sender
	return b
}

// Build returns the constructed CreateMessageJobRequest.
func (b *MessageJobRequestBuilder) Build() *model.CreateMessageJobRequest {
	return b.req
}

// Common message job request presets

// EmailJobRequest creates an email-only job request with default values.
func EmailJobRequest() *model.CreateMessageJobRequest {
	return NewMessageJobRequest().
		WithChannels(model.ChannelEmail).
		Build()
}

// SMSJobRequest creates an SMS-only job request with default values.
func SMSJobRequest() *model.CreateMessageJobRequest {
	return NewMessageJobRequest().
		WithChannels(model.ChannelSMS).
		WithSMSBody("Short community update.").
		Build()
}

// DualChannelJobRequest creates a job request targeting both channels.
func DualChannelJobRequest() *model.CreateMessageJobRequest {
	return NewMessageJobRequest().
		WithChannels(model.ChannelEmail, model.ChannelSMS).
		WithSMSBody("Short community update.").
		Build()
}

// ResidenceRequestBuilder provides a fluent interface for building CreateResidenceRequest objects for testing.
type ResidenceRequestBuilder struct {
	req *model.CreateResidenceRequest
}

// NewResidenceRequest creates a new ResidenceRequestBuilder with sensible defaults.
func NewResidenceRequest() *ResidenceRequestBuilder {
	return &ResidenceRequestBuilder{
		req: &model.CreateResidenceRequest{
			HouseNumber: "A1",
			Name:        "Mensah Residence",
		},
	}
}

// WithHouseNumber sets the house number.
func (b *ResidenceRequestBuilder) WithHouseNumber(houseNumber string) *ResidenceRequestBuilder {
	b.req.HouseNumber = houseNumber
	return b
}

// WithName sets the residence name.
func (b *ResidenceRequestBuilder) WithName(name string) *ResidenceRequestBuilder {
	b.req.Name = name
	return b
}

// WithPhone appends a phone number contact row.
func (b *ResidenceRequestBuilder) WithPhone(number, label string, primary bool) *ResidenceRequestBuilder {
	b.req.PhoneNumbers = append(b.req.PhoneNumbers, model.PhoneNumberInput{
		Number:    number,
		Label:     label,
		IsPrimary: primary,
	})
	return b
}

// WithEmail appends an email address contact row.
func (b *ResidenceRequestBuilder) WithEmail(email, label string, primary bool) *ResidenceRequestBuilder {
	b.req.EmailAddresses = append(b.req.EmailAddresses, model.EmailAddressInput{
		Email:     email,
		Label:     label,
		IsPrimary: primary,
	})
	return b
}

// Build returns the constructed CreateResidenceRequest.
func (b *ResidenceRequestBuilder) Build() *model.CreateResidenceRequest {
	return b.req
}

// Common residence request presets

// ResidenceWithContacts creates a residence request with one email and one phone contact.
func ResidenceWithContacts(houseNumber, name, email, phone string) *model.CreateResidenceRequest {
	return NewResidenceRequest().
		WithHouseNumber(houseNumber).
		WithName(name).
		WithEmail(email, "home", true).
		WithPhone(phone, "mobile", true).
		Build()
}

// EmailOnlyResidence creates a residence request reachable by email only.
func EmailOnlyResidence(houseNumber, name, email string) *model.CreateResidenceRequest {
	return NewResidenceRequest().
		WithHouseNumber(houseNumber).
		WithName(name).
		WithEmail(email, "home", true).
		Build()
}

// PhoneOnlyResidence creates a residence request reachable by SMS only.
func PhoneOnlyResidence(houseNumber, name, phone string) *model.CreateResidenceRequest {
	return NewResidenceRequest().
		WithHouseNumber(houseNumber).
		WithName(name).
		WithPhone(phone, "mobile", true).
		Build()
}

// NumberedResidence creates a residence request with deterministic contacts
// derived from the index, useful for seeding a directory of a given size.
func NumberedResidence(i int) *model.CreateResidenceRequest {
	return ResidenceWithContacts(
		fmt.Sprintf("H%d", i),
		fmt.Sprintf("Household %d", i),
		fmt.Sprintf("resident%d@example.com", i),
		fmt.Sprintf("+23320%07d", i),
	)
}
