package services

import (
	"context"
	"fmt"
	"strings"

	"debtreminder-backend/models"
	"debtreminder-backend/utils"

	"github.com/google/uuid"
)

// ResolveMode says whose endpoint a reminder goes to.
type ResolveMode int

const (
	CustomerLinked ResolveMode = iota + 1
	BusinessOwner
)

// Endpoint is where one message on one channel is delivered.
type Endpoint struct {
	Channel      models.Channel
	ChatID       int64
	Email        EmailAddress
	Registration *models.TelegramUser
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve finds the endpoint for debt on ch. A missing registration or
// address is ErrNotFound; more than one active match is ErrAmbiguousRegistration.
func (r *Resolver) Resolve(ctx context.Context, debt models.Debt, ch models.Channel, mode ResolveMode) (Endpoint, error) {
	switch ch {
	case models.ChannelEmail:
		if mode != CustomerLinked {
			return Endpoint{}, fmt.Errorf("%w: email is only sent to customers", ErrInvalidInput)
		}
		addr := strings.TrimSpace(debt.Customer.Email)
		if addr == "" {
			return Endpoint{}, fmt.Errorf("customer %s email: %w", debt.CustomerID, ErrNotFound)
		}
		return Endpoint{Channel: ch, Email: EmailAddress{Name: debt.Customer.Name, Address: addr}}, nil

	case models.ChannelTelegram:
		switch mode {
		case CustomerLinked:
			return r.CustomerEndpoint(ctx, debt.CustomerID)
		case BusinessOwner:
			return r.OwnerEndpoint(ctx, debt.UserID)
		}
	}
	return Endpoint{}, fmt.Errorf("%w: channel %q mode %d", ErrInvalidInput, ch, mode)
}

func (r *Resolver) CustomerEndpoint(ctx context.Context, customerID uuid.UUID) (Endpoint, error) {
	return r.single(ctx, RegistrationQuery{CustomerID: &customerID, Role: models.RoleCustomer})
}

func (r *Resolver) OwnerEndpoint(ctx context.Context, ownerID uuid.UUID) (Endpoint, error) {
	return r.single(ctx, RegistrationQuery{OwnerID: &ownerID, Role: models.RoleBusinessOwner})
}

// PhoneEndpoint maps a phone number to one of the owner's customers and
// then to that customer's chat. The customer is returned even when the
// chat lookup fails, so callers can name who they could not reach.
func (r *Resolver) PhoneEndpoint(ctx context.Context, ownerID uuid.UUID, phone string) (models.Customer, Endpoint, error) {
	normalized := utils.NormalizePhone(phone)
	if normalized == "" {
		return models.Customer{}, Endpoint{}, fmt.Errorf("%w: phone %q", ErrInvalidInput, phone)
	}
	customers, err := r.store.FindCustomersByPhone(ctx, ownerID, normalized, 2)
	if err != nil {
		return models.Customer{}, Endpoint{}, err
	}
	switch len(customers) {
	case 0:
		return models.Customer{}, Endpoint{}, fmt.Errorf("customer with phone %s: %w", normalized, ErrNotFound)
	case 1:
	default:
		return models.Customer{}, Endpoint{}, fmt.Errorf("phone %s matches several customers: %w", normalized, ErrAmbiguousRegistration)
	}

	ep, err := r.CustomerEndpoint(ctx, customers[0].ID)
	return customers[0], ep, err
}

func (r *Resolver) single(ctx context.Context, q RegistrationQuery) (Endpoint, error) {
	regs, err := r.store.FindActiveRegistrations(ctx, q, 2)
	if err != nil {
		return Endpoint{}, err
	}
	switch len(regs) {
	case 0:
		return Endpoint{}, fmt.Errorf("active %s registration: %w", q.Role, ErrNotFound)
	case 1:
		reg := regs[0]
		return Endpoint{Channel: models.ChannelTelegram, ChatID: reg.TelegramChatID, Registration: &reg}, nil
	}
	return Endpoint{}, fmt.Errorf("%s registration: %w", q.Role, ErrAmbiguousRegistration)
}
