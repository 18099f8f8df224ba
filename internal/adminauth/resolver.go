// Package adminauth decides whether a caller holds administrative privilege.
//
// Privilege is resolved through an ordered chain of strategies:
//
//  1. the typed admin claim on the caller's verified token,
//  2. membership in the administrators registry,
//  3. the role field on the caller's own user record.
//
// The first strategy that grants privilege wins. The resolver never writes.
package adminauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/conferenceportal/internal/auth"
	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

// Strategy is one way of establishing admin privilege.
type Strategy interface {
	Name() string
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Resolver evaluates strategies in order and short-circuits on the first grant.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds a resolver from an explicit strategy list.
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// NewDefaultResolver builds the claim → registry → role chain over st.
func NewDefaultResolver(st store.Store) *Resolver {
	return NewResolver(ClaimStrategy{}, RegistryStrategy{Store: st}, RoleStrategy{Store: st})
}

// IsAdmin reports whether userID is an administrator. A strategy error does
// not stop the chain, but if no strategy grants privilege and any of them
// failed, the failures are returned so an outage is not mistaken for a denial.
func (r *Resolver) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var errs []error
	for _, s := range r.strategies {
		ok, err := s.IsAdmin(ctx, userID)
		if err != nil {
			slog.Warn("Admin strategy failed.", "strategy", s.Name(), "userId", userID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if ok {
			slog.Debug("Admin privilege granted.", "strategy", s.Name(), "userId", userID)
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

// ClaimStrategy grants privilege when the verified identity in ctx belongs to
// userID and carries the admin claim.
type ClaimStrategy struct{}

func (ClaimStrategy) Name() string { return "claim" }

func (ClaimStrategy) IsAdmin(ctx context.Context, userID string) (bool, error) {
	id, ok := auth.IdentityFromContext(ctx)
	return ok && id.UserID == userID && id.AdminClaim, nil
}

// RegistryStrategy grants privilege to members of the administrators registry.
type RegistryStrategy struct {
	Store store.Store
}

func (RegistryStrategy) Name() string { return "registry" }

func (s RegistryStrategy) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.Store.IsRegisteredAdmin(ctx, userID)
}

// RoleStrategy grants privilege when the user's own record has the admin role.
type RoleStrategy struct {
	Store store.Store
}

func (RoleStrategy) Name() string { return "role" }

func (s RoleStrategy) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := s.Store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.Role == models.RoleAdmin, nil
}
