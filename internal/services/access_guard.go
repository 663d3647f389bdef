package services

import (
	"context"
	"errors"
	"net/netip"

	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// LoginIPDescription labels allow-list entries provisioned by a successful login.
const LoginIPDescription = "IP used for login"

var privateBypass = netip.MustParsePrefix("192.168.0.0/16")

// AccessGuard maintains the per-user address allow-list and decides whether a
// caller may act from its current network address.
type AccessGuard struct {
	store  repositories.Store
	logger *zap.Logger
}

// NewAccessGuard constructs an AccessGuard.
func NewAccessGuard(store repositories.Store, logger *zap.Logger) *AccessGuard {
	return &AccessGuard{store: store, logger: logger}
}

// NormalizeAddress returns the canonical text form of an IP address.
func NormalizeAddress(address string) (string, bool) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return "", false
	}
	return addr.Unmap().WithZone("").String(), true
}

// IsBypassAddress reports whether address skips the allow-list (loopback and 192.168.0.0/16).
func IsBypassAddress(address string) bool {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || privateBypass.Contains(addr)
}

// IsAddressAuthorized reports whether userID may act from address. A positive
// decision stamps the entry's last-used time; failing to persist the stamp does
// not change the decision.
func (g *AccessGuard) IsAddressAuthorized(ctx context.Context, userID int, address string) (bool, error) {
	if IsBypassAddress(address) {
		return true, nil
	}
	normalized, ok := NormalizeAddress(address)
	if !ok {
		return false, nil
	}

	authorized := false
	err := g.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		entry, err := tx.AuthorizedIPs().FindActive(ctx, userID, normalized)
		if errors.Is(err, repositories.ErrAuthorizedIPNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		authorized = true
		return tx.AuthorizedIPs().TouchLastUsed(ctx, entry.ID)
	})
	if err != nil {
		if authorized {
			g.logger.Warn("authorized ip last_used_at update failed", zap.Int("user_id", userID), zap.String("ip", normalized), zap.Error(err))
			return true, nil
		}
		return false, err
	}
	return authorized, nil
}

// RegisterAuthorizedIP adds address to the allow-list of userID. An inactive
// entry is reactivated, an active one is left untouched.
func (g *AccessGuard) RegisterAuthorizedIP(ctx context.Context, userID int, address string, description *string) (models.AuthorizedIP, models.RegisterOutcome, error) {
	normalized, ok := NormalizeAddress(address)
	if !ok {
		return models.AuthorizedIP{}, 0, badRequest(msgInvalidIP)
	}

	var (
		entry   models.AuthorizedIP
		outcome models.RegisterOutcome
	)
	err := g.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		existing, err := tx.AuthorizedIPs().Find(ctx, userID, normalized)
		switch {
		case errors.Is(err, repositories.ErrAuthorizedIPNotFound):
			created, inserted, err := tx.AuthorizedIPs().Insert(ctx, models.AuthorizedIP{
				UserID:      userID,
				IPAddress:   normalized,
				Description: description,
			})
			if err != nil {
				return err
			}
			if inserted {
				entry, outcome = created, models.IPCreated
				return nil
			}
			// lost an insert race, continue with the row that won
			if existing, err = tx.AuthorizedIPs().Find(ctx, userID, normalized); err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if existing.IsActive() {
			entry, outcome = existing, models.IPAlreadyActive
			return nil
		}
		if description == nil {
			description = existing.Description
		}
		entry, err = tx.AuthorizedIPs().Reactivate(ctx, existing.ID, description)
		outcome = models.IPReactivated
		return err
	})
	if err != nil {
		return models.AuthorizedIP{}, 0, err
	}
	return entry, outcome, nil
}

// ListAuthorizedIPs returns the active allow-list entries of userID.
func (g *AccessGuard) ListAuthorizedIPs(ctx context.Context, userID int) ([]models.AuthorizedIP, error) {
	return g.store.AuthorizedIPs().ListActive(ctx, userID)
}

// DeactivateAuthorizedIP removes address from the active allow-list of userID.
func (g *AccessGuard) DeactivateAuthorizedIP(ctx context.Context, userID int, address string) error {
	normalized, ok := NormalizeAddress(address)
	if !ok {
		return notFound(msgIPNotFound)
	}
	err := g.store.AuthorizedIPs().Deactivate(ctx, userID, normalized)
	if errors.Is(err, repositories.ErrAuthorizedIPNotFound) {
		return notFound(msgIPNotFound)
	}
	return err
}

// RemoveAuthorizedIP deactivates address on behalf of a caller connecting from
// currentAddress. Callers cannot drop the address they are using.
func (g *AccessGuard) RemoveAuthorizedIP(ctx context.Context, userID int, address, currentAddress string) error {
	target, ok := NormalizeAddress(address)
	if !ok {
		return notFound(msgIPNotFound)
	}
	if current, ok := NormalizeAddress(currentAddress); ok && current == target {
		return badRequest(msgRemoveCurrentIP)
	}
	return g.DeactivateAuthorizedIP(ctx, userID, target)
}

// AddAuthorizedIP is the explicit, user-invoked variant of RegisterAuthorizedIP.
// Adding an address that is already active is reported as a bad request.
func (g *AccessGuard) AddAuthorizedIP(ctx context.Context, userID int, address string, description *string) (models.AuthorizedIP, models.RegisterOutcome, error) {
	entry, outcome, err := g.RegisterAuthorizedIP(ctx, userID, address, description)
	if err != nil {
		return models.AuthorizedIP{}, 0, err
	}
	if outcome == models.IPAlreadyActive {
		return models.AuthorizedIP{}, outcome, badRequest(msgIPAlreadyActive)
	}
	return entry, outcome, nil
}
