package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/kingjethro999/the-ecommerce-api/models"
	"github.com/kingjethro999/the-ecommerce-api/repository"
	"go.uber.org/zap"
)

// CustomerResolver maps a checkout's customer descriptor onto a User,
// creating the user on first purchase.
type CustomerResolver struct {
	store  repository.CatalogStore
	logger *zap.Logger
}

func NewCustomerResolver(store repository.CatalogStore, logger *zap.Logger) *CustomerResolver {
	return &CustomerResolver{store: store, logger: logger}
}

// Resolve returns the user with the descriptor's email. A concurrent
// creation of the same user is absorbed by re-reading it.
func (r *CustomerResolver) Resolve(ctx context.Context, desc models.CustomerDescriptor) (*models.User, error) {
	email := NormalizeEmail(desc.Email)

	user, err := r.store.FindUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	phone := strings.TrimSpace(desc.Phone)
	if phone == "" {
		phone = PlaceholderPhone(email)
	}
	name := strings.TrimSpace(desc.Name)
	if name == "" {
		name = PlaceholderName(email)
	}

	user, err = r.create(ctx, name, email, phone)
	if err == nil || !errors.Is(err, repository.ErrDuplicateUser) {
		return user, err
	}

	if existing, ferr := r.store.FindUserByEmail(ctx, email); ferr == nil {
		return existing, nil
	}

	// The given phone belongs to someone else.
	if phone != PlaceholderPhone(email) {
		r.logger.Warn("Customer phone already registered, using placeholder",
			zap.String("email", email))
		user, err = r.create(ctx, name, email, PlaceholderPhone(email))
		if err == nil {
			return user, nil
		}
		if existing, ferr := r.store.FindUserByEmail(ctx, email); ferr == nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("resolve customer %s: %w", email, err)
}

func (r *CustomerResolver) create(ctx context.Context, name, email, phone string) (*models.User, error) {
	user := &models.User{
		Name:       name,
		Email:      email,
		Phone:      phone,
		Role:       models.UserRoleUser,
		Status:     models.UserStatusActive,
		IsVerified: true,
	}
	if err := r.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	r.logger.Info("Customer created", zap.String("user_id", user.ID.String()), zap.String("email", email))
	return user, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PlaceholderPhone derives a stable phone value from the email. The +0
// prefix is not a valid country code, so it never clashes with a real number.
func PlaceholderPhone(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	n := new(big.Int).SetBytes(sum[:8])
	return fmt.Sprintf("+0%015d", n.Mod(n, big.NewInt(1e15)).Uint64())
}

// PlaceholderName is used when the checkout carried no name.
func PlaceholderName(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return "Customer " + strings.ToUpper(hex.EncodeToString(sum[:4]))
}
