package address

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Service resolves the shipping address used at checkout.
type Service interface {
	Get(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Default(ctx context.Context, userID uuid.UUID) (*models.Address, error)
	Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.AddressSnapshot, error)
}

type service struct {
	repo Repository
}

// NewService wires the address service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

// Get returns the address only when it belongs to userID.
func (s *service) Get(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	if addressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	addr, err := s.repo.FindForUser(ctx, userID, addressID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}
	return addr, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	rows, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	return rows, nil
}

// Default returns the flagged default address, falling back to the oldest one.
func (s *service) Default(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	rows, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no saved address")
	}
	return &rows[0], nil
}

func (s *service) Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.AddressSnapshot, error) {
	addr, err := s.Get(ctx, userID, addressID)
	if err != nil {
		return types.AddressSnapshot{}, err
	}
	snap := addr.Snapshot()
	if err := snap.Validate(); err != nil {
		return types.AddressSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "address is incomplete")
	}
	return snap, nil
}
