package gateway

import (
	"context"

	"github.com/BearBump/ParcelMatch/internal/models"
)

// FindCarriersRequest — параметры discovery-запроса POST /matches/find-carriers.
type FindCarriersRequest struct {
	PackageID   string  `json:"packageId"`
	Radius      float64 `json:"radius"`
	MaxCarriers int     `json:"maxCarriers"`
}

// Client — HTTP-поверхность бэкенда для посылок и матчей.
// Каждый вызов — точка приостановки: таймаут и отмена через ctx.
type Client interface {
	GetPackage(ctx context.Context, trackingCodeOrID string) (*models.TrackedPackage, error)
	ListMyMatches(ctx context.Context) ([]*models.CarrierMatch, error)
	FindCarriers(ctx context.Context, req FindCarriersRequest) ([]*models.CarrierCandidate, error)
	CreateMatch(ctx context.Context, packageID, carrierID string) (*models.CarrierMatch, error)
	AcceptMatch(ctx context.Context, matchID, notes string) (*models.CarrierMatch, error)
	RejectMatch(ctx context.Context, matchID, notes string) (*models.CarrierMatch, error)
	CancelMatch(ctx context.Context, matchID, reason string) (*models.CarrierMatch, error)
}
