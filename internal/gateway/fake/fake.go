package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/BearBump/ParcelMatch/internal/errs"
	"github.com/BearBump/ParcelMatch/internal/gateway"
	"github.com/BearBump/ParcelMatch/internal/models"
)

// Gateway — детерминированная заглушка бэкенда для локальной разработки.
// Снимок посылки считается от хэша кода, матчи живут в памяти процесса.
type Gateway struct {
	mu      sync.Mutex
	matches map[string]*models.CarrierMatch
	nextID  int
}

func New() *Gateway {
	return &Gateway{matches: map[string]*models.CarrierMatch{}}
}

// Seed кладёт матч в заглушку как будто его создал сервер.
func (g *Gateway) Seed(m *models.CarrierMatch) {
	g.mu.Lock()
	cp := *m
	g.matches[m.ID] = &cp
	g.mu.Unlock()
}

func (g *Gateway) GetPackage(_ context.Context, trackingCodeOrID string) (*models.TrackedPackage, error) {
	if trackingCodeOrID == "" {
		return nil, &errs.NetworkError{StatusCode: 404, Msg: "package not found"}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingCodeOrID))
	v := h.Sum32()

	now := time.Now().UTC()

	// Пятая часть посылок считается доставленной.
	status := models.PackageStatusInTransit
	var deliveryTime *time.Time
	if v%5 == 0 {
		status = models.PackageStatusDelivered
		dt := now.Add(-time.Hour)
		deliveryTime = &dt
	}
	eta := now.Add(time.Duration(1+v%48) * time.Hour)

	return &models.TrackedPackage{
		ID:                    fmt.Sprintf("pkg-%08x", v),
		TrackingCode:          trackingCodeOrID,
		Status:                status,
		Weight:                float64(1 + v%20),
		Price:                 float64(5 + v%30),
		DeliveryTime:          deliveryTime,
		EstimatedDeliveryTime: &eta,
		CreatedAt:             now.Add(-24 * time.Hour),
		UpdatedAt:             now,
	}, nil
}

func (g *Gateway) ListMyMatches(_ context.Context) ([]*models.CarrierMatch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*models.CarrierMatch, 0, len(g.matches))
	for _, m := range g.matches {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (g *Gateway) FindCarriers(_ context.Context, req gateway.FindCarriersRequest) ([]*models.CarrierCandidate, error) {
	if req.PackageID == "" {
		return nil, &errs.NetworkError{StatusCode: 400, Msg: "packageId is required"}
	}
	n := req.MaxCarriers
	if n <= 0 || n > 5 {
		n = 5
	}

	vehicles := []string{"CAR", "BICYCLE", "MOTORCYCLE", "AUTO_RICKSHAW", "VAN"}
	out := make([]*models.CarrierCandidate, 0, n)
	for i := 0; i < n; i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(fmt.Sprintf("%s|%d", req.PackageID, i)))
		v := h.Sum32()

		out = append(out, &models.CarrierCandidate{
			CarrierID:        fmt.Sprintf("carrier-%03d", i+1),
			Name:             fmt.Sprintf("Carrier %d", i+1),
			VehicleType:      vehicles[int(v)%len(vehicles)],
			Rating:           4.0 + float64(v%10)/10,
			TotalDeliveries:  int(50 + v%250),
			MatchScore:       0.70 + float64(v%30)/100,
			Compensation:     10 + float64(v%800)/100,
			EstimatedArrival: fmt.Sprintf("%02d:%02d", 9+v%10, v%60),
		})
	}
	return out, nil
}

func (g *Gateway) CreateMatch(_ context.Context, packageID, carrierID string) (*models.CarrierMatch, error) {
	if packageID == "" || carrierID == "" {
		return nil, &errs.NetworkError{StatusCode: 400, Msg: "packageId and carrierId are required"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	m := &models.CarrierMatch{
		ID:        fmt.Sprintf("match-%03d", g.nextID),
		PackageID: packageID,
		CarrierID: carrierID,
		Status:    models.MatchStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	g.matches[m.ID] = m

	cp := *m
	return &cp, nil
}

func (g *Gateway) AcceptMatch(_ context.Context, matchID, notes string) (*models.CarrierMatch, error) {
	return g.transition(matchID, models.MatchStatusPending, models.MatchStatusAccepted, notes)
}

func (g *Gateway) RejectMatch(_ context.Context, matchID, notes string) (*models.CarrierMatch, error) {
	return g.transition(matchID, models.MatchStatusPending, models.MatchStatusRejected, notes)
}

func (g *Gateway) CancelMatch(_ context.Context, matchID, reason string) (*models.CarrierMatch, error) {
	return g.transition(matchID, models.MatchStatusAccepted, models.MatchStatusCancelled, reason)
}

func (g *Gateway) transition(matchID, from, to, notes string) (*models.CarrierMatch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.matches[matchID]
	if !ok {
		return nil, &errs.NetworkError{StatusCode: 404, Msg: "match not found"}
	}
	if m.Status != from {
		return nil, &errs.NetworkError{StatusCode: 409, Msg: "match is not " + from}
	}

	now := time.Now().UTC()
	m.Status = to
	m.ResponseTime = &now
	if notes != "" {
		m.CarrierNotes = &notes
	}

	cp := *m
	return &cp, nil
}
