package models

import "time"

// Статусы посылки (как их отдаёт бэкенд).
const (
	PackageStatusPending     = "pending"
	PackageStatusMatched     = "matched"
	PackageStatusPickupReady = "pickup_ready"
	PackageStatusInTransit   = "in_transit"
	PackageStatusDelivered   = "delivered"
	PackageStatusCancelled   = "cancelled"
	PackageStatusReturned    = "returned"
)

// TrackedPackage — снимок посылки, как она была видна при последнем запросе.
// Снимок неизменяемый: новый запрос целиком заменяет старый, без слияния полей.
type TrackedPackage struct {
	ID                    string     `json:"id"`
	TrackingCode          string     `json:"trackingCode"`
	Title                 string     `json:"title,omitempty"`
	Description           string     `json:"description,omitempty"`
	Size                  string     `json:"size,omitempty"`
	Weight                float64    `json:"weight,omitempty"`
	Status                string     `json:"status"`
	PickupAddress         string     `json:"pickupAddress,omitempty"`
	DeliveryAddress       string     `json:"deliveryAddress,omitempty"`
	Price                 float64    `json:"price,omitempty"`
	PickupTime            *time.Time `json:"pickupTime,omitempty"`
	DeliveryTime          *time.Time `json:"deliveryTime,omitempty"`
	EstimatedDeliveryTime *time.Time `json:"estimatedDeliveryTime,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt,omitempty"`
}

// Статусы матча (серверные, верхним регистром).
const (
	MatchStatusPending   = "PENDING"
	MatchStatusAccepted  = "ACCEPTED"
	MatchStatusRejected  = "REJECTED"
	MatchStatusCancelled = "CANCELLED"
	MatchStatusCompleted = "COMPLETED"
	MatchStatusExpired   = "EXPIRED"
)

// CarrierMatch — пара "посылка-перевозчик", предложенная или подтверждённая.
type CarrierMatch struct {
	ID                  string     `json:"id"`
	PackageID           string     `json:"packageId"`
	CarrierID           string     `json:"carrierId"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"createdAt"`
	ResponseTime        *time.Time `json:"responseTime,omitempty"`
	CarrierNotes        *string    `json:"carrierNotes,omitempty"`
	CarrierPickupCode   *string    `json:"carrierPickupCode,omitempty"`
	CarrierDeliveryCode *string    `json:"carrierDeliveryCode,omitempty"`
	Compensation        *float64   `json:"compensation,omitempty"`
}

// Bucket — клиентская корзина матча, определяется только статусом.
type Bucket string

const (
	BucketPending Bucket = "pending"
	BucketActive  Bucket = "active"
	BucketHistory Bucket = "history"
)

// BucketFor относит статус к одной из трёх корзин.
// Неизвестные статусы считаем историей: их нельзя показывать как действующие.
func BucketFor(status string) Bucket {
	switch status {
	case MatchStatusPending:
		return BucketPending
	case MatchStatusAccepted:
		return BucketActive
	default:
		return BucketHistory
	}
}

// Buckets — снимок трёх корзин для слоя представления.
type Buckets struct {
	Pending []*CarrierMatch `json:"pending"`
	Active  []*CarrierMatch `json:"active"`
	History []*CarrierMatch `json:"history"`
}

// RouteDeviation — насколько перевозчику придётся отклониться от маршрута.
type RouteDeviation struct {
	Distance float64 `json:"distance"`
	Time     float64 `json:"time"`
}

// CarrierCandidate — кандидат из discovery-запроса. Не персистится:
// живёт от ответа сервера до создания матча или ухода с экрана.
type CarrierCandidate struct {
	CarrierID        string          `json:"carrierId"`
	Name             string          `json:"name,omitempty"`
	VehicleType      string          `json:"vehicleType,omitempty"`
	Rating           float64         `json:"rating,omitempty"`
	TotalDeliveries  int             `json:"totalDeliveries,omitempty"`
	MatchScore       float64         `json:"matchScore"`
	Compensation     float64         `json:"compensation"`
	EstimatedArrival string          `json:"estimatedArrival,omitempty"`
	RouteDeviation   *RouteDeviation `json:"routeDeviation,omitempty"`
}
