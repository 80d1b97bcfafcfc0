package transport

import (
	"fmt"
	"time"

	"github.com/edusuite/usafiri/core/student"
)

// Fee types (periodic billing categories)
const (
	FeeTypeMonthly   = "MONTHLY"
	FeeTypeQuarterly = "QUARTERLY"
	FeeTypeOneTime   = "ONE_TIME"
)

// Student fee record statuses
const (
	FeeStatusPending = "PENDING"
	FeeStatusPaid    = "PAID"
)

var (
	AllFeeTypes    = []string{FeeTypeMonthly, FeeTypeQuarterly, FeeTypeOneTime}
	AllFeeStatuses = []string{FeeStatusPending, FeeStatusPaid}

	NowFunc = time.Now // mockable
)

type Vehicle struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	VehicleNumber string    `json:"vehicleNumber" gorm:"uniqueIndex;not null"`
	DriverName    string    `json:"driverName" gorm:"not null"`
	HelperName    string    `json:"helperName,omitempty"`
	ContactNumber string    `json:"contactNumber" gorm:"not null"`
	Capacity      int       `json:"capacity,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Vehicle) TableName() string { return "vehicles" }

type PickupPoint struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Address   string    `json:"address" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (PickupPoint) TableName() string { return "pickup_points" }

// FeeStructure is a priced billing template attachable to a route.
type FeeStructure struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	Type          string    `json:"type" gorm:"not null"`
	Amount        float64   `json:"amount" gorm:"not null"`
	Description   string    `json:"description,omitempty"`
	EffectiveDate time.Time `json:"effectiveDate"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (FeeStructure) TableName() string { return "transport_fee_structures" }

type Route struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name           string    `json:"name" gorm:"not null"`
	StartPoint     string    `json:"startPoint" gorm:"not null"`
	EndPoint       string    `json:"endPoint" gorm:"not null"`
	FeeStructureID *string   `json:"transportFeeId,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	FeeStructure       *FeeStructure       `json:"transportFee,omitempty" gorm:"foreignKey:FeeStructureID"`
	Stops              []RouteStop         `json:"stops,omitempty" gorm:"foreignKey:RouteID"`
	VehicleAssignments []VehicleAssignment `json:"vehicleAssignments,omitempty" gorm:"foreignKey:RouteID"`
}

func (Route) TableName() string { return "routes" }

// RouteStop associates a PickupPoint to a Route with a caller-provided
// sequence number. Stop lists are replaced wholesale on route update.
type RouteStop struct {
	ID            string `json:"id" gorm:"type:uuid;primaryKey"`
	RouteID       string `json:"routeId" gorm:"type:uuid;not null;index"`
	PickupPointID string `json:"pickupPointId" gorm:"type:uuid;not null"`
	SequenceOrder int    `json:"sequenceOrder" gorm:"not null"`

	PickupPoint *PickupPoint `json:"pickupPoint,omitempty" gorm:"foreignKey:PickupPointID"`
}

func (RouteStop) TableName() string { return "route_pickup_points" }

// VehicleAssignment links a Vehicle to a Route; only active assignments count.
type VehicleAssignment struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	RouteID   string    `json:"routeId" gorm:"type:uuid;not null;index"`
	VehicleID string    `json:"vehicleId" gorm:"type:uuid;not null"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"createdAt"`

	Vehicle *Vehicle `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID"`
}

func (VehicleAssignment) TableName() string { return "vehicle_route_assignments" }

// Allocation assigns one Student to one Route and Vehicle.
// At most one allocation may exist per student.
type Allocation struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	StudentID     string    `json:"studentId" gorm:"type:uuid;uniqueIndex;not null"`
	RouteID       string    `json:"routeId" gorm:"type:uuid;not null"`
	VehicleID     string    `json:"vehicleId" gorm:"type:uuid;not null"`
	PickupPointID *string   `json:"pickupPointId,omitempty" gorm:"type:uuid"`
	StartDate     time.Time `json:"startDate"`
	CreatedAt     time.Time `json:"createdAt"`

	Student     *student.Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Route       *Route           `json:"route,omitempty" gorm:"foreignKey:RouteID"`
	Vehicle     *Vehicle         `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID"`
	PickupPoint *PickupPoint     `json:"pickupPoint,omitempty" gorm:"foreignKey:PickupPointID"`
}

func (Allocation) TableName() string { return "transport_allocations" }

// StudentFeeRecord is a billable instance generated for a student when they
// are allocated to a route carrying a fee structure.
type StudentFeeRecord struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	StudentID   string    `json:"studentId" gorm:"type:uuid;not null;index"`
	Description string    `json:"feeDescription" gorm:"not null"`
	Month       string    `json:"month" gorm:"not null"`
	Amount      float64   `json:"amount" gorm:"not null"`
	Status      string    `json:"status" gorm:"not null;default:PENDING"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Student *student.Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (StudentFeeRecord) TableName() string { return "student_fee_records" }

// MonthLabel renders the billing period label for a point in time,
// e.g. "March 2025".
func MonthLabel(t time.Time) string {
	return t.Format("January 2006")
}

// FeeDescription renders the human-readable description of a generated fee.
func FeeDescription(feeType, month string) string {
	return fmt.Sprintf("Transport Fee - %s (%s)", feeType, month)
}

// Inputs

type NewVehicle struct {
	VehicleNumber string `json:"vehicleNumber" validate:"required"`
	DriverName    string `json:"driverName" validate:"required"`
	HelperName    string `json:"helperName"`
	ContactNumber string `json:"contactNumber" validate:"required"`
	Capacity      int    `json:"capacity" validate:"omitempty,min=1"`
}

type UpdateVehicle struct {
	VehicleNumber string `json:"vehicleNumber"`
	DriverName    string `json:"driverName"`
	HelperName    string `json:"helperName"`
	ContactNumber string `json:"contactNumber"`
	Capacity      int    `json:"capacity" validate:"omitempty,min=1"`
}

type NewPickupPoint struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
}

type UpdatePickupPoint struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type NewFeeStructure struct {
	Type          string  `json:"type" validate:"required,feetype"`
	Amount        float64 `json:"amount" validate:"min=0"`
	Description   string  `json:"description"`
	EffectiveDate string  `json:"effectiveDate"`
}

type UpdateFeeStructure struct {
	Type          string   `json:"type" validate:"omitempty,feetype"`
	Amount        *float64 `json:"amount" validate:"omitempty,min=0"`
	Description   string   `json:"description"`
	EffectiveDate string   `json:"effectiveDate"`
}

type NewRouteStop struct {
	PickupPointID string `json:"pickupPointId" validate:"required"`
	SequenceOrder int    `json:"sequenceOrder" validate:"min=1"`
}

type NewRoute struct {
	Name           string         `json:"name" validate:"required"`
	StartPoint     string         `json:"startPoint" validate:"required"`
	EndPoint       string         `json:"endPoint" validate:"required"`
	FeeStructureID string         `json:"transportFeeId"`
	Stops          []NewRouteStop `json:"stops" validate:"omitempty,dive"`
}

// UpdateRoute carries a partial route update. A nil Stops leaves the stop
// list untouched; a non-nil Stops (including an empty one) replaces it in full.
type UpdateRoute struct {
	Name           string          `json:"name"`
	StartPoint     string          `json:"startPoint"`
	EndPoint       string          `json:"endPoint"`
	FeeStructureID string          `json:"transportFeeId"`
	Stops          *[]NewRouteStop `json:"stops" validate:"omitempty,dive"`
}

type AssignVehicle struct {
	VehicleID string `json:"vehicleId" validate:"required"`
	RouteID   string `json:"routeId" validate:"required"`
}

type NewAllocation struct {
	StudentID     string `json:"studentId" validate:"required"`
	RouteID       string `json:"routeId" validate:"required"`
	VehicleID     string `json:"vehicleId" validate:"required"`
	PickupPointID string `json:"pickupPointId"`
	StartDate     string `json:"startDate"`
}

type UpdateFeeStatus struct {
	Status string `json:"status" validate:"required,feestatus"`
}
