package transport

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/edusuite/usafiri/core"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrRouteNotFound       = errors.New("route not found")
	ErrDuplicateAllocation = errors.New("student already has a transport allocation")
	ErrDuplicateKey        = errors.New("a record with this value already exists")
	// ErrProtected is returned when a hard delete is blocked by rows that
	// still reference the record.
	ErrProtected = errors.New("record is still referenced by dependent records")
)

type (
	Repository interface {
		CreateVehicle(ctx context.Context, v Vehicle) (Vehicle, error)
		QueryVehicles(ctx context.Context) ([]Vehicle, error)
		UpdateVehicle(ctx context.Context, id string, values map[string]interface{}) (Vehicle, error)
		DeleteVehicle(ctx context.Context, id string) error

		CreatePickupPoint(ctx context.Context, p PickupPoint) (PickupPoint, error)
		QueryPickupPoints(ctx context.Context) ([]PickupPoint, error)
		UpdatePickupPoint(ctx context.Context, id string, values map[string]interface{}) (PickupPoint, error)
		DeletePickupPoint(ctx context.Context, id string) error

		CreateFeeStructure(ctx context.Context, f FeeStructure) (FeeStructure, error)
		QueryFeeStructures(ctx context.Context) ([]FeeStructure, error)
		UpdateFeeStructure(ctx context.Context, id string, values map[string]interface{}) (FeeStructure, error)
		DeleteFeeStructure(ctx context.Context, id string) error

		// CreateRoute inserts the route and its inline stops in one transaction.
		CreateRoute(ctx context.Context, r Route) (Route, error)
		// QueryRoutes returns all routes with fee structure, ordered stops and
		// active vehicle assignments preloaded.
		QueryRoutes(ctx context.Context) ([]Route, error)
		// UpdateRoute applies the field updates and, when stops is non-nil,
		// replaces the route's stop list in full, all in one transaction.
		UpdateRoute(ctx context.Context, id string, values map[string]interface{}, stops []RouteStop, replaceStops bool) (Route, error)
		DeleteRoute(ctx context.Context, id string) error

		CreateVehicleAssignment(ctx context.Context, va VehicleAssignment) (VehicleAssignment, error)

		// CreateAllocation atomically rejects duplicate allocations, inserts the
		// allocation and, when the route carries a fee structure, inserts a
		// pending StudentFeeRecord for the current calendar month.
		CreateAllocation(ctx context.Context, a Allocation) (Allocation, error)
		QueryAllocations(ctx context.Context) ([]Allocation, error)
		DeleteAllocation(ctx context.Context, id string) error

		// QueryStudentFees returns all fee records, newest first.
		QueryStudentFees(ctx context.Context) ([]StudentFeeRecord, error)
		UpdateStudentFeeStatus(ctx context.Context, id, status string) (StudentFeeRecord, error)
		DeleteStudentFee(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Vehicles

func (svc *Service) CreateVehicle(ctx context.Context, nv NewVehicle) (Vehicle, error) {
	v := Vehicle{
		VehicleNumber: core.CleanString(nv.VehicleNumber),
		DriverName:    core.CleanString(nv.DriverName),
		HelperName:    core.CleanString(nv.HelperName),
		ContactNumber: core.CleanString(nv.ContactNumber),
		Capacity:      nv.Capacity,
	}
	return svc.repo.CreateVehicle(ctx, v)
}

func (svc *Service) QueryVehicles(ctx context.Context) ([]Vehicle, error) {
	return svc.repo.QueryVehicles(ctx)
}

func (svc *Service) UpdateVehicle(ctx context.Context, id string, uv UpdateVehicle) (Vehicle, error) {
	values := make(map[string]interface{})
	setString(values, "vehicle_number", uv.VehicleNumber)
	setString(values, "driver_name", uv.DriverName)
	setString(values, "helper_name", uv.HelperName)
	setString(values, "contact_number", uv.ContactNumber)
	if uv.Capacity > 0 {
		values["capacity"] = uv.Capacity
	}
	return svc.repo.UpdateVehicle(ctx, id, values)
}

func (svc *Service) DeleteVehicle(ctx context.Context, id string) error {
	return svc.repo.DeleteVehicle(ctx, id)
}

// Pickup points

func (svc *Service) CreatePickupPoint(ctx context.Context, np NewPickupPoint) (PickupPoint, error) {
	return svc.repo.CreatePickupPoint(ctx, PickupPoint{
		Name:    core.CleanString(np.Name),
		Address: core.CleanString(np.Address),
	})
}

func (svc *Service) QueryPickupPoints(ctx context.Context) ([]PickupPoint, error) {
	return svc.repo.QueryPickupPoints(ctx)
}

func (svc *Service) UpdatePickupPoint(ctx context.Context, id string, up UpdatePickupPoint) (PickupPoint, error) {
	values := make(map[string]interface{})
	setString(values, "name", up.Name)
	setString(values, "address", up.Address)
	return svc.repo.UpdatePickupPoint(ctx, id, values)
}

func (svc *Service) DeletePickupPoint(ctx context.Context, id string) error {
	return svc.repo.DeletePickupPoint(ctx, id)
}

// Fee structures

func (svc *Service) CreateFeeStructure(ctx context.Context, nf NewFeeStructure) (FeeStructure, error) {
	f := FeeStructure{
		Type:        nf.Type,
		Amount:      nf.Amount,
		Description: nf.Description,
	}
	if nf.EffectiveDate != "" {
		date, err := parseDate(nf.EffectiveDate)
		if err != nil {
			return FeeStructure{}, core.NewValidationError(err, core.FieldError{Field: "effectiveDate", Error: "invalid date"})
		}
		f.EffectiveDate = date
	} else {
		f.EffectiveDate = NowFunc().UTC()
	}
	return svc.repo.CreateFeeStructure(ctx, f)
}

func (svc *Service) QueryFeeStructures(ctx context.Context) ([]FeeStructure, error) {
	return svc.repo.QueryFeeStructures(ctx)
}

func (svc *Service) UpdateFeeStructure(ctx context.Context, id string, uf UpdateFeeStructure) (FeeStructure, error) {
	values := make(map[string]interface{})
	setString(values, "type", uf.Type)
	setString(values, "description", uf.Description)
	if uf.Amount != nil {
		values["amount"] = *uf.Amount
	}
	if uf.EffectiveDate != "" {
		date, err := parseDate(uf.EffectiveDate)
		if err != nil {
			return FeeStructure{}, core.NewValidationError(err, core.FieldError{Field: "effectiveDate", Error: "invalid date"})
		}
		values["effective_date"] = date
	}
	return svc.repo.UpdateFeeStructure(ctx, id, values)
}

func (svc *Service) DeleteFeeStructure(ctx context.Context, id string) error {
	return svc.repo.DeleteFeeStructure(ctx, id)
}

// Routes

func (svc *Service) CreateRoute(ctx context.Context, nr NewRoute) (Route, error) {
	r := Route{
		Name:       core.CleanString(nr.Name),
		StartPoint: core.CleanString(nr.StartPoint),
		EndPoint:   core.CleanString(nr.EndPoint),
	}
	if nr.FeeStructureID != "" {
		r.FeeStructureID = &nr.FeeStructureID
	}
	for _, s := range nr.Stops {
		r.Stops = append(r.Stops, RouteStop{
			PickupPointID: s.PickupPointID,
			SequenceOrder: s.SequenceOrder,
		})
	}
	return svc.repo.CreateRoute(ctx, r)
}

func (svc *Service) QueryRoutes(ctx context.Context) ([]Route, error) {
	return svc.repo.QueryRoutes(ctx)
}

// UpdateRoute applies a partial update; a supplied stop list replaces the
// existing ordered stop associations in full, sequence numbers taken from the
// caller as-is.
func (svc *Service) UpdateRoute(ctx context.Context, id string, ur UpdateRoute) (Route, error) {
	values := make(map[string]interface{})
	setString(values, "name", ur.Name)
	setString(values, "start_point", ur.StartPoint)
	setString(values, "end_point", ur.EndPoint)
	setString(values, "fee_structure_id", ur.FeeStructureID)

	var stops []RouteStop
	if ur.Stops != nil {
		stops = make([]RouteStop, 0, len(*ur.Stops))
		for _, s := range *ur.Stops {
			stops = append(stops, RouteStop{
				RouteID:       id,
				PickupPointID: s.PickupPointID,
				SequenceOrder: s.SequenceOrder,
			})
		}
	}
	return svc.repo.UpdateRoute(ctx, id, values, stops, ur.Stops != nil)
}

func (svc *Service) DeleteRoute(ctx context.Context, id string) error {
	return svc.repo.DeleteRoute(ctx, id)
}

// AssignVehicle creates an active vehicle-route assignment.
func (svc *Service) AssignVehicle(ctx context.Context, av AssignVehicle) (VehicleAssignment, error) {
	return svc.repo.CreateVehicleAssignment(ctx, VehicleAssignment{
		RouteID:   av.RouteID,
		VehicleID: av.VehicleID,
		IsActive:  true,
	})
}

// Allocations

// Allocate assigns a student to a route and vehicle. The duplicate check,
// allocation insert and conditional fee generation run as one atomic unit in
// the repository; the fee record is a side effect and is not returned.
func (svc *Service) Allocate(ctx context.Context, na NewAllocation) (Allocation, error) {
	a := Allocation{
		StudentID: na.StudentID,
		RouteID:   na.RouteID,
		VehicleID: na.VehicleID,
	}
	if na.PickupPointID != "" {
		a.PickupPointID = &na.PickupPointID
	}
	if na.StartDate != "" {
		date, err := parseDate(na.StartDate)
		if err != nil {
			return Allocation{}, core.NewValidationError(err, core.FieldError{Field: "startDate", Error: "invalid date"})
		}
		a.StartDate = date
	} else {
		a.StartDate = NowFunc().UTC()
	}
	return svc.repo.CreateAllocation(ctx, a)
}

func (svc *Service) QueryAllocations(ctx context.Context) ([]Allocation, error) {
	return svc.repo.QueryAllocations(ctx)
}

func (svc *Service) DeleteAllocation(ctx context.Context, id string) error {
	return svc.repo.DeleteAllocation(ctx, id)
}

// Student fees

func (svc *Service) QueryStudentFees(ctx context.Context) ([]StudentFeeRecord, error) {
	return svc.repo.QueryStudentFees(ctx)
}

func (svc *Service) UpdateStudentFeeStatus(ctx context.Context, id string, uf UpdateFeeStatus) (StudentFeeRecord, error) {
	return svc.repo.UpdateStudentFeeStatus(ctx, id, uf.Status)
}

func (svc *Service) DeleteStudentFee(ctx context.Context, id string) error {
	return svc.repo.DeleteStudentFee(ctx, id)
}

func setString(values map[string]interface{}, col, val string) {
	if val != "" {
		values[col] = core.CleanString(val)
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
