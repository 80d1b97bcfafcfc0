package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/edusuite/usafiri/core/transport"
	"github.com/edusuite/usafiri/storage/database"
)

type transportRepository struct {
	db *gorm.DB
}

var _ transport.Repository = (*transportRepository)(nil) // interface compliance check

func NewTransportRepository(db *gorm.DB) *transportRepository {
	return &transportRepository{db: db}
}

// trapWriteErr maps driver constraint violations to domain errors.
func trapWriteErr(err error, msg string) error {
	switch {
	case database.IsDuplicate(err):
		return transport.ErrDuplicateKey
	case database.IsFKViolation(err):
		return transport.ErrProtected
	}
	return errors.Wrap(err, msg)
}

// Vehicles

func (repo transportRepository) CreateVehicle(ctx context.Context, v transport.Vehicle) (transport.Vehicle, error) {
	v.ID = uuid.New().String()
	if err := repo.db.WithContext(ctx).Create(&v).Error; err != nil {
		return transport.Vehicle{}, trapWriteErr(err, "inserting vehicle")
	}
	return v, nil
}

func (repo transportRepository) QueryVehicles(ctx context.Context) ([]transport.Vehicle, error) {
	var vehicles []transport.Vehicle
	if err := repo.db.WithContext(ctx).Order("created_at DESC").Find(&vehicles).Error; err != nil {
		return nil, errors.Wrap(err, "querying vehicles")
	}
	return vehicles, nil
}

func (repo transportRepository) UpdateVehicle(ctx context.Context, id string, values map[string]interface{}) (transport.Vehicle, error) {
	if err := repo.update(ctx, &transport.Vehicle{}, id, values, "updating vehicle"); err != nil {
		return transport.Vehicle{}, err
	}
	var v transport.Vehicle
	if err := repo.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return transport.Vehicle{}, errors.Wrap(err, "reloading vehicle")
	}
	return v, nil
}

func (repo transportRepository) DeleteVehicle(ctx context.Context, id string) error {
	return repo.delete(ctx, &transport.Vehicle{}, id, "deleting vehicle")
}

// Pickup points

func (repo transportRepository) CreatePickupPoint(ctx context.Context, p transport.PickupPoint) (transport.PickupPoint, error) {
	p.ID = uuid.New().String()
	if err := repo.db.WithContext(ctx).Create(&p).Error; err != nil {
		return transport.PickupPoint{}, trapWriteErr(err, "inserting pickup point")
	}
	return p, nil
}

func (repo transportRepository) QueryPickupPoints(ctx context.Context) ([]transport.PickupPoint, error) {
	var points []transport.PickupPoint
	if err := repo.db.WithContext(ctx).Order("created_at DESC").Find(&points).Error; err != nil {
		return nil, errors.Wrap(err, "querying pickup points")
	}
	return points, nil
}

func (repo transportRepository) UpdatePickupPoint(ctx context.Context, id string, values map[string]interface{}) (transport.PickupPoint, error) {
	if err := repo.update(ctx, &transport.PickupPoint{}, id, values, "updating pickup point"); err != nil {
		return transport.PickupPoint{}, err
	}
	var p transport.PickupPoint
	if err := repo.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return transport.PickupPoint{}, errors.Wrap(err, "reloading pickup point")
	}
	return p, nil
}

func (repo transportRepository) DeletePickupPoint(ctx context.Context, id string) error {
	return repo.delete(ctx, &transport.PickupPoint{}, id, "deleting pickup point")
}

// Fee structures

func (repo transportRepository) CreateFeeStructure(ctx context.Context, f transport.FeeStructure) (transport.FeeStructure, error) {
	f.ID = uuid.New().String()
	if err := repo.db.WithContext(ctx).Create(&f).Error; err != nil {
		return transport.FeeStructure{}, trapWriteErr(err, "inserting fee structure")
	}
	return f, nil
}

func (repo transportRepository) QueryFeeStructures(ctx context.Context) ([]transport.FeeStructure, error) {
	var fees []transport.FeeStructure
	if err := repo.db.WithContext(ctx).Order("created_at DESC").Find(&fees).Error; err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	return fees, nil
}

func (repo transportRepository) UpdateFeeStructure(ctx context.Context, id string, values map[string]interface{}) (transport.FeeStructure, error) {
	if err := repo.update(ctx, &transport.FeeStructure{}, id, values, "updating fee structure"); err != nil {
		return transport.FeeStructure{}, err
	}
	var f transport.FeeStructure
	if err := repo.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return transport.FeeStructure{}, errors.Wrap(err, "reloading fee structure")
	}
	return f, nil
}

func (repo transportRepository) DeleteFeeStructure(ctx context.Context, id string) error {
	return repo.delete(ctx, &transport.FeeStructure{}, id, "deleting fee structure")
}

// Routes

func (repo transportRepository) CreateRoute(ctx context.Context, r transport.Route) (transport.Route, error) {
	r.ID = uuid.New().String()
	for i := range r.Stops {
		r.Stops[i].ID = uuid.New().String()
		r.Stops[i].RouteID = r.ID
	}
	// Create inserts the route and its stop associations in one transaction.
	if err := repo.db.WithContext(ctx).Create(&r).Error; err != nil {
		return transport.Route{}, trapWriteErr(err, "inserting route")
	}
	return repo.getRoute(ctx, repo.db, r.ID)
}

func (repo transportRepository) QueryRoutes(ctx context.Context) ([]transport.Route, error) {
	var routes []transport.Route
	err := repo.routeQuery(repo.db.WithContext(ctx)).
		Order("created_at DESC").
		Find(&routes).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying routes")
	}
	return routes, nil
}

// UpdateRoute applies the field updates and, when replaceStops is set, deletes
// the route's stop associations in full and recreates them from the given list,
// all inside one transaction.
func (repo transportRepository) UpdateRoute(ctx context.Context, id string, values map[string]interface{}, stops []transport.RouteStop, replaceStops bool) (transport.Route, error) {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(values) > 0 {
			res := tx.Model(&transport.Route{}).Where("id = ?", id).Updates(values)
			if res.Error != nil {
				return trapWriteErr(res.Error, "updating route")
			}
			if res.RowsAffected == 0 {
				return transport.ErrRouteNotFound
			}
		} else {
			var count int64
			if err := tx.Model(&transport.Route{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return errors.Wrap(err, "checking route")
			}
			if count == 0 {
				return transport.ErrRouteNotFound
			}
		}

		if replaceStops {
			if err := tx.Where("route_id = ?", id).Delete(&transport.RouteStop{}).Error; err != nil {
				return errors.Wrap(err, "clearing route stops")
			}
			for i := range stops {
				stops[i].ID = uuid.New().String()
				stops[i].RouteID = id
			}
			if len(stops) > 0 {
				if err := tx.Create(&stops).Error; err != nil {
					return trapWriteErr(err, "inserting route stops")
				}
			}
		}
		return nil
	})
	if err != nil {
		return transport.Route{}, err
	}
	return repo.getRoute(ctx, repo.db, id)
}

func (repo transportRepository) DeleteRoute(ctx context.Context, id string) error {
	// Stop associations go with the route; allocations and vehicle assignments
	// referencing it block the delete.
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&transport.Route{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return errors.Wrap(err, "checking route")
		}
		if count == 0 {
			return transport.ErrNotFound
		}

		var refs int64
		if err := tx.Model(&transport.Allocation{}).Where("route_id = ?", id).Count(&refs).Error; err != nil {
			return errors.Wrap(err, "checking allocations")
		}
		if refs > 0 {
			return transport.ErrProtected
		}
		if err := tx.Model(&transport.VehicleAssignment{}).Where("route_id = ?", id).Count(&refs).Error; err != nil {
			return errors.Wrap(err, "checking vehicle assignments")
		}
		if refs > 0 {
			return transport.ErrProtected
		}

		if err := tx.Where("route_id = ?", id).Delete(&transport.RouteStop{}).Error; err != nil {
			return errors.Wrap(err, "deleting route stops")
		}
		if err := tx.Where("id = ?", id).Delete(&transport.Route{}).Error; err != nil {
			return trapWriteErr(err, "deleting route")
		}
		return nil
	})
	return err
}

func (repo transportRepository) routeQuery(q *gorm.DB) *gorm.DB {
	return q.
		Preload("FeeStructure").
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_order ASC") }).
		Preload("Stops.PickupPoint").
		Preload("VehicleAssignments", "is_active = ?", true).
		Preload("VehicleAssignments.Vehicle")
}

func (repo transportRepository) getRoute(ctx context.Context, db *gorm.DB, id string) (transport.Route, error) {
	var r transport.Route
	if err := repo.routeQuery(db.WithContext(ctx)).First(&r, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return transport.Route{}, transport.ErrRouteNotFound
		}
		return transport.Route{}, errors.Wrap(err, "finding route")
	}
	return r, nil
}

// Vehicle assignments

func (repo transportRepository) CreateVehicleAssignment(ctx context.Context, va transport.VehicleAssignment) (transport.VehicleAssignment, error) {
	va.ID = uuid.New().String()
	if err := repo.db.WithContext(ctx).Create(&va).Error; err != nil {
		return transport.VehicleAssignment{}, trapWriteErr(err, "inserting vehicle assignment")
	}
	return va, nil
}

// Allocations

// CreateAllocation runs the whole allocate-and-bill sequence as one atomic
// unit: duplicate check, allocation insert, route lookup and conditional fee
// generation all succeed or all roll back. The uniqueness constraint on
// student_id backstops concurrent duplicate checks.
func (repo transportRepository) CreateAllocation(ctx context.Context, a transport.Allocation) (transport.Allocation, error) {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&transport.Allocation{}).Where("student_id = ?", a.StudentID).Count(&count).Error; err != nil {
			return errors.Wrap(err, "checking existing allocation")
		}
		if count > 0 {
			return transport.ErrDuplicateAllocation
		}

		a.ID = uuid.New().String()
		if err := tx.Create(&a).Error; err != nil {
			if database.IsDuplicate(err) {
				return transport.ErrDuplicateAllocation
			}
			return trapWriteErr(err, "inserting allocation")
		}

		var route transport.Route
		if err := tx.Preload("FeeStructure").First(&route, "id = ?", a.RouteID).Error; err != nil {
			if database.IsNotFound(err) {
				return transport.ErrRouteNotFound
			}
			return errors.Wrap(err, "finding route")
		}

		if route.FeeStructure != nil {
			// Billing period derives from the allocation moment, not the fee
			// structure's effective date.
			month := transport.MonthLabel(transport.NowFunc())
			fee := transport.StudentFeeRecord{
				ID:          uuid.New().String(),
				StudentID:   a.StudentID,
				Description: transport.FeeDescription(route.FeeStructure.Type, month),
				Month:       month,
				Amount:      route.FeeStructure.Amount,
				Status:      transport.FeeStatusPending,
			}
			if err := tx.Create(&fee).Error; err != nil {
				return trapWriteErr(err, "inserting student fee record")
			}
		}
		return nil
	})
	if err != nil {
		return transport.Allocation{}, err
	}
	return a, nil
}

func (repo transportRepository) QueryAllocations(ctx context.Context) ([]transport.Allocation, error) {
	var allocations []transport.Allocation
	err := repo.db.WithContext(ctx).
		Preload("Student").
		Preload("Route").
		Preload("Vehicle").
		Preload("PickupPoint").
		Order("created_at DESC").
		Find(&allocations).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying allocations")
	}
	return allocations, nil
}

func (repo transportRepository) DeleteAllocation(ctx context.Context, id string) error {
	return repo.delete(ctx, &transport.Allocation{}, id, "deleting allocation")
}

// Student fees

func (repo transportRepository) QueryStudentFees(ctx context.Context) ([]transport.StudentFeeRecord, error) {
	var fees []transport.StudentFeeRecord
	err := repo.db.WithContext(ctx).
		Preload("Student").
		Order("created_at DESC").
		Find(&fees).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying student fees")
	}
	return fees, nil
}

func (repo transportRepository) UpdateStudentFeeStatus(ctx context.Context, id, status string) (transport.StudentFeeRecord, error) {
	if err := repo.update(ctx, &transport.StudentFeeRecord{}, id, map[string]interface{}{"status": status}, "updating fee status"); err != nil {
		return transport.StudentFeeRecord{}, err
	}
	var fee transport.StudentFeeRecord
	if err := repo.db.WithContext(ctx).Preload("Student").First(&fee, "id = ?", id).Error; err != nil {
		return transport.StudentFeeRecord{}, errors.Wrap(err, "reloading student fee record")
	}
	return fee, nil
}

func (repo transportRepository) DeleteStudentFee(ctx context.Context, id string) error {
	return repo.delete(ctx, &transport.StudentFeeRecord{}, id, "deleting student fee record")
}

// helpers

func (repo transportRepository) update(ctx context.Context, model interface{}, id string, values map[string]interface{}, msg string) error {
	if len(values) == 0 {
		return nil
	}
	res := repo.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return trapWriteErr(res.Error, msg)
	}
	if res.RowsAffected == 0 {
		return transport.ErrNotFound
	}
	return nil
}

func (repo transportRepository) delete(ctx context.Context, model interface{}, id string, msg string) error {
	res := repo.db.WithContext(ctx).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return trapWriteErr(res.Error, msg)
	}
	if res.RowsAffected == 0 {
		return transport.ErrNotFound
	}
	return nil
}
