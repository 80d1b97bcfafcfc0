package gormrepos

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/edusuite/usafiri/core/student"
	"github.com/edusuite/usafiri/core/transport"
	testutil "github.com/edusuite/usafiri/tests"
)

func createStudent(t *testing.T, db *gorm.DB, name, rollNo string) student.Student {
	t.Helper()
	std, err := NewStudentRepository(db).CreateStudent(context.Background(), student.Student{
		Name:   name,
		RollNo: rollNo,
		Grade:  "5",
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return std
}

func createVehicle(t *testing.T, repo *transportRepository, number string) transport.Vehicle {
	t.Helper()
	v, err := repo.CreateVehicle(context.Background(), transport.Vehicle{
		VehicleNumber: number,
		DriverName:    "D",
		ContactNumber: "0000",
	})
	if err != nil {
		t.Fatalf("createVehicle() failed: %v", err)
	}
	return v
}

func createPickupPoint(t *testing.T, repo *transportRepository, name string) transport.PickupPoint {
	t.Helper()
	p, err := repo.CreatePickupPoint(context.Background(), transport.PickupPoint{Name: name, Address: "addr"})
	if err != nil {
		t.Fatalf("createPickupPoint() failed: %v", err)
	}
	return p
}

func createFeeStructure(t *testing.T, repo *transportRepository, amount float64) transport.FeeStructure {
	t.Helper()
	f, err := repo.CreateFeeStructure(context.Background(), transport.FeeStructure{
		Type:          transport.FeeTypeMonthly,
		Amount:        amount,
		EffectiveDate: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createFeeStructure() failed: %v", err)
	}
	return f
}

func createRoute(t *testing.T, repo *transportRepository, name string, feeID *string, stops ...transport.RouteStop) transport.Route {
	t.Helper()
	r, err := repo.CreateRoute(context.Background(), transport.Route{
		Name:           name,
		StartPoint:     "A",
		EndPoint:       "B",
		FeeStructureID: feeID,
		Stops:          stops,
	})
	if err != nil {
		t.Fatalf("createRoute() failed: %v", err)
	}
	return r
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&count).Error; err != nil {
		t.Fatalf("countRows() failed: %v", err)
	}
	return count
}

func TestTransportRepository_CreateAllocation(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewTransportRepository(db)
	ctx := context.Background()

	fee := createFeeStructure(t, repo, 150)
	vehicle := createVehicle(t, repo, "KCA 001A")
	feeRoute := createRoute(t, repo, "North", &fee.ID)
	freeRoute := createRoute(t, repo, "South", nil)

	t.Run("fee-linked route generates one pending fee", func(t *testing.T) {
		std := createStudent(t, db, "Amina", "R-001")

		a, err := repo.CreateAllocation(ctx, transport.Allocation{
			StudentID: std.ID,
			RouteID:   feeRoute.ID,
			VehicleID: vehicle.ID,
			StartDate: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("CreateAllocation() failed: %v", err)
		}
		if a.ID == "" {
			t.Error("CreateAllocation() did not assign an ID")
		}

		var fees []transport.StudentFeeRecord
		if err = db.Where("student_id = ?", std.ID).Find(&fees).Error; err != nil {
			t.Fatalf("finding fees failed: %v", err)
		}
		if len(fees) != 1 {
			t.Fatalf("fee records = %d, want 1", len(fees))
		}
		rec := fees[0]
		if rec.Status != transport.FeeStatusPending {
			t.Errorf("fee status = %s, want %s", rec.Status, transport.FeeStatusPending)
		}
		if rec.Amount != fee.Amount {
			t.Errorf("fee amount = %v, want %v", rec.Amount, fee.Amount)
		}
		wantMonth := transport.MonthLabel(time.Now())
		if rec.Month != wantMonth {
			t.Errorf("fee month = %s, want %s", rec.Month, wantMonth)
		}
		if rec.Description != transport.FeeDescription(fee.Type, wantMonth) {
			t.Errorf("fee description = %s", rec.Description)
		}
	})

	t.Run("duplicate allocation rejected without a fee row", func(t *testing.T) {
		std := createStudent(t, db, "Brian", "R-002")

		if _, err := repo.CreateAllocation(ctx, transport.Allocation{
			StudentID: std.ID, RouteID: feeRoute.ID, VehicleID: vehicle.ID, StartDate: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("CreateAllocation() failed: %v", err)
		}

		_, err := repo.CreateAllocation(ctx, transport.Allocation{
			StudentID: std.ID, RouteID: freeRoute.ID, VehicleID: vehicle.ID, StartDate: time.Now().UTC(),
		})
		if errors.Cause(err) != transport.ErrDuplicateAllocation {
			t.Fatalf("CreateAllocation() error = %v, want %v", err, transport.ErrDuplicateAllocation)
		}

		if got := countRows(t, db, &transport.Allocation{}, "student_id = ?", std.ID); got != 1 {
			t.Errorf("allocations = %d, want 1", got)
		}
		if got := countRows(t, db, &transport.StudentFeeRecord{}, "student_id = ?", std.ID); got != 1 {
			t.Errorf("fee records = %d, want 1 (none from the rejected attempt)", got)
		}
	})

	t.Run("fee-less route generates no fee", func(t *testing.T) {
		std := createStudent(t, db, "Carol", "R-003")

		if _, err := repo.CreateAllocation(ctx, transport.Allocation{
			StudentID: std.ID, RouteID: freeRoute.ID, VehicleID: vehicle.ID, StartDate: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("CreateAllocation() failed: %v", err)
		}
		if got := countRows(t, db, &transport.StudentFeeRecord{}, "student_id = ?", std.ID); got != 0 {
			t.Errorf("fee records = %d, want 0", got)
		}
	})

	t.Run("missing route rolls the whole allocation back", func(t *testing.T) {
		std := createStudent(t, db, "David", "R-004")

		_, err := repo.CreateAllocation(ctx, transport.Allocation{
			StudentID: std.ID,
			RouteID:   "5b9e4a55-9a43-4a5f-8a10-3b7e5f3f1a70", // no such route
			VehicleID: vehicle.ID,
			StartDate: time.Now().UTC(),
		})
		if errors.Cause(err) == nil {
			t.Fatal("CreateAllocation() expected an error for a missing route")
		}

		if got := countRows(t, db, &transport.Allocation{}, "student_id = ?", std.ID); got != 0 {
			t.Errorf("allocations = %d, want 0 after rollback", got)
		}
		if got := countRows(t, db, &transport.StudentFeeRecord{}, "student_id = ?", std.ID); got != 0 {
			t.Errorf("fee records = %d, want 0 after rollback", got)
		}
	})
}

func TestTransportRepository_UpdateRoute_replacesStops(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewTransportRepository(db)
	ctx := context.Background()

	p1 := createPickupPoint(t, repo, "Market")
	p2 := createPickupPoint(t, repo, "Mosque")
	p3 := createPickupPoint(t, repo, "Stadium")

	route := createRoute(t, repo, "East", nil,
		transport.RouteStop{PickupPointID: p1.ID, SequenceOrder: 1},
		transport.RouteStop{PickupPointID: p2.ID, SequenceOrder: 2},
	)
	if len(route.Stops) != 2 {
		t.Fatalf("created route stops = %d, want 2", len(route.Stops))
	}

	updated, err := repo.UpdateRoute(ctx, route.ID, map[string]interface{}{"name": "East v2"}, []transport.RouteStop{
		{RouteID: route.ID, PickupPointID: p3.ID, SequenceOrder: 1},
		{RouteID: route.ID, PickupPointID: p1.ID, SequenceOrder: 2},
		{RouteID: route.ID, PickupPointID: p2.ID, SequenceOrder: 3},
	}, true)
	if err != nil {
		t.Fatalf("UpdateRoute() failed: %v", err)
	}

	if updated.Name != "East v2" {
		t.Errorf("route name = %s, want East v2", updated.Name)
	}
	if len(updated.Stops) != 3 {
		t.Fatalf("route stops = %d, want 3", len(updated.Stops))
	}
	wantOrder := []string{p3.ID, p1.ID, p2.ID}
	for i, stop := range updated.Stops {
		if stop.PickupPointID != wantOrder[i] {
			t.Errorf("stop[%d] = %s, want %s", i, stop.PickupPointID, wantOrder[i])
		}
		if stop.SequenceOrder != i+1 {
			t.Errorf("stop[%d] sequence = %d, want %d", i, stop.SequenceOrder, i+1)
		}
	}

	// no leftovers from the old list
	if got := countRows(t, db, &transport.RouteStop{}, "route_id = ?", route.ID); got != 3 {
		t.Errorf("stop rows = %d, want 3", got)
	}

	// nil stop list leaves associations untouched
	updated, err = repo.UpdateRoute(ctx, route.ID, map[string]interface{}{"name": "East v3"}, nil, false)
	if err != nil {
		t.Fatalf("UpdateRoute() failed: %v", err)
	}
	if len(updated.Stops) != 3 {
		t.Errorf("route stops = %d, want 3 after field-only update", len(updated.Stops))
	}

	// unknown route
	if _, err = repo.UpdateRoute(ctx, "1e7b8d5e-37d9-4f24-abc8-3c6e5f3f1a70", map[string]interface{}{"name": "x"}, nil, false); errors.Cause(err) != transport.ErrRouteNotFound {
		t.Errorf("UpdateRoute() error = %v, want %v", err, transport.ErrRouteNotFound)
	}
}

func TestTransportRepository_protectedDeletes(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewTransportRepository(db)
	ctx := context.Background()

	vehicle := createVehicle(t, repo, "KCB 002B")
	route := createRoute(t, repo, "West", nil)
	std := createStudent(t, db, "Esther", "R-010")

	if _, err := repo.CreateAllocation(ctx, transport.Allocation{
		StudentID: std.ID, RouteID: route.ID, VehicleID: vehicle.ID, StartDate: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreateAllocation() failed: %v", err)
	}

	if err := repo.DeleteRoute(ctx, route.ID); errors.Cause(err) != transport.ErrProtected {
		t.Errorf("DeleteRoute() error = %v, want %v", err, transport.ErrProtected)
	}
	if got := countRows(t, db, &transport.Route{}, "id = ?", route.ID); got != 1 {
		t.Errorf("route rows = %d, want 1 after blocked delete", got)
	}

	// deleting the allocation unblocks the route
	var alloc transport.Allocation
	if err := db.First(&alloc, "student_id = ?", std.ID).Error; err != nil {
		t.Fatalf("finding allocation failed: %v", err)
	}
	if err := repo.DeleteAllocation(ctx, alloc.ID); err != nil {
		t.Fatalf("DeleteAllocation() failed: %v", err)
	}
	if err := repo.DeleteRoute(ctx, route.ID); err != nil {
		t.Fatalf("DeleteRoute() failed: %v", err)
	}

	// unknown ids surface not-found
	if err := repo.DeleteVehicle(ctx, "2e7b8d5e-37d9-4f24-abc8-3c6e5f3f1a70"); errors.Cause(err) != transport.ErrNotFound {
		t.Errorf("DeleteVehicle() error = %v, want %v", err, transport.ErrNotFound)
	}
}

func TestTransportRepository_vehicleUniqueness(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewTransportRepository(db)
	ctx := context.Background()

	createVehicle(t, repo, "KCC 003C")
	_, err := repo.CreateVehicle(ctx, transport.Vehicle{
		VehicleNumber: "KCC 003C",
		DriverName:    "D2",
		ContactNumber: "1111",
	})
	if errors.Cause(err) != transport.ErrDuplicateKey {
		t.Errorf("CreateVehicle() error = %v, want %v", err, transport.ErrDuplicateKey)
	}
}

func TestTransportRepository_QueryRoutes_preloads(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewTransportRepository(db)
	ctx := context.Background()

	fee := createFeeStructure(t, repo, 200)
	p1 := createPickupPoint(t, repo, "Gate A")
	p2 := createPickupPoint(t, repo, "Gate B")
	vehicle := createVehicle(t, repo, "KCD 004D")

	route := createRoute(t, repo, "Loop", &fee.ID,
		transport.RouteStop{PickupPointID: p2.ID, SequenceOrder: 2},
		transport.RouteStop{PickupPointID: p1.ID, SequenceOrder: 1},
	)
	if _, err := repo.CreateVehicleAssignment(ctx, transport.VehicleAssignment{
		RouteID: route.ID, VehicleID: vehicle.ID, IsActive: true,
	}); err != nil {
		t.Fatalf("CreateVehicleAssignment() failed: %v", err)
	}

	routes, err := repo.QueryRoutes(ctx)
	if err != nil {
		t.Fatalf("QueryRoutes() failed: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("routes = %d, want 1", len(routes))
	}
	got := routes[0]

	if got.FeeStructure == nil || got.FeeStructure.ID != fee.ID {
		t.Error("QueryRoutes() did not preload the fee structure")
	}
	if len(got.Stops) != 2 || got.Stops[0].SequenceOrder != 1 || got.Stops[1].SequenceOrder != 2 {
		t.Errorf("QueryRoutes() stops not ordered by sequence: %+v", got.Stops)
	}
	if got.Stops[0].PickupPoint == nil || got.Stops[0].PickupPoint.ID != p1.ID {
		t.Error("QueryRoutes() did not preload pickup points")
	}
	if len(got.VehicleAssignments) != 1 || got.VehicleAssignments[0].Vehicle == nil {
		t.Error("QueryRoutes() did not preload active vehicle assignments")
	}
}
