package student

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hostelpass/internal/qr"
	"hostelpass/internal/shared"
	"hostelpass/internal/testfixtures"
)

func insertStudent(t *testing.T, tdb *testfixtures.TestDB, regNo, hostel string) shared.Student {
	t.Helper()
	st := shared.Student{
		ID:          primitive.NewObjectID(),
		RegNo:       regNo,
		Name:        "Test Student " + regNo,
		Email:       strings.ToLower(regNo) + "@example.com",
		Password:    "irrelevant",
		YearOfStudy: "2",
		Department:  "Computer Science",
		HostelName:  hostel,
		RoomNo:      "A-101",
		CreatedAt:   time.Now(),
	}
	if _, err := tdb.DB.Collection(shared.ColStudents).InsertOne(context.Background(), st); err != nil {
		t.Fatalf("Failed to insert student %s: %v", regNo, err)
	}
	return st
}

func TestStudentService_Integration(t *testing.T) {
	tdb := testfixtures.DB(t)
	tdb.Reset(t, shared.ColStudents, shared.ColParents, shared.ColPLs, shared.ColLogs, shared.ColOutpass)

	mailer := &testfixtures.CaptureSender{}
	svc := NewService(tdb.DB, qr.NewPNGEncoder(), mailer)
	ctx := context.Background()

	st := insertStudent(t, tdb, "2024TST101", "North Block")

	parent := shared.Parent{
		ID:           primitive.NewObjectID(),
		ParentID:     "PAR-T01",
		Name:         "Test Parent",
		Email:        "pl_parent@example.com",
		StudentName:  st.Name,
		StudentRegNo: st.RegNo,
		CreatedAt:    time.Now(),
	}
	if _, err := tdb.DB.Collection(shared.ColParents).InsertOne(ctx, parent); err != nil {
		t.Fatalf("Failed to insert parent: %v", err)
	}

	request := PLRequest{
		PlaceOfVisit:      "Home",
		ReasonOfVisit:     "Family function",
		DepartureDateTime: time.Now().Add(2 * time.Hour),
		ArrivalDateTime:   time.Now().Add(26 * time.Hour),
	}

	// --- 1. Permission Letter Creation ---
	var created *shared.PermissionLetter
	t.Run("Request PL", func(t *testing.T) {
		pl, err := svc.RequestPL(ctx, st.ID.Hex(), request)
		if err != nil {
			t.Fatalf("RequestPL failed: %v", err)
		}
		created = pl

		if pl.Status != shared.PLPending || pl.ParentStatus != shared.ReviewPending || pl.WardenStatus != shared.ReviewPending {
			t.Errorf("New PL should start fully pending, got %s/%s/%s", pl.Status, pl.ParentStatus, pl.WardenStatus)
		}
		// Identity is denormalized from the stored record, not the request.
		if pl.RegNo != st.RegNo || pl.HostelName != st.HostelName || pl.RoomNo != st.RoomNo {
			t.Errorf("PL identity fields not denormalized from the student record: %+v", pl)
		}
		if pl.QRCode != "" {
			t.Error("PL QR code must not be minted before warden approval")
		}
	})

	t.Run("Parent Is Notified", func(t *testing.T) {
		if last := mailer.Last(); last == nil || last.To != parent.Email {
			t.Error("Expected a notification to the parent")
		}
	})

	t.Run("Duplicate In Flight Is Conflict", func(t *testing.T) {
		_, err := svc.RequestPL(ctx, st.ID.Hex(), request)
		if err == nil {
			t.Fatal("Expected conflict for a second in-flight PL, got nil")
		}
		if status.Code(err) != codes.AlreadyExists {
			t.Errorf("Expected AlreadyExists, got %v", status.Code(err))
		}

		letters, _ := svc.GetPLRequests(ctx, st.ID.Hex())
		if len(letters) != 1 {
			t.Errorf("Conflicting request must not create a PL, found %d", len(letters))
		}
	})

	t.Run("Validation Rejects Inverted Window", func(t *testing.T) {
		bad := request
		bad.ArrivalDateTime = bad.DepartureDateTime.Add(-time.Hour)
		if _, err := svc.RequestPL(ctx, st.ID.Hex(), bad); status.Code(err) != codes.InvalidArgument {
			t.Errorf("Expected InvalidArgument for arrival before departure, got %v", status.Code(err))
		}
	})

	// --- 2. PL Card ---
	t.Run("Card Denied While Pending", func(t *testing.T) {
		_, err := svc.GetPLCard(ctx, st.ID.Hex(), created.ID.Hex())
		if status.Code(err) != codes.PermissionDenied {
			t.Errorf("Expected PermissionDenied for an unapproved letter, got %v", status.Code(err))
		}
	})

	// --- 3. Outpass ---
	t.Run("Request Outpass Mints QR", func(t *testing.T) {
		outpass, err := svc.RequestOutpass(ctx, st.ID.Hex(), "City market")
		if err != nil {
			t.Fatalf("RequestOutpass failed: %v", err)
		}
		if outpass.Status != shared.OutpassActive {
			t.Errorf("New outpass should be active, got %s", outpass.Status)
		}
		if !strings.HasPrefix(outpass.QRCode, "data:image/png;base64,") {
			t.Error("Outpass QR code must be minted at creation")
		}
		if outpass.ExitTime != nil || outpass.ExpectedReturnTime != nil {
			t.Error("Exit and expected return are set at the gate, not at creation")
		}
	})

	t.Run("Second Active Outpass Is Conflict", func(t *testing.T) {
		_, err := svc.RequestOutpass(ctx, st.ID.Hex(), "Somewhere else")
		if status.Code(err) != codes.AlreadyExists {
			t.Errorf("Expected AlreadyExists for a second active outpass, got %v", status.Code(err))
		}
	})

	t.Run("Active Outpass Lookup", func(t *testing.T) {
		outpass, err := svc.GetActiveOutpass(ctx, st.ID.Hex())
		if err != nil {
			t.Fatalf("GetActiveOutpass failed: %v", err)
		}
		if outpass.PlaceOfVisit != "City market" {
			t.Errorf("Unexpected active outpass: %+v", outpass)
		}
	})

	// --- 4. Stats ---
	t.Run("Stats", func(t *testing.T) {
		stats, err := svc.GetStats(ctx, st.ID.Hex())
		if err != nil {
			t.Fatalf("GetStats failed: %v", err)
		}
		if stats.TotalRequests != 1 || stats.PendingRequests != 1 || stats.ActiveOutpasses != 1 {
			t.Errorf("Unexpected stats: %+v", stats)
		}
	})
}

func TestApprovedLetterGuard(t *testing.T) {
	tdb := testfixtures.DB(t)
	tdb.Reset(t, shared.ColStudents, shared.ColPLs, shared.ColLogs)

	mailer := &testfixtures.CaptureSender{}
	svc := NewService(tdb.DB, qr.NewPNGEncoder(), mailer)
	ctx := context.Background()

	request := PLRequest{
		PlaceOfVisit:      "Home",
		ReasonOfVisit:     "Festival",
		DepartureDateTime: time.Now().Add(48 * time.Hour),
		ArrivalDateTime:   time.Now().Add(72 * time.Hour),
	}

	insertApproved := func(t *testing.T, st shared.Student, arrival time.Time) shared.PermissionLetter {
		t.Helper()
		pl := shared.PermissionLetter{
			ID:                primitive.NewObjectID(),
			StudentID:         st.ID,
			Name:              st.Name,
			RegNo:             st.RegNo,
			HostelName:        st.HostelName,
			PlaceOfVisit:      "Home",
			ReasonOfVisit:     "Festival",
			DepartureDateTime: arrival.Add(-24 * time.Hour),
			ArrivalDateTime:   arrival,
			Status:            shared.PLApproved,
			ParentStatus:      shared.ReviewApproved,
			WardenStatus:      shared.ReviewApproved,
			CreatedAt:         time.Now(),
		}
		if _, err := tdb.DB.Collection(shared.ColPLs).InsertOne(context.Background(), pl); err != nil {
			t.Fatalf("Failed to insert approved PL: %v", err)
		}
		return pl
	}

	insertLog := func(t *testing.T, pl shared.PermissionLetter, exit time.Time, entry *time.Time) {
		t.Helper()
		entryLog := shared.EntryExitLog{
			ID:                 primitive.NewObjectID(),
			PermissionLetterID: pl.ID,
			StudentID:          pl.StudentID,
			StudentName:        pl.Name,
			RegNo:              pl.RegNo,
			ExitTime:           &exit,
			EntryTime:          entry,
			CreatedAt:          exit,
		}
		if _, err := tdb.DB.Collection(shared.ColLogs).InsertOne(context.Background(), entryLog); err != nil {
			t.Fatalf("Failed to insert entry/exit log: %v", err)
		}
	}

	// At most one letter may stay usable: approved with a future return, or
	// approved with a lapsed return that was never closed out at the gate.
	t.Run("Future Return Blocks A New Request", func(t *testing.T) {
		st := insertStudent(t, tdb, "2024TST201", "North Block")
		insertApproved(t, st, time.Now().Add(24*time.Hour))

		_, err := svc.RequestPL(ctx, st.ID.Hex(), request)
		if status.Code(err) != codes.FailedPrecondition {
			t.Fatalf("Expected FailedPrecondition, got %v", err)
		}
	})

	t.Run("Lapsed Return Without Entry Blocks A New Request", func(t *testing.T) {
		st := insertStudent(t, tdb, "2024TST202", "North Block")
		pl := insertApproved(t, st, time.Now().Add(-2*time.Hour))
		insertLog(t, pl, time.Now().Add(-26*time.Hour), nil)

		_, err := svc.RequestPL(ctx, st.ID.Hex(), request)
		if status.Code(err) != codes.FailedPrecondition {
			t.Fatalf("Expected FailedPrecondition, got %v", err)
		}

		letters, _ := svc.GetPLRequests(ctx, st.ID.Hex())
		if len(letters) != 1 {
			t.Errorf("Blocked request must not create a PL, found %d", len(letters))
		}
	})

	t.Run("Closed Out Letter Allows A New Request", func(t *testing.T) {
		st := insertStudent(t, tdb, "2024TST203", "North Block")
		pl := insertApproved(t, st, time.Now().Add(-2*time.Hour))
		entry := time.Now().Add(-time.Hour)
		insertLog(t, pl, time.Now().Add(-26*time.Hour), &entry)

		created, err := svc.RequestPL(ctx, st.ID.Hex(), request)
		if err != nil {
			t.Fatalf("RequestPL should succeed once the prior letter is closed out: %v", err)
		}
		if created.Status != shared.PLPending {
			t.Errorf("New letter should start pending, got %s", created.Status)
		}
	})
}
