package warden

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hostelpass/internal/qr"
	"hostelpass/internal/shared"
	"hostelpass/internal/testfixtures"
)

type fixture struct {
	tdb    *testfixtures.TestDB
	svc    *Service
	mailer *testfixtures.CaptureSender
	warden shared.Warden
}

func setup(t *testing.T) *fixture {
	t.Helper()
	tdb := testfixtures.DB(t)
	tdb.Reset(t,
		shared.ColStudents, shared.ColParents, shared.ColWardens,
		shared.ColPLs, shared.ColLogs, shared.ColOutpass, shared.ColAttend)

	mailer := &testfixtures.CaptureSender{}
	svc := NewService(tdb.DB, qr.NewPNGEncoder(), mailer)

	w := shared.Warden{
		ID:         primitive.NewObjectID(),
		WardenID:   "WAR-T01",
		Name:       "Test Warden",
		Email:      "warden_test@example.com",
		HostelName: "North Block",
		CreatedAt:  time.Now(),
	}
	if _, err := tdb.DB.Collection(shared.ColWardens).InsertOne(context.Background(), w); err != nil {
		t.Fatalf("Failed to insert warden: %v", err)
	}
	return &fixture{tdb: tdb, svc: svc, mailer: mailer, warden: w}
}

func (f *fixture) insertStudent(t *testing.T, regNo, hostel string) shared.Student {
	t.Helper()
	st := shared.Student{
		ID:         primitive.NewObjectID(),
		RegNo:      regNo,
		Name:       "Student " + regNo,
		Email:      strings.ToLower(regNo) + "@example.com",
		HostelName: hostel,
		RoomNo:     "A-101",
		CreatedAt:  time.Now(),
	}
	if _, err := f.tdb.DB.Collection(shared.ColStudents).InsertOne(context.Background(), st); err != nil {
		t.Fatalf("Failed to insert student: %v", err)
	}
	return st
}

// insertParentApprovedPL seeds a letter that already passed the parent gate.
func (f *fixture) insertParentApprovedPL(t *testing.T, st shared.Student, arrival time.Time) shared.PermissionLetter {
	t.Helper()
	pl := shared.PermissionLetter{
		ID:                primitive.NewObjectID(),
		StudentID:         st.ID,
		Name:              st.Name,
		RegNo:             st.RegNo,
		RoomNo:            st.RoomNo,
		HostelName:        st.HostelName,
		PlaceOfVisit:      "Home",
		ReasonOfVisit:     "Family function",
		DepartureDateTime: time.Now().Add(-time.Hour),
		ArrivalDateTime:   arrival,
		Status:            shared.PLParentApproved,
		ParentStatus:      shared.ReviewApproved,
		WardenStatus:      shared.ReviewPending,
		CreatedAt:         time.Now(),
	}
	if _, err := f.tdb.DB.Collection(shared.ColPLs).InsertOne(context.Background(), pl); err != nil {
		t.Fatalf("Failed to insert PL: %v", err)
	}
	return pl
}

func (f *fixture) readPL(t *testing.T, id primitive.ObjectID) shared.PermissionLetter {
	t.Helper()
	var pl shared.PermissionLetter
	err := f.tdb.DB.Collection(shared.ColPLs).FindOne(context.Background(), bson.M{"_id": id}).Decode(&pl)
	if err != nil {
		t.Fatalf("Failed to read PL: %v", err)
	}
	return pl
}

func (f *fixture) readStudent(t *testing.T, id primitive.ObjectID) shared.Student {
	t.Helper()
	var st shared.Student
	err := f.tdb.DB.Collection(shared.ColStudents).FindOne(context.Background(), bson.M{"_id": id}).Decode(&st)
	if err != nil {
		t.Fatalf("Failed to read student: %v", err)
	}
	return st
}

// TestPermissionLetterGateFlow walks a letter from warden approval through
// exit and entry scans.
func TestPermissionLetterGateFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	st := f.insertStudent(t, "2024WRD001", "North Block")
	pl := f.insertParentApprovedPL(t, st, time.Now().Add(2*time.Hour))

	var qrData string
	t.Run("Approve Mints QR", func(t *testing.T) {
		approved, err := f.svc.ApproveRequest(ctx, f.warden.ID.Hex(), pl.ID.Hex())
		if err != nil {
			t.Fatalf("ApproveRequest failed: %v", err)
		}
		if approved.Status != shared.PLApproved || approved.WardenStatus != shared.ReviewApproved {
			t.Errorf("Unexpected status after approval: %s/%s", approved.Status, approved.WardenStatus)
		}
		if approved.QRCode == "" {
			t.Fatal("Expected a QR code to be minted at approval")
		}
		if approved.ApprovedAt == nil {
			t.Error("Expected approved_at to be stamped")
		}

		// The warden scanner reads out the JSON payload, not the image.
		raw := `{"plId":"` + pl.ID.Hex() + `","studentId":"` + st.ID.Hex() + `","regNo":"` + st.RegNo + `","type":"` + qr.TypePermissionLetter + `"}`
		qrData = raw
	})

	t.Run("Approve Twice Is Conflict", func(t *testing.T) {
		_, err := f.svc.ApproveRequest(ctx, f.warden.ID.Hex(), pl.ID.Hex())
		if status.Code(err) != codes.FailedPrecondition {
			t.Errorf("Expected FailedPrecondition for double approval, got %v", status.Code(err))
		}
	})

	t.Run("Verify Before Exit", func(t *testing.T) {
		result, err := f.svc.VerifyQR(ctx, qrData)
		if err != nil {
			t.Fatalf("VerifyQR failed: %v", err)
		}
		if result.Action != shared.ActionExit {
			t.Errorf("First scan should expect exit, got %q", result.Action)
		}
	})

	t.Run("Log Exit Flags Vacation", func(t *testing.T) {
		entry, err := f.svc.LogEntryExit(ctx, f.warden.ID.Hex(), qrData, shared.ActionExit)
		if err != nil {
			t.Fatalf("LogEntryExit exit failed: %v", err)
		}
		if entry.ExitTime == nil || entry.EntryTime != nil {
			t.Errorf("Unexpected ledger state after exit: %+v", entry)
		}
		if !f.readStudent(t, st.ID).IsOnVacation {
			t.Error("Student should be flagged on vacation after exit")
		}
	})

	t.Run("Double Exit Is Conflict", func(t *testing.T) {
		_, err := f.svc.LogEntryExit(ctx, f.warden.ID.Hex(), qrData, shared.ActionExit)
		if status.Code(err) != codes.FailedPrecondition {
			t.Errorf("Expected FailedPrecondition for double exit, got %v", status.Code(err))
		}
	})

	t.Run("Verify Before Entry", func(t *testing.T) {
		result, err := f.svc.VerifyQR(ctx, qrData)
		if err != nil {
			t.Fatalf("VerifyQR failed: %v", err)
		}
		if result.Action != shared.ActionEntry {
			t.Errorf("Second scan should expect entry, got %q", result.Action)
		}
	})

	t.Run("Log Entry Retires Letter", func(t *testing.T) {
		entry, err := f.svc.LogEntryExit(ctx, f.warden.ID.Hex(), qrData, shared.ActionEntry)
		if err != nil {
			t.Fatalf("LogEntryExit entry failed: %v", err)
		}
		if entry.EntryTime == nil {
			t.Fatal("Expected entry time to be set")
		}

		updated := f.readPL(t, pl.ID)
		if updated.Status != shared.PLExpired || !updated.IsFullyUsed || updated.UsedAt == nil {
			t.Errorf("Letter should be retired after return: %+v", updated)
		}
		if f.readStudent(t, st.ID).IsOnVacation {
			t.Error("Student should be back from vacation after entry")
		}
	})

	t.Run("Scanning A Used Letter Fails", func(t *testing.T) {
		_, err := f.svc.VerifyQR(ctx, qrData)
		if status.Code(err) != codes.FailedPrecondition {
			t.Errorf("Expected FailedPrecondition for a used letter, got %v", status.Code(err))
		}
	})
}

func TestWardenHostelScope(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	other := f.insertStudent(t, "2024WRD002", "South Block")
	pl := f.insertParentApprovedPL(t, other, time.Now().Add(2*time.Hour))

	t.Run("Approve Wrong Hostel Is Forbidden", func(t *testing.T) {
		_, err := f.svc.ApproveRequest(ctx, f.warden.ID.Hex(), pl.ID.Hex())
		if status.Code(err) != codes.PermissionDenied {
			t.Errorf("Expected PermissionDenied for another hostel's letter, got %v", status.Code(err))
		}
	})

	t.Run("Pending Queue Is Hostel Scoped", func(t *testing.T) {
		letters, err := f.svc.GetPendingRequests(ctx, f.warden.ID.Hex())
		if err != nil {
			t.Fatalf("GetPendingRequests failed: %v", err)
		}
		if len(letters) != 0 {
			t.Errorf("Another hostel's letters must not appear, got %d", len(letters))
		}
	})
}

func TestWardenReject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	st := f.insertStudent(t, "2024WRD003", "North Block")
	pl := f.insertParentApprovedPL(t, st, time.Now().Add(2*time.Hour))

	rejected, err := f.svc.RejectRequest(ctx, f.warden.ID.Hex(), pl.ID.Hex(), "hostel event that day")
	if err != nil {
		t.Fatalf("RejectRequest failed: %v", err)
	}
	if rejected.Status != shared.PLRejected || rejected.RejectionReason != "hostel event that day" {
		t.Errorf("Unexpected rejection state: %+v", rejected)
	}

	// A second decision on the same letter conflicts.
	if _, err := f.svc.ApproveRequest(ctx, f.warden.ID.Hex(), pl.ID.Hex()); status.Code(err) != codes.FailedPrecondition {
		t.Errorf("Expected FailedPrecondition after rejection, got %v", status.Code(err))
	}
}

// TestOutpassDelayTracking covers the 4-hour window arithmetic: a return 30
// minutes past the expected time records a 30-minute delay.
func TestOutpassDelayTracking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	st := f.insertStudent(t, "2024WRD004", "North Block")

	exit := time.Now().Add(-4*time.Hour - 30*time.Minute)
	expected := exit.Add(shared.OutpassWindow)
	outpass := shared.Outpass{
		ID:                 primitive.NewObjectID(),
		StudentID:          st.ID,
		Name:               st.Name,
		RegNo:              st.RegNo,
		HostelName:         st.HostelName,
		PlaceOfVisit:       "City market",
		ExitTime:           &exit,
		ExpectedReturnTime: &expected,
		Status:             shared.OutpassActive,
		CreatedAt:          exit,
	}
	if _, err := f.tdb.DB.Collection(shared.ColOutpass).InsertOne(ctx, outpass); err != nil {
		t.Fatalf("Failed to insert outpass: %v", err)
	}

	qrData := `{"studentId":"` + st.ID.Hex() + `","regNo":"` + st.RegNo + `","type":"` + qr.TypeOutpass + `"}`

	t.Run("Live Delay Appears In Reports", func(t *testing.T) {
		delayed, err := f.svc.GetDelayedOutpasses(ctx, f.warden.ID.Hex())
		if err != nil {
			t.Fatalf("GetDelayedOutpasses failed: %v", err)
		}
		if len(delayed) != 1 || !delayed[0].IsCurrentlyDelayed {
			t.Fatalf("Expected one live-delayed outpass, got %+v", delayed)
		}
		if delayed[0].LiveDelayMinutes < 30 {
			t.Errorf("Expected at least 30 minutes of live delay, got %d", delayed[0].LiveDelayMinutes)
		}
	})

	t.Run("Verify Expects Entry", func(t *testing.T) {
		result, err := f.svc.VerifyOutpassQR(ctx, qrData)
		if err != nil {
			t.Fatalf("VerifyOutpassQR failed: %v", err)
		}
		if result.Action != shared.ActionEntry {
			t.Errorf("Expected entry, got %q", result.Action)
		}
	})

	t.Run("Entry Fixes The Delay", func(t *testing.T) {
		completed, err := f.svc.LogOutpassAction(ctx, f.warden.ID.Hex(), qrData, shared.ActionEntry)
		if err != nil {
			t.Fatalf("LogOutpassAction entry failed: %v", err)
		}
		if completed.Status != shared.OutpassCompleted {
			t.Errorf("Expected completed, got %s", completed.Status)
		}
		if !completed.IsDelayed || completed.DelayDuration != 30 {
			t.Errorf("Expected a fixed 30-minute delay, got delayed=%v duration=%d", completed.IsDelayed, completed.DelayDuration)
		}
		if completed.EntryApprovedBy == nil || *completed.EntryApprovedBy != f.warden.ID {
			t.Error("Entry should record the approving warden")
		}
	})

	t.Run("Completed Outpass Rejects Further Scans", func(t *testing.T) {
		_, err := f.svc.VerifyOutpassQR(ctx, qrData)
		if status.Code(err) != codes.NotFound {
			t.Errorf("Expected NotFound once no outpass is active, got %v", status.Code(err))
		}
	})
}

func TestOutpassExitOpensWindow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	st := f.insertStudent(t, "2024WRD005", "North Block")
	outpass := shared.Outpass{
		ID:           primitive.NewObjectID(),
		StudentID:    st.ID,
		Name:         st.Name,
		RegNo:        st.RegNo,
		HostelName:   st.HostelName,
		PlaceOfVisit: "Library",
		Status:       shared.OutpassActive,
		CreatedAt:    time.Now(),
	}
	if _, err := f.tdb.DB.Collection(shared.ColOutpass).InsertOne(ctx, outpass); err != nil {
		t.Fatalf("Failed to insert outpass: %v", err)
	}

	qrData := `{"studentId":"` + st.ID.Hex() + `","regNo":"` + st.RegNo + `","type":"` + qr.TypeOutpass + `"}`

	updated, err := f.svc.LogOutpassAction(ctx, f.warden.ID.Hex(), qrData, shared.ActionExit)
	if err != nil {
		t.Fatalf("LogOutpassAction exit failed: %v", err)
	}
	if updated.ExitTime == nil || updated.ExpectedReturnTime == nil {
		t.Fatal("Exit should stamp the exit and expected return times")
	}
	window := updated.ExpectedReturnTime.Sub(*updated.ExitTime)
	if window != shared.OutpassWindow {
		t.Errorf("Expected a %v window, got %v", shared.OutpassWindow, window)
	}

	// Entry without a different state change, right away: not delayed.
	completed, err := f.svc.LogOutpassAction(ctx, f.warden.ID.Hex(), qrData, shared.ActionEntry)
	if err != nil {
		t.Fatalf("LogOutpassAction entry failed: %v", err)
	}
	if completed.IsDelayed || completed.DelayDuration != 0 {
		t.Errorf("Prompt return must not be delayed: delayed=%v duration=%d", completed.IsDelayed, completed.DelayDuration)
	}
}

func TestMarkAttendance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	inHostel := f.insertStudent(t, "2024WRD006", "North Block")
	onVacation := f.insertStudent(t, "2024WRD007", "North Block")
	elsewhere := f.insertStudent(t, "2024WRD008", "South Block")

	_, err := f.tdb.DB.Collection(shared.ColStudents).UpdateOne(ctx,
		bson.M{"_id": onVacation.ID}, bson.M{"$set": bson.M{"is_on_vacation": true}})
	if err != nil {
		t.Fatalf("Failed to flag vacation: %v", err)
	}

	day := time.Now()
	marks := []AttendanceMark{
		{StudentID: inHostel.ID.Hex(), Status: shared.AttendancePresent},
		{StudentID: onVacation.ID.Hex(), Status: shared.AttendancePresent},
		{StudentID: elsewhere.ID.Hex(), Status: shared.AttendancePresent},
	}

	result, err := f.svc.MarkAttendance(ctx, f.warden.ID.Hex(), day, marks)
	if err != nil {
		t.Fatalf("MarkAttendance failed: %v", err)
	}
	if result.Marked != 2 || result.Skipped != 1 {
		t.Errorf("Expected 2 marked and 1 skipped, got %+v", result)
	}

	t.Run("Vacation Forces Absent", func(t *testing.T) {
		var rec shared.Attendance
		err := f.tdb.DB.Collection(shared.ColAttend).FindOne(ctx, bson.M{
			"student_id": onVacation.ID,
			"date":       shared.NormalizeDate(day),
		}).Decode(&rec)
		if err != nil {
			t.Fatalf("Failed to read attendance: %v", err)
		}
		if rec.Status != shared.AttendanceAbsent || !rec.IsOnVacation {
			t.Errorf("Vacationing student should be forced absent: %+v", rec)
		}
	})

	t.Run("Vacation Record Is Not Overwritten", func(t *testing.T) {
		// The student comes back, the warden re-marks the same day.
		_, err := f.tdb.DB.Collection(shared.ColStudents).UpdateOne(ctx,
			bson.M{"_id": onVacation.ID}, bson.M{"$set": bson.M{"is_on_vacation": false}})
		if err != nil {
			t.Fatalf("Failed to clear vacation: %v", err)
		}

		result, err := f.svc.MarkAttendance(ctx, f.warden.ID.Hex(), day, []AttendanceMark{
			{StudentID: onVacation.ID.Hex(), Status: shared.AttendancePresent},
		})
		if err != nil {
			t.Fatalf("MarkAttendance failed: %v", err)
		}
		if result.Marked != 0 || result.Skipped != 1 {
			t.Errorf("Vacation-day record should be skipped, got %+v", result)
		}
	})

	t.Run("Non Vacation Record Is Updatable", func(t *testing.T) {
		result, err := f.svc.MarkAttendance(ctx, f.warden.ID.Hex(), day, []AttendanceMark{
			{StudentID: inHostel.ID.Hex(), Status: shared.AttendanceAbsent},
		})
		if err != nil {
			t.Fatalf("MarkAttendance failed: %v", err)
		}
		if result.Marked != 1 {
			t.Errorf("Expected the mark to update, got %+v", result)
		}

		var rec shared.Attendance
		err = f.tdb.DB.Collection(shared.ColAttend).FindOne(ctx, bson.M{
			"student_id": inHostel.ID,
			"date":       shared.NormalizeDate(day),
		}).Decode(&rec)
		if err != nil {
			t.Fatalf("Failed to read attendance: %v", err)
		}
		if rec.Status != shared.AttendanceAbsent {
			t.Errorf("Expected updated status absent, got %s", rec.Status)
		}
	})
}

func TestOutpassEntryWithoutWindow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	st := f.insertStudent(t, "2024WRD009", "North Block")

	// An exit stamped without its return window only happens through
	// out-of-band writes; the gate must reject it rather than crash.
	exit := time.Now().Add(-time.Hour)
	outpass := shared.Outpass{
		ID:           primitive.NewObjectID(),
		StudentID:    st.ID,
		Name:         st.Name,
		RegNo:        st.RegNo,
		HostelName:   st.HostelName,
		PlaceOfVisit: "City market",
		ExitTime:     &exit,
		Status:       shared.OutpassActive,
		CreatedAt:    exit,
	}
	if _, err := f.tdb.DB.Collection(shared.ColOutpass).InsertOne(ctx, outpass); err != nil {
		t.Fatalf("Failed to insert outpass: %v", err)
	}

	qrData := `{"studentId":"` + st.ID.Hex() + `","regNo":"` + st.RegNo + `","type":"` + qr.TypeOutpass + `"}`

	_, err := f.svc.LogOutpassAction(ctx, f.warden.ID.Hex(), qrData, shared.ActionEntry)
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("Expected FailedPrecondition for a missing return window, got %v", err)
	}

	var stored shared.Outpass
	if err := f.tdb.DB.Collection(shared.ColOutpass).FindOne(ctx, bson.M{"_id": outpass.ID}).Decode(&stored); err != nil {
		t.Fatalf("Failed to read outpass back: %v", err)
	}
	if stored.Status != shared.OutpassActive || stored.ActualReturnTime != nil {
		t.Errorf("Rejected entry must not mutate the outpass, got %+v", stored)
	}
}
