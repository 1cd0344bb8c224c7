package warden

import (
	"context"
	"log"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hostelpass/internal/notify"
	"hostelpass/internal/qr"
	"hostelpass/internal/shared"
)

// Service implements the warden-facing operations: permission letter review,
// QR-driven gate logging for letters and outpasses, delay reporting, and
// attendance. Everything is scoped to the warden's own hostel.
type Service struct {
	wardens    *mongo.Collection
	students   *mongo.Collection
	parents    *mongo.Collection
	pls        *mongo.Collection
	logs       *mongo.Collection
	outpasses  *mongo.Collection
	attendance *mongo.Collection

	encoder qr.Encoder
	mailer  notify.Sender
}

// NewService creates a new warden Service instance
func NewService(db *mongo.Database, encoder qr.Encoder, mailer notify.Sender) *Service {
	return &Service{
		wardens:    db.Collection(shared.ColWardens),
		students:   db.Collection(shared.ColStudents),
		parents:    db.Collection(shared.ColParents),
		pls:        db.Collection(shared.ColPLs),
		logs:       db.Collection(shared.ColLogs),
		outpasses:  db.Collection(shared.ColOutpass),
		attendance: db.Collection(shared.ColAttend),
		encoder:    encoder,
		mailer:     mailer,
	}
}

// load fetches the calling warden's record
func (s *Service) load(ctx context.Context, wardenID string) (*shared.Warden, error) {
	id, err := primitive.ObjectIDFromHex(wardenID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid warden id")
	}
	var w shared.Warden
	if err := s.wardens.FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "warden not found")
		}
		return nil, status.Error(codes.Internal, "database error")
	}
	return &w, nil
}

// ============================================================================
// Dashboard
// ============================================================================

// Stats is the warden dashboard card set
type Stats struct {
	TotalStudents     int64  `json:"total_students"`
	StudentsInHostel  int64  `json:"students_in_hostel"`
	StudentsOnLeave   int64  `json:"students_on_leave"`
	PendingRequests   int64  `json:"pending_requests"`
	ApprovedToday     int64  `json:"approved_today"`
	ActiveOutpasses   int64  `json:"active_outpasses"`
	DelayedOutpasses  int64  `json:"delayed_outpasses"`
	HostelName        string `json:"hostel_name"`
}

// GetStats aggregates the hostel-scoped dashboard counters
func (s *Service) GetStats(ctx context.Context, wardenID string) (*Stats, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dayStart := shared.NormalizeDate(now)

	stats := &Stats{HostelName: w.HostelName}
	counts := []struct {
		dst    *int64
		col    *mongo.Collection
		filter bson.M
	}{
		{&stats.TotalStudents, s.students, bson.M{"hostel_name": w.HostelName}},
		{&stats.StudentsInHostel, s.students, bson.M{"hostel_name": w.HostelName, "is_on_vacation": false}},
		{&stats.StudentsOnLeave, s.students, bson.M{"hostel_name": w.HostelName, "is_on_vacation": true}},
		{&stats.PendingRequests, s.pls, bson.M{"hostel_name": w.HostelName, "status": shared.PLParentApproved, "warden_status": shared.ReviewPending}},
		{&stats.ApprovedToday, s.pls, bson.M{"hostel_name": w.HostelName, "warden_status": shared.ReviewApproved, "approved_at": bson.M{"$gte": dayStart}}},
		{&stats.ActiveOutpasses, s.outpasses, bson.M{"hostel_name": w.HostelName, "status": shared.OutpassActive}},
	}
	for _, c := range counts {
		n, err := c.col.CountDocuments(queryCtx, c.filter)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to load stats")
		}
		*c.dst = n
	}

	delayed, err := s.GetDelayedOutpasses(ctx, wardenID)
	if err != nil {
		return nil, err
	}
	stats.DelayedOutpasses = int64(len(delayed))

	return stats, nil
}

// GetStudents lists the hostel's students, optionally filtered by vacation
// state. filter is "in-hostel", "on-vacation", or "" for everyone.
func (s *Service) GetStudents(ctx context.Context, wardenID, filter string) ([]shared.Student, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}

	query := bson.M{"hostel_name": w.HostelName}
	switch filter {
	case "in-hostel":
		query["is_on_vacation"] = false
	case "on-vacation":
		query["is_on_vacation"] = true
	case "":
	default:
		return nil, status.Error(codes.InvalidArgument, "unknown filter")
	}

	opts := options.Find().SetSort(bson.M{"reg_no": 1})
	cursor, err := s.students.Find(queryCtx, query, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}

	students := []shared.Student{}
	if err := cursor.All(queryCtx, &students); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	return students, nil
}

// ============================================================================
// Permission Letter Review
// ============================================================================

// GetPendingRequests lists parent-approved letters awaiting this warden
func (s *Service) GetPendingRequests(ctx context.Context, wardenID string) ([]shared.PermissionLetter, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.pls.Find(queryCtx, bson.M{
		"hostel_name":   w.HostelName,
		"status":        shared.PLParentApproved,
		"warden_status": shared.ReviewPending,
	}, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}

	letters := []shared.PermissionLetter{}
	if err := cursor.All(queryCtx, &letters); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	return letters, nil
}

// loadReviewable fetches a letter and enforces the hostel and still-pending
// preconditions shared by approve and reject.
func (s *Service) loadReviewable(ctx context.Context, w *shared.Warden, plID string) (*shared.PermissionLetter, error) {
	id, err := primitive.ObjectIDFromHex(plID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid permission letter id")
	}

	var pl shared.PermissionLetter
	if err := s.pls.FindOne(ctx, bson.M{"_id": id}).Decode(&pl); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "permission letter not found")
		}
		return nil, status.Error(codes.Internal, "database error")
	}

	if pl.HostelName != w.HostelName {
		return nil, status.Error(codes.PermissionDenied, "this request belongs to another hostel")
	}
	if pl.WardenStatus != shared.ReviewPending {
		return nil, status.Error(codes.FailedPrecondition, "request has already been processed")
	}
	return &pl, nil
}

// ApproveRequest grants a parent-approved letter and mints its QR code. QR
// encoding failure aborts the approval entirely.
func (s *Service) ApproveRequest(ctx context.Context, wardenID, plID string) (*shared.PermissionLetter, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}
	pl, err := s.loadReviewable(queryCtx, w, plID)
	if err != nil {
		return nil, err
	}

	code, err := s.encoder.Encode(qr.PLPayload{
		PLID:            pl.ID.Hex(),
		StudentID:       pl.StudentID.Hex(),
		RegNo:           pl.RegNo,
		Name:            pl.Name,
		RoomNo:          pl.RoomNo,
		HostelName:      pl.HostelName,
		PlaceOfVisit:    pl.PlaceOfVisit,
		ArrivalDateTime: pl.ArrivalDateTime.Format(time.RFC3339),
		Type:            qr.TypePermissionLetter,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to generate QR code")
	}

	now := time.Now()
	_, err = s.pls.UpdateOne(queryCtx, bson.M{"_id": pl.ID}, bson.M{
		"$set": bson.M{
			"warden_status": shared.ReviewApproved,
			"status":        shared.PLApproved,
			"qr_code":       code,
			"approved_at":   now,
			"updated_at":    now,
		},
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to update permission letter")
	}
	pl.WardenStatus = shared.ReviewApproved
	pl.Status = shared.PLApproved
	pl.QRCode = code
	pl.ApprovedAt = &now
	pl.UpdatedAt = now

	s.notifyDecision(queryCtx, pl, notify.SubjectWardenApproved, notify.PLApprovedByWarden(pl.Name, pl))

	return pl, nil
}

// RejectRequest declines a letter with a reason and notifies both parties
func (s *Service) RejectRequest(ctx context.Context, wardenID, plID, reason string) (*shared.PermissionLetter, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}
	pl, err := s.loadReviewable(queryCtx, w, plID)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "Rejected by warden"
	}

	now := time.Now()
	_, err = s.pls.UpdateOne(queryCtx, bson.M{"_id": pl.ID}, bson.M{
		"$set": bson.M{
			"warden_status":    shared.ReviewRejected,
			"status":           shared.PLRejected,
			"rejection_reason": reason,
			"updated_at":       now,
		},
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to update permission letter")
	}
	pl.WardenStatus = shared.ReviewRejected
	pl.Status = shared.PLRejected
	pl.RejectionReason = reason
	pl.UpdatedAt = now

	s.notifyDecision(queryCtx, pl, notify.SubjectWardenRejected, notify.PLRejectedByWarden(pl.Name, pl, reason))

	return pl, nil
}

// notifyDecision emails the student and their parent, both best effort
func (s *Service) notifyDecision(ctx context.Context, pl *shared.PermissionLetter, subject, body string) {
	var st shared.Student
	if err := s.students.FindOne(ctx, bson.M{"_id": pl.StudentID}).Decode(&st); err == nil {
		if _, err := s.mailer.Send(st.Email, subject, body); err != nil {
			log.Printf("Warning: decision email to student %s failed: %v", st.Email, err)
		}
	} else {
		log.Printf("Warning: student lookup for PL %s failed: %v", pl.ID.Hex(), err)
	}

	var p shared.Parent
	if err := s.parents.FindOne(ctx, bson.M{"student_reg_no": pl.RegNo}).Decode(&p); err == nil {
		if _, err := s.mailer.Send(p.Email, subject, body); err != nil {
			log.Printf("Warning: decision email to parent %s failed: %v", p.Email, err)
		}
	} else if err != mongo.ErrNoDocuments {
		log.Printf("Warning: parent lookup for %s failed: %v", pl.RegNo, err)
	}
}

// ============================================================================
// Gate Logging (Permission Letters)
// ============================================================================

// ScanResult is the read-only answer to a QR verification: who the pass
// belongs to and which gate action commits next.
type ScanResult struct {
	Action  string                   `json:"action"`
	PL      *shared.PermissionLetter `json:"permission_letter,omitempty"`
	Outpass *shared.Outpass          `json:"outpass,omitempty"`
	Log     *shared.EntryExitLog     `json:"log,omitempty"`
}

// loadScannedPL resolves scanned QR data to an approved, still-usable letter
func (s *Service) loadScannedPL(ctx context.Context, scan *qr.ScanData) (*shared.PermissionLetter, error) {
	id, err := primitive.ObjectIDFromHex(scan.PLID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid QR code data")
	}

	var pl shared.PermissionLetter
	if err := s.pls.FindOne(ctx, bson.M{"_id": id}).Decode(&pl); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "permission letter not found")
		}
		return nil, status.Error(codes.Internal, "database error")
	}

	if pl.IsTerminal() {
		if pl.IsFullyUsed {
			return nil, status.Error(codes.FailedPrecondition, "permission letter has already been used")
		}
		return nil, status.Error(codes.FailedPrecondition, "permission letter is no longer usable")
	}
	if pl.Status != shared.PLApproved {
		return nil, status.Error(codes.PermissionDenied, "permission letter is not approved")
	}
	return &pl, nil
}

// VerifyQR is the read-only half of a gate scan: it derives the next expected
// action without mutating anything, so the warden UI can confirm first.
func (s *Service) VerifyQR(ctx context.Context, rawQR string) (*ScanResult, error) {
	scan, err := qr.ParseScan(rawQR)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "unreadable QR code")
	}
	if scan.Type != qr.TypePermissionLetter {
		return nil, status.Error(codes.InvalidArgument, "not a permission letter QR code")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pl, err := s.loadScannedPL(queryCtx, scan)
	if err != nil {
		return nil, err
	}

	entry, err := s.findLog(queryCtx, pl.ID)
	if err != nil {
		return nil, err
	}
	action, err := shared.ScanAction(entry)
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}

	return &ScanResult{Action: action, PL: pl, Log: entry}, nil
}

// findLog returns the letter's ledger record, or nil if it never exited
func (s *Service) findLog(ctx context.Context, plID primitive.ObjectID) (*shared.EntryExitLog, error) {
	var entry shared.EntryExitLog
	err := s.logs.FindOne(ctx, bson.M{"permission_letter_id": plID}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	return &entry, nil
}

// LogEntryExit commits a gate action for a permission letter. Exit records
// the departure and flags the student on vacation. Entry records the return,
// clears the flag, and retires the letter for good.
func (s *Service) LogEntryExit(ctx context.Context, wardenID, rawQR, action string) (*shared.EntryExitLog, error) {
	wid, err := primitive.ObjectIDFromHex(wardenID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid warden id")
	}

	scan, err := qr.ParseScan(rawQR)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "unreadable QR code")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pl, err := s.loadScannedPL(queryCtx, scan)
	if err != nil {
		return nil, err
	}
	entry, err := s.findLog(queryCtx, pl.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch action {
	case shared.ActionExit:
		if entry != nil && entry.ExitTime != nil {
			return nil, status.Error(codes.FailedPrecondition, "exit has already been logged")
		}
		if entry == nil {
			entry = &shared.EntryExitLog{
				ID:                 primitive.NewObjectID(),
				PermissionLetterID: pl.ID,
				StudentID:          pl.StudentID,
				StudentName:        pl.Name,
				RegNo:              pl.RegNo,
				ExitTime:           &now,
				LoggedBy:           wid,
				CreatedAt:          now,
			}
			if _, err := s.logs.InsertOne(queryCtx, entry); err != nil {
				return nil, status.Error(codes.Internal, "failed to record exit")
			}
		} else {
			_, err := s.logs.UpdateOne(queryCtx, bson.M{"_id": entry.ID}, bson.M{
				"$set": bson.M{"exit_time": now, "logged_by": wid, "updated_at": now},
			})
			if err != nil {
				return nil, status.Error(codes.Internal, "failed to record exit")
			}
			entry.ExitTime = &now
			entry.LoggedBy = wid
		}

		if _, err := s.students.UpdateOne(queryCtx, bson.M{"_id": pl.StudentID}, bson.M{
			"$set": bson.M{"is_on_vacation": true, "updated_at": now},
		}); err != nil {
			log.Printf("Warning: vacation flag update for %s failed: %v", pl.RegNo, err)
		}
		return entry, nil

	case shared.ActionEntry:
		if entry == nil || entry.ExitTime == nil {
			return nil, status.Error(codes.FailedPrecondition, "no exit has been logged for this permission letter")
		}
		if entry.EntryTime != nil {
			return nil, status.Error(codes.FailedPrecondition, "entry has already been logged")
		}

		_, err := s.logs.UpdateOne(queryCtx, bson.M{"_id": entry.ID}, bson.M{
			"$set": bson.M{"entry_time": now, "logged_by": wid, "updated_at": now},
		})
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to record entry")
		}
		entry.EntryTime = &now
		entry.LoggedBy = wid

		// Returning retires the letter.
		if _, err := s.pls.UpdateOne(queryCtx, bson.M{"_id": pl.ID}, bson.M{
			"$set": bson.M{
				"status":        shared.PLExpired,
				"is_fully_used": true,
				"used_at":       now,
				"updated_at":    now,
			},
		}); err != nil {
			return nil, status.Error(codes.Internal, "failed to retire permission letter")
		}

		if _, err := s.students.UpdateOne(queryCtx, bson.M{"_id": pl.StudentID}, bson.M{
			"$set": bson.M{"is_on_vacation": false, "updated_at": now},
		}); err != nil {
			log.Printf("Warning: vacation flag update for %s failed: %v", pl.RegNo, err)
		}
		return entry, nil

	default:
		return nil, status.Error(codes.InvalidArgument, "action must be exit or entry")
	}
}

// ============================================================================
// Gate Logging (Outpasses)
// ============================================================================

// loadScannedOutpass resolves outpass QR data to the student's active pass.
// Outpass QR payloads carry no pass id, only the student, so the single
// active pass per student is the lookup key.
func (s *Service) loadScannedOutpass(ctx context.Context, scan *qr.ScanData) (*shared.Outpass, error) {
	sid, err := primitive.ObjectIDFromHex(scan.StudentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid QR code data")
	}

	var outpass shared.Outpass
	err = s.outpasses.FindOne(ctx, bson.M{"student_id": sid, "status": shared.OutpassActive}).Decode(&outpass)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "no active outpass for this student")
		}
		return nil, status.Error(codes.Internal, "database error")
	}
	return &outpass, nil
}

// VerifyOutpassQR derives the next gate action for an outpass, read-only
func (s *Service) VerifyOutpassQR(ctx context.Context, rawQR string) (*ScanResult, error) {
	scan, err := qr.ParseScan(rawQR)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "unreadable QR code")
	}
	if scan.Type != qr.TypeOutpass {
		return nil, status.Error(codes.InvalidArgument, "not an outpass QR code")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	outpass, err := s.loadScannedOutpass(queryCtx, scan)
	if err != nil {
		return nil, err
	}
	action, err := outpass.ScanAction()
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}

	return &ScanResult{Action: action, Outpass: outpass}, nil
}

// LogOutpassAction commits a gate action for an outpass. Exit opens the
// 4-hour window; entry closes the pass and fixes the delay in whole minutes.
func (s *Service) LogOutpassAction(ctx context.Context, wardenID, rawQR, action string) (*shared.Outpass, error) {
	wid, err := primitive.ObjectIDFromHex(wardenID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid warden id")
	}

	scan, err := qr.ParseScan(rawQR)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "unreadable QR code")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	outpass, err := s.loadScannedOutpass(queryCtx, scan)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch action {
	case shared.ActionExit:
		if outpass.ExitTime != nil {
			return nil, status.Error(codes.FailedPrecondition, "exit has already been logged")
		}
		expectedReturn := now.Add(shared.OutpassWindow)
		_, err := s.outpasses.UpdateOne(queryCtx, bson.M{"_id": outpass.ID}, bson.M{
			"$set": bson.M{
				"exit_time":            now,
				"expected_return_time": expectedReturn,
				"exit_approved_by":     wid,
				"updated_at":           now,
			},
		})
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to record exit")
		}
		outpass.ExitTime = &now
		outpass.ExpectedReturnTime = &expectedReturn
		outpass.ExitApprovedBy = &wid
		return outpass, nil

	case shared.ActionEntry:
		if outpass.ExitTime == nil {
			return nil, status.Error(codes.FailedPrecondition, "no exit has been logged for this outpass")
		}
		if outpass.ActualReturnTime != nil {
			return nil, status.Error(codes.FailedPrecondition, "entry has already been logged")
		}
		if outpass.ExpectedReturnTime == nil {
			return nil, status.Error(codes.FailedPrecondition, "outpass exit has no recorded return window")
		}

		delay := shared.DelayMinutes(*outpass.ExpectedReturnTime, now)
		isDelayed := delay > 0
		if delay < 0 {
			delay = 0
		}

		_, err := s.outpasses.UpdateOne(queryCtx, bson.M{"_id": outpass.ID}, bson.M{
			"$set": bson.M{
				"actual_return_time": now,
				"status":             shared.OutpassCompleted,
				"is_delayed":         isDelayed,
				"delay_duration":     delay,
				"entry_approved_by":  wid,
				"updated_at":         now,
			},
		})
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to record entry")
		}
		outpass.ActualReturnTime = &now
		outpass.Status = shared.OutpassCompleted
		outpass.IsDelayed = isDelayed
		outpass.DelayDuration = delay
		outpass.EntryApprovedBy = &wid
		return outpass, nil

	default:
		return nil, status.Error(codes.InvalidArgument, "action must be exit or entry")
	}
}

// ============================================================================
// Delay Reporting
// ============================================================================

// DelayedOutpass is one row of the delay report. For still-active passes the
// delay is computed live against the clock rather than read from the record.
type DelayedOutpass struct {
	shared.Outpass
	IsCurrentlyDelayed bool `json:"is_currently_delayed"`
	LiveDelayMinutes   int  `json:"live_delay_minutes,omitempty"`
}

// GetDelayedOutpasses merges passes that completed late with passes still out
// past their window, sorted by delay descending.
func (s *Service) GetDelayedOutpasses(ctx context.Context, wardenID string) ([]DelayedOutpass, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	report := []DelayedOutpass{}

	cursor, err := s.outpasses.Find(queryCtx, bson.M{
		"hostel_name": w.HostelName,
		"status":      shared.OutpassCompleted,
		"is_delayed":  true,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	var completed []shared.Outpass
	if err := cursor.All(queryCtx, &completed); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	for _, o := range completed {
		report = append(report, DelayedOutpass{Outpass: o, LiveDelayMinutes: o.DelayDuration})
	}

	cursor, err = s.outpasses.Find(queryCtx, bson.M{
		"hostel_name": w.HostelName,
		"status":      shared.OutpassActive,
		"exit_time":   bson.M{"$ne": nil},
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	var active []shared.Outpass
	if err := cursor.All(queryCtx, &active); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	for _, o := range active {
		if late, minutes := o.LiveDelay(now); late {
			report = append(report, DelayedOutpass{Outpass: o, IsCurrentlyDelayed: true, LiveDelayMinutes: minutes})
		}
	}

	sort.Slice(report, func(i, j int) bool {
		return report[i].LiveDelayMinutes > report[j].LiveDelayMinutes
	})
	return report, nil
}

// GetActiveOutpasses lists the hostel's active passes, annotating any that
// are already past their expected return.
func (s *Service) GetActiveOutpasses(ctx context.Context, wardenID string) ([]DelayedOutpass, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.outpasses.Find(queryCtx, bson.M{
		"hostel_name": w.HostelName,
		"status":      shared.OutpassActive,
	}, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	var active []shared.Outpass
	if err := cursor.All(queryCtx, &active); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}

	now := time.Now()
	out := []DelayedOutpass{}
	for _, o := range active {
		late, minutes := o.LiveDelay(now)
		out = append(out, DelayedOutpass{Outpass: o, IsCurrentlyDelayed: late, LiveDelayMinutes: minutes})
	}
	return out, nil
}

// DelayedVacationStudent is one row of the overdue-return report for
// permission letters.
type DelayedVacationStudent struct {
	PL           shared.PermissionLetter `json:"permission_letter"`
	Student      shared.Student          `json:"student"`
	ExitTime     *time.Time              `json:"exit_time,omitempty"`
	DelayMinutes int                     `json:"delay_minutes"`
}

// GetDelayedVacationStudents finds students who exited on a permission letter
// and are past their promised arrival time without logging entry.
func (s *Service) GetDelayedVacationStudents(ctx context.Context, wardenID string) ([]DelayedVacationStudent, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cursor, err := s.pls.Find(queryCtx, bson.M{
		"hostel_name":       w.HostelName,
		"arrival_date_time": bson.M{"$lt": now},
		"$or": []bson.M{
			{"status": shared.PLApproved},
			{"status": shared.PLExpired, "is_fully_used": bson.M{"$ne": true}},
		},
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	var letters []shared.PermissionLetter
	if err := cursor.All(queryCtx, &letters); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}

	report := []DelayedVacationStudent{}
	for _, pl := range letters {
		entry, err := s.findLog(queryCtx, pl.ID)
		if err != nil {
			return nil, err
		}
		if entry == nil || entry.ExitTime == nil || entry.EntryTime != nil {
			continue
		}

		var st shared.Student
		if err := s.students.FindOne(queryCtx, bson.M{"_id": pl.StudentID}).Decode(&st); err != nil {
			continue
		}
		if !st.IsOnVacation {
			continue
		}

		report = append(report, DelayedVacationStudent{
			PL:           pl,
			Student:      st,
			ExitTime:     entry.ExitTime,
			DelayMinutes: shared.DelayMinutes(pl.ArrivalDateTime, now),
		})
	}

	sort.Slice(report, func(i, j int) bool {
		return report[i].DelayMinutes > report[j].DelayMinutes
	})
	return report, nil
}

// ============================================================================
// Attendance
// ============================================================================

// AttendanceMark is one student's submitted status in a batch
type AttendanceMark struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

// MarkResult summarizes a batch attendance run
type MarkResult struct {
	Marked  int `json:"marked"`
	Skipped int `json:"skipped"`
}

// MarkAttendance records a batch of marks for one calendar day. Students
// outside the warden's hostel are skipped silently, a student currently on
// vacation is forced absent, and vacation-day records already on file are
// never overwritten. The batch is not transactional.
func (s *Service) MarkAttendance(ctx context.Context, wardenID string, date time.Time, marks []AttendanceMark) (*MarkResult, error) {
	if len(marks) == 0 {
		return nil, status.Error(codes.InvalidArgument, "no attendance entries supplied")
	}
	if date.IsZero() {
		return nil, status.Error(codes.InvalidArgument, "date is required")
	}

	wid, err := primitive.ObjectIDFromHex(wardenID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid warden id")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}

	day := shared.NormalizeDate(date)
	now := time.Now()
	result := &MarkResult{}

	for _, mark := range marks {
		if mark.Status != shared.AttendancePresent && mark.Status != shared.AttendanceAbsent {
			result.Skipped++
			continue
		}
		sid, err := primitive.ObjectIDFromHex(mark.StudentID)
		if err != nil {
			result.Skipped++
			continue
		}

		var st shared.Student
		if err := s.students.FindOne(queryCtx, bson.M{"_id": sid}).Decode(&st); err != nil {
			result.Skipped++
			continue
		}
		if st.HostelName != w.HostelName {
			result.Skipped++
			continue
		}

		markStatus := mark.Status
		if st.IsOnVacation {
			markStatus = shared.AttendanceAbsent
		}

		var existing shared.Attendance
		err = s.attendance.FindOne(queryCtx, bson.M{"student_id": sid, "date": day}).Decode(&existing)
		switch {
		case err == mongo.ErrNoDocuments:
			record := shared.Attendance{
				ID:           primitive.NewObjectID(),
				StudentID:    sid,
				StudentName:  st.Name,
				RegNo:        st.RegNo,
				HostelName:   st.HostelName,
				Date:         day,
				Status:       markStatus,
				IsOnVacation: st.IsOnVacation,
				MarkedBy:     wid,
				CreatedAt:    now,
			}
			if _, err := s.attendance.InsertOne(queryCtx, record); err != nil {
				log.Printf("Warning: attendance insert for %s failed: %v", st.RegNo, err)
				result.Skipped++
				continue
			}
			result.Marked++

		case err != nil:
			log.Printf("Warning: attendance lookup for %s failed: %v", st.RegNo, err)
			result.Skipped++

		case existing.IsOnVacation:
			// Vacation-day records stay as marked.
			result.Skipped++

		default:
			_, err := s.attendance.UpdateOne(queryCtx, bson.M{"_id": existing.ID}, bson.M{
				"$set": bson.M{"status": markStatus, "marked_by": wid, "updated_at": now},
			})
			if err != nil {
				log.Printf("Warning: attendance update for %s failed: %v", st.RegNo, err)
				result.Skipped++
				continue
			}
			result.Marked++
		}
	}

	return result, nil
}

// GetAttendanceSheet returns the hostel roster joined with any marks already
// recorded for the given day.
func (s *Service) GetAttendanceSheet(ctx context.Context, wardenID string, date time.Time) ([]AttendanceRow, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}

	day := shared.NormalizeDate(date)

	opts := options.Find().SetSort(bson.M{"reg_no": 1})
	cursor, err := s.students.Find(queryCtx, bson.M{"hostel_name": w.HostelName}, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	var students []shared.Student
	if err := cursor.All(queryCtx, &students); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}

	cursor, err = s.attendance.Find(queryCtx, bson.M{"hostel_name": w.HostelName, "date": day})
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	var records []shared.Attendance
	if err := cursor.All(queryCtx, &records); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	byStudent := make(map[primitive.ObjectID]*shared.Attendance, len(records))
	for i := range records {
		byStudent[records[i].StudentID] = &records[i]
	}

	rows := []AttendanceRow{}
	for _, st := range students {
		row := AttendanceRow{
			StudentID:    st.ID.Hex(),
			Name:         st.Name,
			RegNo:        st.RegNo,
			RoomNo:       st.RoomNo,
			IsOnVacation: st.IsOnVacation,
		}
		if rec, ok := byStudent[st.ID]; ok {
			row.Status = rec.Status
			row.Marked = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AttendanceRow is one roster line of the daily attendance sheet
type AttendanceRow struct {
	StudentID    string `json:"student_id"`
	Name         string `json:"name"`
	RegNo        string `json:"reg_no"`
	RoomNo       string `json:"room_no"`
	IsOnVacation bool   `json:"is_on_vacation"`
	Marked       bool   `json:"marked"`
	Status       string `json:"status,omitempty"`
}

// GetAttendanceReport lists the recorded marks for a date range, newest day
// first.
func (s *Service) GetAttendanceReport(ctx context.Context, wardenID string, from, to time.Time) ([]shared.Attendance, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	w, err := s.load(queryCtx, wardenID)
	if err != nil {
		return nil, err
	}

	query := bson.M{"hostel_name": w.HostelName}
	dateRange := bson.M{}
	if !from.IsZero() {
		dateRange["$gte"] = shared.NormalizeDate(from)
	}
	if !to.IsZero() {
		dateRange["$lte"] = shared.NormalizeDate(to)
	}
	if len(dateRange) > 0 {
		query["date"] = dateRange
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "reg_no", Value: 1}})
	cursor, err := s.attendance.Find(queryCtx, query, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}

	records := []shared.Attendance{}
	if err := cursor.All(queryCtx, &records); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	return records, nil
}
