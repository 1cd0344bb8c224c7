package student

import (
	"context"
	"log"
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

// Service implements the student-facing operations: permission letter
// requests, outpass requests, and profile/dashboard reads.
type Service struct {
	students  *mongo.Collection
	parents   *mongo.Collection
	pls       *mongo.Collection
	logs      *mongo.Collection
	outpasses *mongo.Collection

	encoder qr.Encoder
	mailer  notify.Sender
}

// NewService creates a new student Service instance
func NewService(db *mongo.Database, encoder qr.Encoder, mailer notify.Sender) *Service {
	return &Service{
		students:  db.Collection(shared.ColStudents),
		parents:   db.Collection(shared.ColParents),
		pls:       db.Collection(shared.ColPLs),
		logs:      db.Collection(shared.ColLogs),
		outpasses: db.Collection(shared.ColOutpass),
		encoder:   encoder,
		mailer:    mailer,
	}
}

// ============================================================================
// Dashboard / Profile
// ============================================================================

// Stats is the student dashboard card set
type Stats struct {
	TotalRequests    int64 `json:"total_requests"`
	PendingRequests  int64 `json:"pending_requests"`
	ApprovedRequests int64 `json:"approved_requests"`
	RejectedRequests int64 `json:"rejected_requests"`
	ActiveOutpasses  int64 `json:"active_outpasses"`
	OnVacation       bool  `json:"on_vacation"`
}

// GetStats aggregates the dashboard counters for one student
func (s *Service) GetStats(ctx context.Context, studentID string) (*Stats, error) {
	id, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid student id")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats := &Stats{}
	counts := []struct {
		dst    *int64
		col    *mongo.Collection
		filter bson.M
	}{
		{&stats.TotalRequests, s.pls, bson.M{"student_id": id}},
		{&stats.PendingRequests, s.pls, bson.M{"student_id": id, "status": bson.M{"$in": []string{shared.PLPending, shared.PLParentApproved}}}},
		{&stats.ApprovedRequests, s.pls, bson.M{"student_id": id, "status": shared.PLApproved}},
		{&stats.RejectedRequests, s.pls, bson.M{"student_id": id, "status": shared.PLRejected}},
		{&stats.ActiveOutpasses, s.outpasses, bson.M{"student_id": id, "status": shared.OutpassActive}},
	}
	for _, c := range counts {
		n, err := c.col.CountDocuments(queryCtx, c.filter)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to load stats")
		}
		*c.dst = n
	}

	var me shared.Student
	if err := s.students.FindOne(queryCtx, bson.M{"_id": id}).Decode(&me); err == nil {
		stats.OnVacation = me.IsOnVacation
	}

	return stats, nil
}

// GetProfile returns the student's own account record
func (s *Service) GetProfile(ctx context.Context, studentID string) (*shared.Student, error) {
	id, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid student id")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var me shared.Student
	if err := s.students.FindOne(queryCtx, bson.M{"_id": id}).Decode(&me); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "student not found")
		}
		return nil, status.Error(codes.Internal, "database error")
	}
	return &me, nil
}

// ============================================================================
// Permission Letters
// ============================================================================

// PLRequest carries the student-supplied fields of a new permission letter
type PLRequest struct {
	PlaceOfVisit      string    `json:"place_of_visit"`
	ReasonOfVisit     string    `json:"reason_of_visit"`
	DepartureDateTime time.Time `json:"departure_date_time"`
	ArrivalDateTime   time.Time `json:"arrival_date_time"`
}

// RequestPL creates a new permission letter for the student. Identity fields
// come from the stored student record, never from the request. At most one
// letter may be in flight (pending or parent-approved), and at most one
// approved letter may remain not-yet-fully-used.
func (s *Service) RequestPL(ctx context.Context, studentID string, req PLRequest) (*shared.PermissionLetter, error) {
	if req.PlaceOfVisit == "" || req.ReasonOfVisit == "" {
		return nil, status.Error(codes.InvalidArgument, "place and reason of visit are required")
	}
	if req.DepartureDateTime.IsZero() || req.ArrivalDateTime.IsZero() {
		return nil, status.Error(codes.InvalidArgument, "departure and arrival times are required")
	}
	if !req.ArrivalDateTime.After(req.DepartureDateTime) {
		return nil, status.Error(codes.InvalidArgument, "arrival must be after departure")
	}

	id, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid student id")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var me shared.Student
	if err := s.students.FindOne(queryCtx, bson.M{"_id": id}).Decode(&me); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "student not found")
		}
		return nil, status.Error(codes.Internal, "database error")
	}

	// Guard 1: no letter already awaiting parent or warden action.
	inFlight, err := s.pls.CountDocuments(queryCtx, bson.M{
		"student_id": id,
		"status":     bson.M{"$in": []string{shared.PLPending, shared.PLParentApproved}},
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	if inFlight > 0 {
		return nil, status.Error(codes.AlreadyExists, "you already have a permission letter awaiting approval")
	}

	// Guard 2: no approved letter still usable. Usable means arrival is in
	// the future, or arrival has passed but no entry was ever logged.
	cursor, err := s.pls.Find(queryCtx, bson.M{
		"student_id":    id,
		"status":        shared.PLApproved,
		"is_fully_used": bson.M{"$ne": true},
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	var approved []shared.PermissionLetter
	if err := cursor.All(queryCtx, &approved); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	now := time.Now()
	for _, pl := range approved {
		if pl.ArrivalDateTime.After(now) {
			return nil, status.Error(codes.FailedPrecondition, "you already have an active approved permission letter")
		}
		n, err := s.logs.CountDocuments(queryCtx, bson.M{
			"permission_letter_id": pl.ID,
			"entry_time":           bson.M{"$ne": nil},
		})
		if err != nil {
			return nil, status.Error(codes.Internal, "database error")
		}
		if n == 0 {
			return nil, status.Error(codes.FailedPrecondition, "your previous permission letter has not been closed out yet")
		}
	}

	pl := shared.PermissionLetter{
		ID:                primitive.NewObjectID(),
		StudentID:         id,
		Name:              me.Name,
		RegNo:             me.RegNo,
		RoomNo:            me.RoomNo,
		HostelName:        me.HostelName,
		YearOfStudy:       me.YearOfStudy,
		Department:        me.Department,
		PlaceOfVisit:      req.PlaceOfVisit,
		ReasonOfVisit:     req.ReasonOfVisit,
		DepartureDateTime: req.DepartureDateTime,
		ArrivalDateTime:   req.ArrivalDateTime,
		Status:            shared.PLPending,
		ParentStatus:      shared.ReviewPending,
		WardenStatus:      shared.ReviewPending,
		CreatedAt:         now,
	}

	if _, err := s.pls.InsertOne(queryCtx, pl); err != nil {
		return nil, status.Error(codes.Internal, "failed to create permission letter")
	}

	// Parent notification is best effort.
	var parent shared.Parent
	if err := s.parents.FindOne(queryCtx, bson.M{"student_reg_no": me.RegNo}).Decode(&parent); err == nil {
		if _, err := s.mailer.Send(parent.Email, notify.SubjectPLRequest, notify.PLRequestToParent(me.Name, &pl)); err != nil {
			log.Printf("Warning: PL request email to parent %s failed: %v", parent.Email, err)
		}
	} else if err != mongo.ErrNoDocuments {
		log.Printf("Warning: parent lookup for %s failed: %v", me.RegNo, err)
	}

	return &pl, nil
}

// GetPLRequests lists the student's letters, newest first
func (s *Service) GetPLRequests(ctx context.Context, studentID string) ([]shared.PermissionLetter, error) {
	id, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid student id")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.pls.Find(queryCtx, bson.M{"student_id": id}, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}

	letters := []shared.PermissionLetter{}
	if err := cursor.All(queryCtx, &letters); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	return letters, nil
}

// GetPLCard returns an approved letter with its QR code, for display at the
// gate. Expired or fully used letters are no longer presentable.
func (s *Service) GetPLCard(ctx context.Context, studentID, plID string) (*shared.PermissionLetter, error) {
	sid, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid student id")
	}
	pid, err := primitive.ObjectIDFromHex(plID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid permission letter id")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var pl shared.PermissionLetter
	err = s.pls.FindOne(queryCtx, bson.M{"_id": pid, "student_id": sid}).Decode(&pl)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "permission letter not found")
		}
		return nil, status.Error(codes.Internal, "database error")
	}

	if pl.Status != shared.PLApproved {
		return nil, status.Error(codes.PermissionDenied, "permission letter is not approved")
	}
	if pl.IsFullyUsed {
		return nil, status.Error(codes.PermissionDenied, "permission letter has already been used")
	}

	return &pl, nil
}

// ============================================================================
// Outpasses
// ============================================================================

// RequestOutpass creates a new 4-hour outpass. The QR code is minted here at
// creation; a failure to encode aborts the request.
func (s *Service) RequestOutpass(ctx context.Context, studentID, placeOfVisit string) (*shared.Outpass, error) {
	if placeOfVisit == "" {
		return nil, status.Error(codes.InvalidArgument, "place of visit is required")
	}

	id, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid student id")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var me shared.Student
	if err := s.students.FindOne(queryCtx, bson.M{"_id": id}).Decode(&me); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "student not found")
		}
		return nil, status.Error(codes.Internal, "database error")
	}

	active, err := s.outpasses.CountDocuments(queryCtx, bson.M{
		"student_id": id,
		"status":     shared.OutpassActive,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	if active > 0 {
		return nil, status.Error(codes.AlreadyExists, "you already have an active outpass")
	}

	now := time.Now()
	outpass := shared.Outpass{
		ID:           primitive.NewObjectID(),
		StudentID:    id,
		Name:         me.Name,
		RegNo:        me.RegNo,
		Department:   me.Department,
		YearOfStudy:  me.YearOfStudy,
		RoomNo:       me.RoomNo,
		HostelName:   me.HostelName,
		PlaceOfVisit: placeOfVisit,
		Status:       shared.OutpassActive,
		CreatedAt:    now,
	}

	code, err := s.encoder.Encode(qr.OutpassPayload{
		StudentID:    id.Hex(),
		RegNo:        me.RegNo,
		Name:         me.Name,
		Department:   me.Department,
		YearOfStudy:  me.YearOfStudy,
		RoomNo:       me.RoomNo,
		HostelName:   me.HostelName,
		PlaceOfVisit: placeOfVisit,
		Type:         qr.TypeOutpass,
		CreatedAt:    now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to generate QR code")
	}
	outpass.QRCode = code

	if _, err := s.outpasses.InsertOne(queryCtx, outpass); err != nil {
		return nil, status.Error(codes.Internal, "failed to create outpass")
	}
	return &outpass, nil
}

// GetOutpassHistory lists the student's outpasses, newest first
func (s *Service) GetOutpassHistory(ctx context.Context, studentID string) ([]shared.Outpass, error) {
	id, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid student id")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.outpasses.Find(queryCtx, bson.M{"student_id": id}, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}

	passes := []shared.Outpass{}
	if err := cursor.All(queryCtx, &passes); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	return passes, nil
}

// GetActiveOutpass returns the student's current active outpass, if any
func (s *Service) GetActiveOutpass(ctx context.Context, studentID string) (*shared.Outpass, error) {
	id, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid student id")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var outpass shared.Outpass
	err = s.outpasses.FindOne(queryCtx, bson.M{"student_id": id, "status": shared.OutpassActive}).Decode(&outpass)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "no active outpass")
		}
		return nil, status.Error(codes.Internal, "database error")
	}
	return &outpass, nil
}
