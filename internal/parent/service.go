package parent

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
	"hostelpass/internal/shared"
)

// Service implements the parent-facing operations: reviewing the linked
// student's permission letters. Ownership is checked by registration number,
// never by the client-supplied letter alone.
type Service struct {
	parents  *mongo.Collection
	students *mongo.Collection
	pls      *mongo.Collection

	mailer notify.Sender
}

// NewService creates a new parent Service instance
func NewService(db *mongo.Database, mailer notify.Sender) *Service {
	return &Service{
		parents:  db.Collection(shared.ColParents),
		students: db.Collection(shared.ColStudents),
		pls:      db.Collection(shared.ColPLs),
		mailer:   mailer,
	}
}

// Stats is the parent dashboard card set
type Stats struct {
	TotalRequests    int64  `json:"total_requests"`
	PendingRequests  int64  `json:"pending_requests"`
	ApprovedRequests int64  `json:"approved_requests"`
	RejectedRequests int64  `json:"rejected_requests"`
	StudentName      string `json:"student_name"`
	StudentRegNo     string `json:"student_reg_no"`
}

// load fetches the calling parent's record
func (s *Service) load(ctx context.Context, parentID string) (*shared.Parent, error) {
	id, err := primitive.ObjectIDFromHex(parentID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid parent id")
	}
	var p shared.Parent
	if err := s.parents.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "parent not found")
		}
		return nil, status.Error(codes.Internal, "database error")
	}
	return &p, nil
}

// GetStats aggregates counters over the linked student's letters
func (s *Service) GetStats(ctx context.Context, parentID string) (*Stats, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	p, err := s.load(queryCtx, parentID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{StudentName: p.StudentName, StudentRegNo: p.StudentRegNo}
	counts := []struct {
		dst    *int64
		filter bson.M
	}{
		{&stats.TotalRequests, bson.M{"reg_no": p.StudentRegNo}},
		{&stats.PendingRequests, bson.M{"reg_no": p.StudentRegNo, "parent_status": shared.ReviewPending, "status": shared.PLPending}},
		{&stats.ApprovedRequests, bson.M{"reg_no": p.StudentRegNo, "parent_status": shared.ReviewApproved}},
		{&stats.RejectedRequests, bson.M{"reg_no": p.StudentRegNo, "parent_status": shared.ReviewRejected}},
	}
	for _, c := range counts {
		n, err := s.pls.CountDocuments(queryCtx, c.filter)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to load stats")
		}
		*c.dst = n
	}
	return stats, nil
}

// GetPendingRequests lists the linked student's letters awaiting this
// parent's decision.
func (s *Service) GetPendingRequests(ctx context.Context, parentID string) ([]shared.PermissionLetter, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	p, err := s.load(queryCtx, parentID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.pls.Find(queryCtx, bson.M{
		"reg_no":        p.StudentRegNo,
		"parent_status": shared.ReviewPending,
		"status":        shared.PLPending,
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

// GetHistory lists every letter of the linked student, newest first
func (s *Service) GetHistory(ctx context.Context, parentID string) ([]shared.PermissionLetter, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	p, err := s.load(queryCtx, parentID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.pls.Find(queryCtx, bson.M{"reg_no": p.StudentRegNo}, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}

	letters := []shared.PermissionLetter{}
	if err := cursor.All(queryCtx, &letters); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	return letters, nil
}

// loadOwnedPending fetches a letter and enforces the ownership and
// still-pending preconditions shared by approve and reject.
func (s *Service) loadOwnedPending(ctx context.Context, p *shared.Parent, plID string) (*shared.PermissionLetter, error) {
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

	if pl.RegNo != p.StudentRegNo {
		return nil, status.Error(codes.PermissionDenied, "this request does not belong to your student")
	}
	if pl.ParentStatus != shared.ReviewPending {
		return nil, status.Error(codes.FailedPrecondition, "request has already been processed")
	}
	return &pl, nil
}

// ApproveRequest marks the letter parent-approved and passes it on to the
// warden queue. The student is notified best effort.
func (s *Service) ApproveRequest(ctx context.Context, parentID, plID string) (*shared.PermissionLetter, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	p, err := s.load(queryCtx, parentID)
	if err != nil {
		return nil, err
	}
	pl, err := s.loadOwnedPending(queryCtx, p, plID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = s.pls.UpdateOne(queryCtx, bson.M{"_id": pl.ID}, bson.M{
		"$set": bson.M{
			"parent_status": shared.ReviewApproved,
			"status":        shared.PLParentApproved,
			"updated_at":    now,
		},
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to update permission letter")
	}
	pl.ParentStatus = shared.ReviewApproved
	pl.Status = shared.PLParentApproved
	pl.UpdatedAt = now

	s.notifyStudent(queryCtx, pl, notify.SubjectParentApproved, notify.PLApprovedByParent(pl.Name, pl))

	return pl, nil
}

// RejectRequest terminates the letter with a reason
func (s *Service) RejectRequest(ctx context.Context, parentID, plID, reason string) (*shared.PermissionLetter, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	p, err := s.load(queryCtx, parentID)
	if err != nil {
		return nil, err
	}
	pl, err := s.loadOwnedPending(queryCtx, p, plID)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "Rejected by parent"
	}

	now := time.Now()
	_, err = s.pls.UpdateOne(queryCtx, bson.M{"_id": pl.ID}, bson.M{
		"$set": bson.M{
			"parent_status":    shared.ReviewRejected,
			"status":           shared.PLRejected,
			"rejection_reason": reason,
			"updated_at":       now,
		},
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to update permission letter")
	}
	pl.ParentStatus = shared.ReviewRejected
	pl.Status = shared.PLRejected
	pl.RejectionReason = reason
	pl.UpdatedAt = now

	s.notifyStudent(queryCtx, pl, notify.SubjectParentRejected, notify.PLRejectedByParent(pl.Name, pl, reason))

	return pl, nil
}

func (s *Service) notifyStudent(ctx context.Context, pl *shared.PermissionLetter, subject, body string) {
	var st shared.Student
	if err := s.students.FindOne(ctx, bson.M{"_id": pl.StudentID}).Decode(&st); err != nil {
		log.Printf("Warning: student lookup for PL %s failed: %v", pl.ID.Hex(), err)
		return
	}
	if _, err := s.mailer.Send(st.Email, subject, body); err != nil {
		log.Printf("Warning: decision email to %s failed: %v", st.Email, err)
	}
}
