package admin

import (
	"context"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hostelpass/internal/notify"
	"hostelpass/internal/shared"
)

// Service implements account administration: creating and removing student,
// parent, and warden accounts.
type Service struct {
	students *mongo.Collection
	parents  *mongo.Collection
	wardens  *mongo.Collection
	pls      *mongo.Collection
	outpass  *mongo.Collection

	mailer     notify.Sender
	bcryptCost int
}

// NewService creates a new admin Service instance
func NewService(db *mongo.Database, cfg shared.SecurityConfig, mailer notify.Sender) *Service {
	return &Service{
		students:   db.Collection(shared.ColStudents),
		parents:    db.Collection(shared.ColParents),
		wardens:    db.Collection(shared.ColWardens),
		pls:        db.Collection(shared.ColPLs),
		outpass:    db.Collection(shared.ColOutpass),
		mailer:     mailer,
		bcryptCost: cfg.BCryptCost,
	}
}

// Stats is the admin dashboard card set
type Stats struct {
	TotalStudents  int64 `json:"total_students"`
	TotalParents   int64 `json:"total_parents"`
	TotalWardens   int64 `json:"total_wardens"`
	TotalPLs       int64 `json:"total_permission_letters"`
	TotalOutpasses int64 `json:"total_outpasses"`
}

// GetStats counts every account and pass collection
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats := &Stats{}
	counts := []struct {
		dst *int64
		col *mongo.Collection
	}{
		{&stats.TotalStudents, s.students},
		{&stats.TotalParents, s.parents},
		{&stats.TotalWardens, s.wardens},
		{&stats.TotalPLs, s.pls},
		{&stats.TotalOutpasses, s.outpass},
	}
	for _, c := range counts {
		n, err := c.col.CountDocuments(queryCtx, bson.M{})
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to load stats")
		}
		*c.dst = n
	}
	return stats, nil
}

// notifyAccountCreated mails the new account holder. Delivery failure never
// fails the create.
func (s *Service) notifyAccountCreated(name, email, role string) {
	if _, err := s.mailer.Send(email, notify.SubjectAccountCreated, notify.AccountCreated(name, role, email)); err != nil {
		log.Printf("Warning: failed to send account notification to %s: %v", email, err)
	}
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < 6 {
		return "", status.Error(codes.InvalidArgument, "password must be at least 6 characters")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", status.Error(codes.Internal, "failed to process password")
	}
	return string(h), nil
}

// StudentRequest carries a new student account
type StudentRequest struct {
	RegNo       string `json:"reg_no"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	MobileNo    string `json:"mobile_no"`
	YearOfStudy string `json:"year_of_study"`
	Department  string `json:"department"`
	HostelName  string `json:"hostel_name"`
	RoomNo      string `json:"room_no"`
	ParentName  string `json:"parent_name"`
}

// AddStudent creates a new student account
func (s *Service) AddStudent(ctx context.Context, req StudentRequest) (*shared.Student, error) {
	if req.RegNo == "" || req.Name == "" || req.Email == "" || req.HostelName == "" {
		return nil, status.Error(codes.InvalidArgument, "reg no, name, email, and hostel are required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	n, err := s.students.CountDocuments(queryCtx, bson.M{"$or": []bson.M{
		{"email": email},
		{"reg_no": req.RegNo},
	}})
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	if n > 0 {
		return nil, status.Error(codes.AlreadyExists, "a student with that email or registration number already exists")
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	st := shared.Student{
		ID:          primitive.NewObjectID(),
		RegNo:       req.RegNo,
		Name:        req.Name,
		Email:       email,
		Password:    hashed,
		MobileNo:    req.MobileNo,
		YearOfStudy: req.YearOfStudy,
		Department:  req.Department,
		HostelName:  req.HostelName,
		RoomNo:      req.RoomNo,
		ParentName:  req.ParentName,
		CreatedAt:   time.Now(),
	}
	if _, err := s.students.InsertOne(queryCtx, st); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, status.Error(codes.AlreadyExists, "a student with that email or registration number already exists")
		}
		return nil, status.Error(codes.Internal, "failed to create student")
	}

	s.notifyAccountCreated(st.Name, st.Email, shared.RoleStudent)
	return &st, nil
}

// ParentRequest carries a new parent account
type ParentRequest struct {
	ParentID     string `json:"parent_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	MobileNo     string `json:"mobile_no"`
	StudentRegNo string `json:"student_reg_no"`
}

// AddParent creates a new parent account. The linked student must already
// exist, since the link is by registration number value.
func (s *Service) AddParent(ctx context.Context, req ParentRequest) (*shared.Parent, error) {
	if req.ParentID == "" || req.Name == "" || req.Email == "" || req.StudentRegNo == "" {
		return nil, status.Error(codes.InvalidArgument, "parent id, name, email, and student reg no are required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var st shared.Student
	if err := s.students.FindOne(queryCtx, bson.M{"reg_no": req.StudentRegNo}).Decode(&st); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.NotFound, "no student with that registration number")
		}
		return nil, status.Error(codes.Internal, "database error")
	}

	n, err := s.parents.CountDocuments(queryCtx, bson.M{"$or": []bson.M{
		{"email": email},
		{"parent_id": req.ParentID},
	}})
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	if n > 0 {
		return nil, status.Error(codes.AlreadyExists, "a parent with that email or id already exists")
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	p := shared.Parent{
		ID:           primitive.NewObjectID(),
		ParentID:     req.ParentID,
		Name:         req.Name,
		Email:        email,
		Password:     hashed,
		MobileNo:     req.MobileNo,
		StudentName:  st.Name,
		StudentRegNo: st.RegNo,
		CreatedAt:    time.Now(),
	}
	if _, err := s.parents.InsertOne(queryCtx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, status.Error(codes.AlreadyExists, "a parent with that email or id already exists")
		}
		return nil, status.Error(codes.Internal, "failed to create parent")
	}

	s.notifyAccountCreated(p.Name, p.Email, shared.RoleParent)
	return &p, nil
}

// WardenRequest carries a new warden account
type WardenRequest struct {
	WardenID   string `json:"warden_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	MobileNo   string `json:"mobile_no"`
	HostelName string `json:"hostel_name"`
}

// AddWarden creates a new warden account
func (s *Service) AddWarden(ctx context.Context, req WardenRequest) (*shared.Warden, error) {
	if req.WardenID == "" || req.Name == "" || req.Email == "" || req.HostelName == "" {
		return nil, status.Error(codes.InvalidArgument, "warden id, name, email, and hostel are required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	n, err := s.wardens.CountDocuments(queryCtx, bson.M{"$or": []bson.M{
		{"email": email},
		{"warden_id": req.WardenID},
	}})
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	if n > 0 {
		return nil, status.Error(codes.AlreadyExists, "a warden with that email or id already exists")
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	w := shared.Warden{
		ID:         primitive.NewObjectID(),
		WardenID:   req.WardenID,
		Name:       req.Name,
		Email:      email,
		Password:   hashed,
		MobileNo:   req.MobileNo,
		HostelName: req.HostelName,
		CreatedAt:  time.Now(),
	}
	if _, err := s.wardens.InsertOne(queryCtx, w); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, status.Error(codes.AlreadyExists, "a warden with that email or id already exists")
		}
		return nil, status.Error(codes.Internal, "failed to create warden")
	}

	s.notifyAccountCreated(w.Name, w.Email, shared.RoleWarden)
	return &w, nil
}

// GetStudents lists all student accounts
func (s *Service) GetStudents(ctx context.Context) ([]shared.Student, error) {
	return listAll[shared.Student](ctx, s.students, "reg_no")
}

// GetParents lists all parent accounts
func (s *Service) GetParents(ctx context.Context) ([]shared.Parent, error) {
	return listAll[shared.Parent](ctx, s.parents, "parent_id")
}

// GetWardens lists all warden accounts
func (s *Service) GetWardens(ctx context.Context) ([]shared.Warden, error) {
	return listAll[shared.Warden](ctx, s.wardens, "warden_id")
}

func listAll[T any](ctx context.Context, col *mongo.Collection, sortKey string) ([]T, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.M{sortKey: 1})
	cursor, err := col.Find(queryCtx, bson.M{}, opts)
	if err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}

	out := []T{}
	if err := cursor.All(queryCtx, &out); err != nil {
		return nil, status.Error(codes.Internal, "database error")
	}
	return out, nil
}

// DeleteAccount removes an account of the given role by id
func (s *Service) DeleteAccount(ctx context.Context, role, accountID string) error {
	id, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return status.Error(codes.InvalidArgument, "invalid account id")
	}

	var col *mongo.Collection
	switch role {
	case shared.RoleStudent:
		col = s.students
	case shared.RoleParent:
		col = s.parents
	case shared.RoleWarden:
		col = s.wardens
	default:
		return status.Error(codes.InvalidArgument, "role must be student, parent, or warden")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := col.DeleteOne(queryCtx, bson.M{"_id": id})
	if err != nil {
		return status.Error(codes.Internal, "failed to delete account")
	}
	if res.DeletedCount == 0 {
		return status.Error(codes.NotFound, "account not found")
	}
	log.Printf("Deleted %s account %s", role, accountID)
	return nil
}
