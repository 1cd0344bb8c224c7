// ============================================================================
// internal/shared/models.go
// Shared data models and structs for MongoDB documents
// ============================================================================

package shared

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ============================================================================
// Roles and Status Constants
// ============================================================================

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
	RoleParent  = "parent"
	RoleWarden  = "warden"
)

// Permission letter overall status
const (
	PLPending        = "pending"
	PLParentApproved = "parent-approved"
	PLApproved       = "approved"
	PLRejected       = "rejected"
	PLExpired        = "expired"
)

// Per-reviewer status (parent_status / warden_status)
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Outpass status
const (
	OutpassActive    = "active"
	OutpassCompleted = "completed"
)

// Attendance status
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
)

// Scan actions derived from the entry/exit ledger
const (
	ActionExit  = "exit"
	ActionEntry = "entry"
)

// OutpassWindow is how long a student may stay out on an outpass. The
// expected return time is computed from the exit scan, not from creation.
const OutpassWindow = 4 * time.Hour

// IsValidRole checks if a login/claim role is one we know
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStudent, RoleParent, RoleWarden:
		return true
	}
	return false
}

// ============================================================================
// Account Models
// ============================================================================

// Student represents a hostel resident account
type Student struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RegNo            string             `bson:"reg_no" json:"reg_no"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Password         string             `bson:"password" json:"-"` // Never expose in JSON
	MobileNo         string             `bson:"mobile_no" json:"mobile_no"`
	YearOfStudy      string             `bson:"year_of_study" json:"year_of_study"`
	Department       string             `bson:"department" json:"department"`
	HostelName       string             `bson:"hostel_name" json:"hostel_name"`
	RoomNo           string             `bson:"room_no" json:"room_no"`
	ParentName       string             `bson:"parent_name" json:"parent_name"`
	IsOnVacation     bool               `bson:"is_on_vacation" json:"is_on_vacation"`
	ResetToken       *string            `bson:"reset_token,omitempty" json:"-"`
	ResetTokenExpiry *time.Time         `bson:"reset_token_expiry,omitempty" json:"-"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Parent is linked to exactly one student by registration number,
// looked up by value rather than a foreign key.
type Parent struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ParentID         string             `bson:"parent_id" json:"parent_id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Password         string             `bson:"password" json:"-"`
	MobileNo         string             `bson:"mobile_no" json:"mobile_no"`
	StudentName      string             `bson:"student_name" json:"student_name"`
	StudentRegNo     string             `bson:"student_reg_no" json:"student_reg_no"`
	ResetToken       *string            `bson:"reset_token,omitempty" json:"-"`
	ResetTokenExpiry *time.Time         `bson:"reset_token_expiry,omitempty" json:"-"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Warden administers the students of a single hostel
type Warden struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WardenID         string             `bson:"warden_id" json:"warden_id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Password         string             `bson:"password" json:"-"`
	MobileNo         string             `bson:"mobile_no" json:"mobile_no"`
	HostelName       string             `bson:"hostel_name" json:"hostel_name"`
	ResetToken       *string            `bson:"reset_token,omitempty" json:"-"`
	ResetTokenExpiry *time.Time         `bson:"reset_token_expiry,omitempty" json:"-"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Admin is the bootstrap/administration account
type Admin struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Password         string             `bson:"password" json:"-"`
	Role             string             `bson:"role" json:"role"`
	ResetToken       *string            `bson:"reset_token,omitempty" json:"-"`
	ResetTokenExpiry *time.Time         `bson:"reset_token_expiry,omitempty" json:"-"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Account is the credential view shared by all four account kinds. The four
// collections stay separately keyed, but auth decodes any of their documents
// through this one struct and tags it with the Kind it came from.
type Account struct {
	ID               primitive.ObjectID `bson:"_id"`
	Kind             string             `bson:"-"`
	Name             string             `bson:"name"`
	Email            string             `bson:"email"`
	Password         string             `bson:"password"`
	ResetToken       *string            `bson:"reset_token"`
	ResetTokenExpiry *time.Time         `bson:"reset_token_expiry"`
}

// HasLiveResetToken reports whether a temporary password is stored and still
// inside its 24-hour window.
func (a *Account) HasLiveResetToken(now time.Time) bool {
	return a.ResetToken != nil && *a.ResetToken != "" &&
		a.ResetTokenExpiry != nil && a.ResetTokenExpiry.After(now)
}

// ============================================================================
// Permission Letter Model
// ============================================================================

// PermissionLetter represents one leave request. Student identity fields are
// denormalized at creation time so the letter stays readable even if the
// student record changes later.
type PermissionLetter struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID         primitive.ObjectID `bson:"student_id" json:"student_id"`
	Name              string             `bson:"name" json:"name"`
	RegNo             string             `bson:"reg_no" json:"reg_no"`
	RoomNo            string             `bson:"room_no" json:"room_no"`
	HostelName        string             `bson:"hostel_name" json:"hostel_name"`
	YearOfStudy       string             `bson:"year_of_study" json:"year_of_study"`
	Department        string             `bson:"department" json:"department"`
	PlaceOfVisit      string             `bson:"place_of_visit" json:"place_of_visit"`
	ReasonOfVisit     string             `bson:"reason_of_visit" json:"reason_of_visit"`
	DepartureDateTime time.Time          `bson:"departure_date_time" json:"departure_date_time"`
	ArrivalDateTime   time.Time          `bson:"arrival_date_time" json:"arrival_date_time"`
	Status            string             `bson:"status" json:"status"`
	ParentStatus      string             `bson:"parent_status" json:"parent_status"`
	WardenStatus      string             `bson:"warden_status" json:"warden_status"`
	RejectionReason   string             `bson:"rejection_reason" json:"rejection_reason"`
	QRCode            string             `bson:"qr_code" json:"qr_code"`
	IsFullyUsed       bool               `bson:"is_fully_used" json:"is_fully_used"`
	UsedAt            *time.Time         `bson:"used_at" json:"used_at,omitempty"`
	ApprovedAt        *time.Time         `bson:"approved_at" json:"approved_at,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// IsTerminal reports whether the letter can never transition again.
func (pl *PermissionLetter) IsTerminal() bool {
	return pl.Status == PLRejected || (pl.Status == PLExpired && pl.IsFullyUsed)
}

// ============================================================================
// Entry/Exit Ledger Model
// ============================================================================

// EntryExitLog tracks one PL's exit/return cycle (1:1 with the letter).
// Its absence means the student never exited on that letter.
type EntryExitLog struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PermissionLetterID primitive.ObjectID `bson:"permission_letter_id" json:"permission_letter_id"`
	StudentID          primitive.ObjectID `bson:"student_id" json:"student_id"`
	StudentName        string             `bson:"student_name" json:"student_name"`
	RegNo              string             `bson:"reg_no" json:"reg_no"`
	ExitTime           *time.Time         `bson:"exit_time" json:"exit_time,omitempty"`
	EntryTime          *time.Time         `bson:"entry_time" json:"entry_time,omitempty"`
	LoggedBy           primitive.ObjectID `bson:"logged_by" json:"logged_by"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ScanAction derives the next expected gate action for a PL from its ledger
// entry. A nil log means the student has never exited.
func ScanAction(log *EntryExitLog) (string, error) {
	switch {
	case log == nil || log.ExitTime == nil:
		return ActionExit, nil
	case log.EntryTime == nil:
		return ActionEntry, nil
	default:
		return "", fmt.Errorf("permission letter already fully processed")
	}
}

// ============================================================================
// Outpass Model
// ============================================================================

// Outpass is a self-contained short pass. Unlike the permission letter its
// QR code is minted at creation, and the warden is the only gate.
type Outpass struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	StudentID          primitive.ObjectID  `bson:"student_id" json:"student_id"`
	Name               string              `bson:"name" json:"name"`
	RegNo              string              `bson:"reg_no" json:"reg_no"`
	Department         string              `bson:"department" json:"department"`
	YearOfStudy        string              `bson:"year_of_study" json:"year_of_study"`
	RoomNo             string              `bson:"room_no" json:"room_no"`
	HostelName         string              `bson:"hostel_name" json:"hostel_name"`
	PlaceOfVisit       string              `bson:"place_of_visit" json:"place_of_visit"`
	ExitTime           *time.Time          `bson:"exit_time" json:"exit_time,omitempty"`
	ExpectedReturnTime *time.Time          `bson:"expected_return_time" json:"expected_return_time,omitempty"`
	ActualReturnTime   *time.Time          `bson:"actual_return_time" json:"actual_return_time,omitempty"`
	Status             string              `bson:"status" json:"status"`
	IsDelayed          bool                `bson:"is_delayed" json:"is_delayed"`
	DelayDuration      int                 `bson:"delay_duration" json:"delay_duration"` // minutes
	QRCode             string              `bson:"qr_code" json:"qr_code"`
	ExitApprovedBy     *primitive.ObjectID `bson:"exit_approved_by" json:"exit_approved_by,omitempty"`
	EntryApprovedBy    *primitive.ObjectID `bson:"entry_approved_by" json:"entry_approved_by,omitempty"`
	CreatedAt          time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ScanAction derives the next expected gate action for an outpass.
func (o *Outpass) ScanAction() (string, error) {
	switch {
	case o.ExitTime == nil:
		return ActionExit, nil
	case o.ActualReturnTime == nil:
		return ActionEntry, nil
	default:
		return "", fmt.Errorf("outpass already completed")
	}
}

// LiveDelay reports whether a still-active outpass has overstayed its window
// at the given instant, and by how many whole minutes.
func (o *Outpass) LiveDelay(now time.Time) (bool, int) {
	if o.ExpectedReturnTime == nil || !now.After(*o.ExpectedReturnTime) {
		return false, 0
	}
	return true, DelayMinutes(*o.ExpectedReturnTime, now)
}

// DelayMinutes is the whole number of minutes actual lags behind expected.
// Early returns come out negative.
func DelayMinutes(expected, actual time.Time) int {
	return int(actual.Sub(expected).Minutes())
}

// ============================================================================
// Attendance Model
// ============================================================================

// Attendance is one record per (student, calendar day). The is_on_vacation
// flag is a snapshot at mark time; vacation-day records are not retroactively
// overwritten.
type Attendance struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID    primitive.ObjectID `bson:"student_id" json:"student_id"`
	StudentName  string             `bson:"student_name" json:"student_name"`
	RegNo        string             `bson:"reg_no" json:"reg_no"`
	HostelName   string             `bson:"hostel_name" json:"hostel_name"`
	Date         time.Time          `bson:"date" json:"date"`
	Status       string             `bson:"status" json:"status"`
	IsOnVacation bool               `bson:"is_on_vacation" json:"is_on_vacation"`
	MarkedBy     primitive.ObjectID `bson:"marked_by" json:"marked_by"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// NormalizeDate truncates a timestamp to midnight UTC, the attendance day key.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ============================================================================
// Collection Names
// ============================================================================

const (
	ColStudents = "students"
	ColParents  = "parents"
	ColWardens  = "wardens"
	ColAdmins   = "admins"
	ColPLs      = "permission_letters"
	ColLogs     = "entry_exit_logs"
	ColOutpass  = "outpasses"
	ColAttend   = "attendance"
)
