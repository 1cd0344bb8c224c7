package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hostelpass/internal/notify"
	"hostelpass/internal/shared"
)

const (
	resetTokenLength = 12
	resetTokenTTL    = 24 * time.Hour
	minPasswordLen   = 6
)

// forgotPasswordMessage is returned whether or not the address exists, to
// prevent account enumeration.
const forgotPasswordMessage = "If an account exists for that email, a temporary password has been sent"

// Service implements login, password reset, and session token handling for
// all four account kinds.
type Service struct {
	db     *mongo.Database
	mailer notify.Sender

	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int
}

// Claims for the session JWT
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult is what a successful login returns to the handler
type LoginResult struct {
	Token string `json:"token"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// NewService creates a new auth Service instance
func NewService(db *mongo.Database, cfg shared.SecurityConfig, mailer notify.Sender) *Service {
	return &Service{
		db:         db,
		mailer:     mailer,
		jwtSecret:  []byte(cfg.JWTSecret),
		tokenTTL:   time.Duration(cfg.JWTExpirationHours) * time.Hour,
		bcryptCost: cfg.BCryptCost,
	}
}

// collectionForRole maps a role claim onto its account collection.
func (s *Service) collectionForRole(role string) (*mongo.Collection, error) {
	switch role {
	case shared.RoleAdmin:
		return s.db.Collection(shared.ColAdmins), nil
	case shared.RoleStudent:
		return s.db.Collection(shared.ColStudents), nil
	case shared.RoleParent:
		return s.db.Collection(shared.ColParents), nil
	case shared.RoleWarden:
		return s.db.Collection(shared.ColWardens), nil
	default:
		return nil, status.Error(codes.InvalidArgument, "invalid role")
	}
}

// roleOrder is the sequential-fallback probe order for operations that only
// know an email or an id, not a role.
var roleOrder = []string{shared.RoleAdmin, shared.RoleStudent, shared.RoleParent, shared.RoleWarden}

// Login authenticates an account in the collection selected by role and
// issues a signed session token. A stored, still-valid reset token is
// accepted in place of the password so a mailed temporary password works.
func (s *Service) Login(ctx context.Context, email, password, role string) (*LoginResult, error) {
	if email == "" || password == "" || role == "" {
		return nil, status.Error(codes.InvalidArgument, "email, password, and role are required")
	}

	col, err := s.collectionForRole(role)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var account shared.Account
	err = col.FindOne(queryCtx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.Unauthenticated, "invalid credentials")
		}
		return nil, status.Error(codes.Internal, "database error")
	}
	account.Kind = role

	if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)) != nil {
		// Alternate one-time credential: the mailed temporary password.
		if !account.HasLiveResetToken(time.Now()) || *account.ResetToken != password {
			return nil, status.Error(codes.Unauthenticated, "invalid credentials")
		}
	}

	token, err := s.generateToken(account.ID.Hex(), role)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to generate token")
	}

	name := account.Name
	if name == "" {
		name = "Admin"
	}

	return &LoginResult{
		Token: token,
		ID:    account.ID.Hex(),
		Name:  name,
		Email: account.Email,
		Role:  role,
	}, nil
}

// ForgotPassword generates a temporary password for the matching account and
// mails it. The response message is identical whether or not the email was
// found, and send failures are swallowed, both to avoid account enumeration.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", status.Error(codes.InvalidArgument, "email is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	account, col, err := s.findByEmail(queryCtx, email)
	if err != nil {
		return "", status.Error(codes.Internal, "database error")
	}
	if account == nil {
		return forgotPasswordMessage, nil
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		return "", status.Error(codes.Internal, "failed to generate temporary password")
	}
	expiry := time.Now().Add(resetTokenTTL)

	_, err = col.UpdateOne(queryCtx, bson.M{"_id": account.ID}, bson.M{
		"$set": bson.M{
			"reset_token":        tempPassword,
			"reset_token_expiry": expiry,
			"updated_at":         time.Now(),
		},
	})
	if err != nil {
		return "", status.Error(codes.Internal, "failed to store reset token")
	}

	name := account.Name
	if name == "" {
		name = "User"
	}
	if _, err := s.mailer.Send(account.Email, notify.SubjectTempPassword, notify.TemporaryPassword(name, tempPassword, expiry)); err != nil {
		log.Printf("Warning: reset email to %s failed: %v", account.Email, err)
	}

	return forgotPasswordMessage, nil
}

// ResetPassword completes the forgot-password cycle without a session: the
// mailed temporary password authorizes setting a new one.
func (s *Service) ResetPassword(ctx context.Context, email, resetToken, newPassword string) error {
	if email == "" || resetToken == "" {
		return status.Error(codes.InvalidArgument, "email and reset token are required")
	}
	if len(newPassword) < minPasswordLen {
		return status.Errorf(codes.InvalidArgument, "new password must be at least %d characters", minPasswordLen)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	account, col, err := s.findByEmail(queryCtx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return status.Error(codes.Internal, "database error")
	}
	if account == nil || !account.HasLiveResetToken(time.Now()) || *account.ResetToken != resetToken {
		return status.Error(codes.Unauthenticated, "invalid or expired reset token")
	}

	return s.setPassword(queryCtx, col, account.ID, newPassword)
}

// ChangePassword replaces the stored hash for an authenticated account,
// located across the four collections by id. Accounts holding a live reset
// token skip current-password verification: they just logged in with the
// temporary password and may not know the old one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return status.Errorf(codes.InvalidArgument, "new password must be at least %d characters", minPasswordLen)
	}

	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return status.Error(codes.InvalidArgument, "invalid user id")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	account, col, err := s.findByID(queryCtx, id)
	if err != nil {
		return status.Error(codes.Internal, "database error")
	}
	if account == nil {
		return status.Error(codes.NotFound, "account not found")
	}

	if !account.HasLiveResetToken(time.Now()) {
		if currentPassword == "" {
			return status.Error(codes.InvalidArgument, "current password is required")
		}
		if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(currentPassword)) != nil {
			return status.Error(codes.Unauthenticated, "incorrect current password")
		}
	}

	return s.setPassword(queryCtx, col, account.ID, newPassword)
}

// setPassword stores a fresh hash and clears any outstanding reset token.
func (s *Service) setPassword(ctx context.Context, col *mongo.Collection, id primitive.ObjectID, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return status.Error(codes.Internal, "failed to process password")
	}

	_, err = col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"password":   string(hash),
			"updated_at": time.Now(),
		},
		"$unset": bson.M{
			"reset_token":        "",
			"reset_token_expiry": "",
		},
	})
	if err != nil {
		return status.Error(codes.Internal, "failed to update password")
	}
	return nil
}

// findByEmail probes the four account collections sequentially. A nil account
// with a nil error means no match anywhere.
func (s *Service) findByEmail(ctx context.Context, email string) (*shared.Account, *mongo.Collection, error) {
	for _, role := range roleOrder {
		col, _ := s.collectionForRole(role)
		var account shared.Account
		err := col.FindOne(ctx, bson.M{"email": email}).Decode(&account)
		if err == mongo.ErrNoDocuments {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		account.Kind = role
		return &account, col, nil
	}
	return nil, nil, nil
}

// findByID is the id-keyed analogue of findByEmail.
func (s *Service) findByID(ctx context.Context, id primitive.ObjectID) (*shared.Account, *mongo.Collection, error) {
	for _, role := range roleOrder {
		col, _ := s.collectionForRole(role)
		var account shared.Account
		err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
		if err == mongo.ErrNoDocuments {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		account.Kind = role
		return &account, col, nil
	}
	return nil, nil, nil
}

// AccountByID resolves a token's id/role claims back to a live account. Used
// by the HTTP middleware on every authenticated request.
func (s *Service) AccountByID(ctx context.Context, userID, role string) (*shared.Account, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token subject")
	}

	col, err := s.collectionForRole(role)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token role")
	}

	var account shared.Account
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&account); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, status.Error(codes.Unauthenticated, "account not found")
		}
		return nil, status.Error(codes.Internal, "database error")
	}
	account.Kind = role
	return &account, nil
}

// ============================================================================
// Token Helpers
// ============================================================================

// generateToken creates a signed session JWT embedding (id, role)
func (s *Service) generateToken(userID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "hostelpass",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ParseToken validates the JWT signature and extracts claims
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	return claims, nil
}

// generateTempPassword returns a 12-character uppercase alphanumeric one-time
// credential.
func generateTempPassword() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	out := make([]byte, resetTokenLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}
