package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hostelpass/internal/admin"
	"hostelpass/internal/auth"
	"hostelpass/internal/gateway/handlers"
	"hostelpass/internal/parent"
	"hostelpass/internal/shared"
	"hostelpass/internal/student"
	"hostelpass/internal/warden"
)

// Services bundles the domain services the router dispatches to.
type Services struct {
	Auth    *auth.Service
	Student *student.Service
	Parent  *parent.Service
	Warden  *warden.Service
	Admin   *admin.Service
}

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(svc *Services, corsCfg shared.CORSConfig) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(MetricsMiddleware)

	// CORS Configuration (Allow React Frontend)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   corsCfg.AllowedMethods,
		AllowedHeaders:   corsCfg.AllowedHeaders,
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: corsCfg.AllowCredentials,
		MaxAge:           corsCfg.MaxAge,
	}))

	// 2. Initialize Handlers
	authHandler := &handlers.AuthHandler{Auth: svc.Auth}
	studentHandler := &handlers.StudentHandler{Student: svc.Student}
	parentHandler := &handlers.ParentHandler{Parent: svc.Parent}
	wardenHandler := &handlers.WardenHandler{Warden: svc.Warden}
	adminHandler := &handlers.AdminHandler{Admin: svc.Admin}

	// Operational endpoints
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// 3. Define Routes (grouped by prefix)
	r.Route("/api", func(r chi.Router) {

		// --- Public Routes ---
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/reset-password", authHandler.ResetPassword)

		// --- Protected Routes (Require Valid Token) ---
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(svc.Auth))

			r.Post("/auth/change-password", authHandler.ChangePassword)

			// Student
			r.Route("/student", func(r chi.Router) {
				r.Use(RequireRole(shared.RoleStudent))

				r.Get("/stats", studentHandler.GetStats)
				r.Get("/profile", studentHandler.GetProfile)
				r.Post("/permission-letters", studentHandler.RequestPL)
				r.Get("/permission-letters", studentHandler.GetPLRequests)
				r.Get("/permission-letters/{id}/card", studentHandler.GetPLCard)
				r.Post("/outpass", studentHandler.RequestOutpass)
				r.Get("/outpass/history", studentHandler.GetOutpassHistory)
				r.Get("/outpass/active", studentHandler.GetActiveOutpass)
			})

			// Parent
			r.Route("/parent", func(r chi.Router) {
				r.Use(RequireRole(shared.RoleParent))

				r.Get("/stats", parentHandler.GetStats)
				r.Get("/requests/pending", parentHandler.GetPendingRequests)
				r.Get("/requests/history", parentHandler.GetHistory)
				r.Post("/requests/{id}/approve", parentHandler.ApproveRequest)
				r.Post("/requests/{id}/reject", parentHandler.RejectRequest)
			})

			// Warden
			r.Route("/warden", func(r chi.Router) {
				r.Use(RequireRole(shared.RoleWarden))

				r.Get("/stats", wardenHandler.GetStats)
				r.Get("/students", wardenHandler.GetStudents)
				r.Get("/requests/pending", wardenHandler.GetPendingRequests)
				r.Post("/requests/{id}/approve", wardenHandler.ApproveRequest)
				r.Post("/requests/{id}/reject", wardenHandler.RejectRequest)

				r.Post("/scan/verify", wardenHandler.VerifyQR)
				r.Post("/scan/log", wardenHandler.LogEntryExit)
				r.Post("/outpass/scan/verify", wardenHandler.VerifyOutpassQR)
				r.Post("/outpass/scan/log", wardenHandler.LogOutpassAction)

				r.Get("/outpass/active", wardenHandler.GetActiveOutpasses)
				r.Get("/outpass/delayed", wardenHandler.GetDelayedOutpasses)
				r.Get("/vacation/delayed", wardenHandler.GetDelayedVacationStudents)

				r.Get("/attendance", wardenHandler.GetAttendanceSheet)
				r.Post("/attendance", wardenHandler.MarkAttendance)
				r.Get("/attendance/report", wardenHandler.GetAttendanceReport)
			})

			// Admin
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(shared.RoleAdmin))

				r.Get("/stats", adminHandler.GetStats)
				r.Post("/students", adminHandler.AddStudent)
				r.Get("/students", adminHandler.GetStudents)
				r.Post("/parents", adminHandler.AddParent)
				r.Get("/parents", adminHandler.GetParents)
				r.Post("/wardens", adminHandler.AddWarden)
				r.Get("/wardens", adminHandler.GetWardens)
				r.Delete("/accounts/{role}/{id}", adminHandler.DeleteAccount)
			})
		})
	})

	return r
}
