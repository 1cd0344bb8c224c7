package main

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"hostelpass/internal/shared"
)

// Common credentials for every seeded account
const CommonPassword = "password"

func main() {
	log.Println("Starting Database Seeder...")

	shared.LoadEnv(".env")

	cfg, err := shared.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	// Drop everything so the seed starts clean.
	if err := db.Drop(context.Background()); err != nil {
		log.Fatalf("Failed to drop database: %v", err)
	}
	log.Println("Database cleared successfully.")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := shared.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	hashedBytes, _ := bcrypt.GenerateFromPassword([]byte(CommonPassword), cfg.Security.BCryptCost)
	hashed := string(hashedBytes)
	now := time.Now()

	seedAdmins(ctx, db, hashed, now)
	students := seedStudents(ctx, db, hashed, now)
	seedParents(ctx, db, hashed, now, students)
	seedWardens(ctx, db, hashed, now)

	log.Println("All data seeding completed successfully.")
}

func seedAdmins(ctx context.Context, db *mongo.Database, hashed string, now time.Time) {
	log.Println("--- Seeding Admins ---")
	col := db.Collection(shared.ColAdmins)

	admin := shared.Admin{
		ID:        primitive.NewObjectID(),
		Name:      "Super Admin",
		Email:     "admin@example.com",
		Password:  hashed,
		Role:      shared.RoleAdmin,
		CreatedAt: now,
	}
	if _, err := col.InsertOne(ctx, admin); err != nil {
		log.Fatalf("Error seeding admin: %v", err)
	}
	log.Printf("Seeded admin: %s", admin.Email)
}

func seedStudents(ctx context.Context, db *mongo.Database, hashed string, now time.Time) []shared.Student {
	log.Println("--- Seeding Students ---")
	col := db.Collection(shared.ColStudents)

	students := []shared.Student{
		{ID: primitive.NewObjectID(), RegNo: "2024HST001", Name: "Arun Kumar", Email: "student@example.com", MobileNo: "9876500001", YearOfStudy: "2", Department: "Computer Science", HostelName: "North Block", RoomNo: "A-101", ParentName: "Ramesh Kumar"},
		{ID: primitive.NewObjectID(), RegNo: "2024HST002", Name: "Priya Sharma", Email: "student2@example.com", MobileNo: "9876500002", YearOfStudy: "3", Department: "Electronics", HostelName: "North Block", RoomNo: "A-214", ParentName: "Vikram Sharma"},
		{ID: primitive.NewObjectID(), RegNo: "2024HST003", Name: "David Joseph", Email: "student3@example.com", MobileNo: "9876500003", YearOfStudy: "1", Department: "Mechanical", HostelName: "South Block", RoomNo: "B-012", ParentName: "Thomas Joseph"},
	}

	for i := range students {
		students[i].Password = hashed
		students[i].CreatedAt = now
		if _, err := col.InsertOne(ctx, students[i]); err != nil {
			log.Fatalf("Error seeding student %s: %v", students[i].Email, err)
		}
		log.Printf("Seeded student: %s (%s)", students[i].Name, students[i].RegNo)
	}
	return students
}

func seedParents(ctx context.Context, db *mongo.Database, hashed string, now time.Time, students []shared.Student) {
	log.Println("--- Seeding Parents ---")
	col := db.Collection(shared.ColParents)

	emails := []string{"parent@example.com", "parent2@example.com", "parent3@example.com"}
	for i, st := range students {
		p := shared.Parent{
			ID:           primitive.NewObjectID(),
			ParentID:     "PAR-00" + string(rune('1'+i)),
			Name:         st.ParentName,
			Email:        emails[i],
			Password:     hashed,
			MobileNo:     "9876600001",
			StudentName:  st.Name,
			StudentRegNo: st.RegNo,
			CreatedAt:    now,
		}
		if _, err := col.InsertOne(ctx, p); err != nil {
			log.Fatalf("Error seeding parent %s: %v", p.Email, err)
		}
		log.Printf("Seeded parent: %s for %s", p.Name, st.RegNo)
	}
}

func seedWardens(ctx context.Context, db *mongo.Database, hashed string, now time.Time) {
	log.Println("--- Seeding Wardens ---")
	col := db.Collection(shared.ColWardens)

	wardens := []shared.Warden{
		{ID: primitive.NewObjectID(), WardenID: "WAR-001", Name: "Suresh Menon", Email: "warden@example.com", MobileNo: "9876700001", HostelName: "North Block"},
		{ID: primitive.NewObjectID(), WardenID: "WAR-002", Name: "Lakshmi Nair", Email: "warden2@example.com", MobileNo: "9876700002", HostelName: "South Block"},
	}

	for i := range wardens {
		wardens[i].Password = hashed
		wardens[i].CreatedAt = now
		if _, err := col.InsertOne(ctx, wardens[i]); err != nil {
			log.Fatalf("Error seeding warden %s: %v", wardens[i].Email, err)
		}
		log.Printf("Seeded warden: %s (%s)", wardens[i].Name, wardens[i].HostelName)
	}
}
