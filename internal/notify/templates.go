package notify

import (
	"bytes"
	"html/template"
	"time"

	"hostelpass/internal/shared"
)

// Subject lines used by the services
const (
	SubjectPLRequest      = "Permission Letter Request from Your Child"
	SubjectParentApproved = "Permission Approved by Parent"
	SubjectParentRejected = "Permission Rejected by Parent"
	SubjectWardenApproved = "Permission Letter Approved"
	SubjectWardenRejected = "Permission Letter Rejected by Warden"
	SubjectTempPassword   = "Your Temporary Password"
	SubjectAccountCreated = "Your Hostel Portal Account"
)

const timeLayout = "Mon, 02 Jan 2006 15:04"

var baseTmpl = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background-color: {{.Color}}; color: white; padding: 20px; text-align: center; }
  .content { background-color: #f9f9f9; padding: 20px; margin-top: 20px; }
  .details { background-color: white; padding: 15px; margin-top: 15px; border-left: 4px solid {{.Color}}; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h2>{{.Title}}</h2></div>
  <div class="content">
    <p>Dear {{.Greeting}},</p>
    <p>{{.Lead}}</p>
    {{if .Details}}<div class="details">
      <h3>Request Details:</h3>
      {{range .Details}}<p><strong>{{.Label}}:</strong> {{.Value}}</p>
      {{end}}
    </div>{{end}}
    {{if .Footer}}<p>{{.Footer}}</p>{{end}}
  </div>
</div>
</body>
</html>`))

type detail struct {
	Label string
	Value string
}

type mailData struct {
	Color    string
	Title    string
	Greeting string
	Lead     template.HTML
	Details  []detail
	Footer   string
}

func render(data mailData) string {
	var buf bytes.Buffer
	if err := baseTmpl.Execute(&buf, data); err != nil {
		// Template and data are both static; a failure here is a programming
		// error, not a runtime condition worth surfacing to callers.
		return ""
	}
	return buf.String()
}

func plDetails(pl *shared.PermissionLetter) []detail {
	return []detail{
		{"Place of Visit", pl.PlaceOfVisit},
		{"Reason", pl.ReasonOfVisit},
		{"Departure", pl.DepartureDateTime.Format(timeLayout)},
		{"Expected Return", pl.ArrivalDateTime.Format(timeLayout)},
	}
}

// PLRequestToParent notifies a parent that their child submitted a request.
func PLRequestToParent(studentName string, pl *shared.PermissionLetter) string {
	return render(mailData{
		Color:    "#667eea",
		Title:    "Permission Letter Request",
		Greeting: "Parent",
		Lead:     template.HTML("Your child <strong>" + template.HTMLEscapeString(studentName) + "</strong> has submitted a permission letter request."),
		Details:  plDetails(pl),
		Footer:   "Please login to your parent portal to approve or reject this request.",
	})
}

// PLApprovedByParent notifies the student of the parent's approval.
func PLApprovedByParent(studentName string, pl *shared.PermissionLetter) string {
	return render(mailData{
		Color:    "#28a745",
		Title:    "Permission Approved by Parent",
		Greeting: studentName,
		Lead:     "Your permission letter request has been <strong>approved by your parent</strong>.",
		Details:  plDetails(pl),
		Footer:   "Your request is now pending warden approval. You will be notified once the warden reviews your request.",
	})
}

// PLRejectedByParent notifies the student of the parent's rejection.
func PLRejectedByParent(studentName string, pl *shared.PermissionLetter, reason string) string {
	return render(mailData{
		Color:    "#dc3545",
		Title:    "Permission Rejected by Parent",
		Greeting: studentName,
		Lead:     "Your permission letter request has been <strong>rejected by your parent</strong>.",
		Details:  append(plDetails(pl), detail{"Reason for Rejection", reason}),
	})
}

// PLApprovedByWarden notifies the student of final approval.
func PLApprovedByWarden(studentName string, pl *shared.PermissionLetter) string {
	return render(mailData{
		Color:    "#28a745",
		Title:    "Permission Letter Approved",
		Greeting: studentName,
		Lead:     "Your permission letter has been <strong>approved by the warden</strong>. Show the QR code on your pass at the hostel gate.",
		Details:  plDetails(pl),
	})
}

// PLRejectedByWarden notifies the student (and their parent) of the warden's
// rejection.
func PLRejectedByWarden(studentName string, pl *shared.PermissionLetter, reason string) string {
	return render(mailData{
		Color:    "#dc3545",
		Title:    "Permission Letter Rejected by Warden",
		Greeting: studentName,
		Lead:     "The permission letter request has been <strong>rejected by the warden</strong>.",
		Details:  append(plDetails(pl), detail{"Reason for Rejection", reason}),
	})
}

// AccountCreated welcomes a newly provisioned account.
func AccountCreated(name, role, email string) string {
	return render(mailData{
		Color:    "#667eea",
		Title:    "Account Created",
		Greeting: name,
		Lead:     template.HTML("A <strong>" + template.HTMLEscapeString(role) + "</strong> account has been created for you on the hostel portal."),
		Details: []detail{
			{"Login Email", email},
			{"Role", role},
		},
		Footer: "Log in with the password shared by your administrator and change it after your first login.",
	})
}

// TemporaryPassword carries a freshly generated reset credential.
func TemporaryPassword(name, tempPassword string, expiry time.Time) string {
	return render(mailData{
		Color:    "#667eea",
		Title:    "Password Reset",
		Greeting: name,
		Lead:     "A temporary password was requested for your account. Use it to log in and then set a new password.",
		Details: []detail{
			{"Temporary Password", tempPassword},
			{"Valid Until", expiry.Format(timeLayout)},
		},
		Footer: "If you did not request this, you can ignore this email; your current password still works.",
	})
}
