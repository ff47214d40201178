// internal/models/application.go
package models

import "time"

// Application statuses understood by the contestants table and the review process.
const (
	StatusPending     = "pending"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
	StatusWaitlisted  = "waitlisted"
)

// ValidStatuses lists every status a contestant application may hold.
var ValidStatuses = []string{
	StatusPending,
	StatusUnderReview,
	StatusApproved,
	StatusRejected,
	StatusWaitlisted,
}

// IsValidStatus reports whether s is a known application status.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ApplicationRecord is the typed projection of a completed draft, persisted
// once per successful submission into the contestants table.
type ApplicationRecord struct {
	ID                        string    `json:"id,omitempty"`
	ApplicationNumber         string    `json:"application_number"`
	UserID                    *string   `json:"user_id"`
	FirstName                 string    `json:"first_name"`
	LastName                  string    `json:"last_name"`
	Email                     string    `json:"email"`
	Phone                     string    `json:"phone"`
	DateOfBirth               string    `json:"date_of_birth"`
	Age                       int       `json:"age"`
	Province                  string    `json:"province"`
	City                      string    `json:"city"`
	Address                   string    `json:"address"`
	DisabilityType            string    `json:"disability_type"`
	DisabilityDescription     string    `json:"disability_description"`
	Height                    *float64  `json:"height"`
	Weight                    *float64  `json:"weight"`
	EmergencyContactName      string    `json:"emergency_contact_name"`
	EmergencyContactPhone     string    `json:"emergency_contact_phone"`
	EducationLevel            string    `json:"education_level"`
	Occupation                string    `json:"occupation"`
	Achievements              string    `json:"achievements"`
	Hobbies                   string    `json:"hobbies"`
	LanguagesSpoken           []string  `json:"languages_spoken"`
	TalentDescription         string    `json:"talent_description"`
	PlatformCause             string    `json:"platform_cause"`
	WhyCompete                string    `json:"why_compete"`
	PreviousPageantExperience string    `json:"previous_pageant_experience"`
	PhotoURL                  *string   `json:"photo_url"`
	IDDocumentURL             *string   `json:"id_document_url"`
	MedicalCertificateURL     *string   `json:"medical_certificate_url"`
	MedicalClearance          bool      `json:"medical_clearance"`
	Status                    string    `json:"status"`
	CreatedAt                 time.Time `json:"created_at"`
}

// UploadedAsset describes a file that reached the object store.
type UploadedAsset struct {
	OriginalFieldName string `json:"originalFieldName"`
	RemoteURL         string `json:"remoteUrl"`
	RemotePath        string `json:"remotePath"`
	Bucket            string `json:"bucket"`
	Size              int64  `json:"size"`
	ContentType       string `json:"contentType,omitempty"`
}

// URLField is the draft key an uploaded asset is attached under.
func (a UploadedAsset) URLField() string {
	return URLFieldFor(a.OriginalFieldName)
}

// URLFieldFor derives the hidden draft key for a file field.
func URLFieldFor(field string) string {
	return field + urlSuffix
}
