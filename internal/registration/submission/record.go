// internal/registration/submission/record.go
package submission

import (
	"strconv"
	"strings"
	"time"

	"msad-registration/internal/common/validation"
	"msad-registration/internal/models"
	"msad-registration/internal/registration/validator"
)

// contestantSchema guards the contestants table contract before the insert.
var contestantSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["application_number", "first_name", "last_name", "email", "phone",
               "date_of_birth", "age", "province", "city", "status", "photo_url"],
  "properties": {
    "application_number": {"type": "string", "pattern": "^[A-Z]+\\d{10}[A-Z0-9]{3}$"},
    "user_id": {"type": ["string", "null"]},
    "first_name": {"type": "string", "minLength": 1},
    "last_name": {"type": "string", "minLength": 1},
    "email": {"type": "string", "minLength": 3},
    "phone": {"type": "string", "minLength": 10},
    "date_of_birth": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "age": {"type": "integer", "minimum": 0},
    "height": {"type": ["number", "null"], "minimum": 0},
    "weight": {"type": ["number", "null"], "minimum": 0},
    "languages_spoken": {"type": ["array", "null"], "items": {"type": "string"}},
    "photo_url": {"type": ["string", "null"]},
    "id_document_url": {"type": ["string", "null"]},
    "medical_certificate_url": {"type": ["string", "null"]},
    "medical_clearance": {"type": "boolean"},
    "status": {"enum": ["pending", "under_review", "approved", "rejected", "waitlisted"]}
  }
}`)

// ValidateRecord checks rec against the contestants table contract.
func ValidateRecord(rec *models.ApplicationRecord) (*validation.ValidationResult, error) {
	return contestantSchema.Validate(rec)
}

// BuildRecord projects a validated draft onto the contestants row. The age
// is computed from dateOfBirth and file URLs are taken only when they match
// a confirmed upload; the stored age and any other *_url value are ignored.
func BuildRecord(d models.FormDraft, code string, userID *string, now time.Time) *models.ApplicationRecord {
	rec := &models.ApplicationRecord{
		ApplicationNumber:         code,
		UserID:                    userID,
		FirstName:                 d.Trimmed("firstName"),
		LastName:                  d.Trimmed("lastName"),
		Email:                     d.Trimmed("email"),
		Phone:                     d.Trimmed("phone"),
		DateOfBirth:               d.Trimmed("dateOfBirth"),
		Age:                       ageOn(d, now),
		Province:                  d.Trimmed("province"),
		City:                      d.Trimmed("city"),
		Address:                   d.Trimmed("address"),
		DisabilityType:            d.Trimmed("disabilityType"),
		DisabilityDescription:     d.Trimmed("disabilityDescription"),
		Height:                    parseFloat(d.Trimmed("height")),
		Weight:                    parseFloat(d.Trimmed("weight")),
		EmergencyContactName:      d.Trimmed("emergencyContactName"),
		EmergencyContactPhone:     d.Trimmed("emergencyContactPhone"),
		EducationLevel:            d.Trimmed("educationLevel"),
		Occupation:                d.Trimmed("occupation"),
		Achievements:              d.Trimmed("achievements"),
		Hobbies:                   d.Trimmed("hobbies"),
		LanguagesSpoken:           splitList(d["languagesSpoken"]),
		TalentDescription:         d.Trimmed("talentDescription"),
		PlatformCause:             d.Trimmed("platformCause"),
		WhyCompete:                d.Trimmed("whyCompete"),
		PreviousPageantExperience: d.Trimmed("previousPageantExperience"),
		PhotoURL:                  optional(d.ConfirmedURL("photo")),
		IDDocumentURL:             optional(d.ConfirmedURL("idDocument")),
		MedicalCertificateURL:     optional(d.ConfirmedURL("medicalCertificate")),
		Status:                    models.StatusPending,
		CreatedAt:                 now.UTC(),
	}
	rec.MedicalClearance = rec.MedicalCertificateURL != nil
	return rec
}

func ageOn(d models.FormDraft, now time.Time) int {
	if dob, err := validator.ParseDate(d.Trimmed("dateOfBirth")); err == nil {
		return validator.Age(dob, now)
	}
	return 0
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// splitList accepts a comma separated string or a multi-value field.
func splitList(v interface{}) []string {
	var parts []string
	switch val := v.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
