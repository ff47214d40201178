// internal/workers/application/index-contestant-application/models.go
package indexcontestantapplication

import "time"

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	Index         string `json:"index"`
	Result        string `json:"indexResult"` // "created" or "updated"
	Version       int64  `json:"indexVersion"`
}

// Document is what the search index holds for one application. Identity
// documents and medical certificates stay out of the index.
type Document struct {
	ApplicationID     string    `json:"application_id"`
	ApplicationNumber string    `json:"application_number"`
	FullName          string    `json:"full_name"`
	Email             string    `json:"email"`
	Province          string    `json:"province"`
	City              string    `json:"city"`
	Age               int       `json:"age"`
	DisabilityType    string    `json:"disability_type"`
	EducationLevel    string    `json:"education_level"`
	Occupation        string    `json:"occupation"`
	LanguagesSpoken   []string  `json:"languages_spoken"`
	TalentDescription string    `json:"talent_description"`
	PlatformCause     string    `json:"platform_cause"`
	WhyCompete        string    `json:"why_compete"`
	PhotoURL          string    `json:"photo_url,omitempty"`
	MedicalClearance  bool      `json:"medical_clearance"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type indexResponse struct {
	Index   string `json:"_index"`
	ID      string `json:"_id"`
	Version int64  `json:"_version"`
	Result  string `json:"result"`
}
