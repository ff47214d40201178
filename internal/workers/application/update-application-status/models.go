// internal/workers/application/update-application-status/models.go
package updateapplicationstatus

type Input struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"newStatus"`
	Reason        string `json:"reason,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationNumber string `json:"applicationNumber"`
	PreviousStatus    string `json:"previousStatus"`
	Status            string `json:"status"`
	UpdatedAt         string `json:"updatedAt"` // ISO 8601
}
