package web

import "github.com/dukex/cadence/pkg/models"

// ProcessExecutionsRequest narrows a batch to one workflow.
type ProcessExecutionsRequest struct {
	WorkflowID string `json:"workflow_id" validate:"omitempty,max=255"`
}

// DispatchCampaignsRequest narrows a dispatch run to one campaign.
type DispatchCampaignsRequest struct {
	CampaignID string `json:"campaign_id" validate:"omitempty,max=255"`
}

type EnrollRequest struct {
	ContactIDs []string `json:"contact_ids" validate:"required,min=1,dive,required,max=255"`
}

type EnrollResponse struct {
	Enrolled int `json:"enrolled"`
}

type ResumeResponse struct {
	Resumed int `json:"resumed"`
}

type ActivateResponse struct {
	Workflow *models.Workflow `json:"workflow"`
	Resumed  int              `json:"resumed"`
}
