package api

import "time"

type CloudAccount struct {
	ID            ID         `json:"id" validate:"required"`
	AccountID     string     `json:"account_id"`
	AccountName   string     `json:"account_name,omitempty"`
	CloudProvider string     `json:"cloud_provider"`
	LastSyncAt    *time.Time `json:"last_sync_at"`
}

type AccountsResponse struct {
	Accounts []CloudAccount `json:"accounts" validate:"dive"`
}

type CreateCloudAccountRequest struct {
	AccountID     string `json:"account_id" validate:"required"`
	AccountName   string `json:"account_name,omitempty"`
	CloudProvider string `json:"cloud_provider" validate:"required,oneof=aws azure gcp"`
}
