package domain

import "time"

type Repository struct {
	ID         string
	Name       string
	URL        string
	LastScanAt *time.Time
}

type CloudAccount struct {
	ID         string
	AccountID  string
	Name       string
	Provider   string
	LastSyncAt *time.Time
}

func (a CloudAccount) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.AccountID
}
