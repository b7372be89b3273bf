package adapters

import (
	"github.com/de-tools/secboard/pkg/models/api"
	"github.com/de-tools/secboard/pkg/models/domain"
)

func MapRepositoryApiToDomain(r api.Repository) domain.Repository {
	return domain.Repository{
		ID:         r.ID.String(),
		Name:       r.RepoName,
		URL:        r.RepoURL,
		LastScanAt: r.LastScanAt,
	}
}

func MapRepositoriesApiToDomain(repos []api.Repository) []domain.Repository {
	res := make([]domain.Repository, 0, len(repos))
	for _, r := range repos {
		res = append(res, MapRepositoryApiToDomain(r))
	}
	return res
}

func MapCloudAccountApiToDomain(a api.CloudAccount) domain.CloudAccount {
	return domain.CloudAccount{
		ID:         a.ID.String(),
		AccountID:  a.AccountID,
		Name:       a.AccountName,
		Provider:   a.CloudProvider,
		LastSyncAt: a.LastSyncAt,
	}
}

func MapCloudAccountsApiToDomain(accounts []api.CloudAccount) []domain.CloudAccount {
	res := make([]domain.CloudAccount, 0, len(accounts))
	for _, a := range accounts {
		res = append(res, MapCloudAccountApiToDomain(a))
	}
	return res
}
