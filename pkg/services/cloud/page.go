package cloud

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/de-tools/secboard/pkg/adapters"
	"github.com/de-tools/secboard/pkg/models/api"
	"github.com/de-tools/secboard/pkg/models/domain"
	"github.com/de-tools/secboard/pkg/services/findings"
	"github.com/de-tools/secboard/pkg/services/mutation"
	"github.com/de-tools/secboard/pkg/services/view"
	"github.com/de-tools/secboard/pkg/store/query"
	"golang.org/x/sync/errgroup"
)

const (
	KeyAccounts query.Key = "cloud-accounts"
	KeyFindings query.Key = "cloud-findings"

	MutationAddAccount = "add-cloud-account"

	EmptyAccountsMessage = "No cloud accounts configured yet."
	EmptyFindingsMessage = "No findings yet. Sync a cloud account to get started."
	SyncingLabel         = "Syncing..."
)

var (
	AddAccountInvalidates = []query.Key{KeyAccounts}
	SyncInvalidates       = []query.Key{KeyFindings, KeyAccounts}
)

// Providers lists the cloud providers an account can be added for.
var Providers = []string{"aws", "azure", "gcp"}

type Backend interface {
	ListCloudAccounts(ctx context.Context) ([]api.CloudAccount, error)
	CreateCloudAccount(ctx context.Context, req api.CreateCloudAccountRequest) (*api.CloudAccount, error)
	TriggerSync(ctx context.Context, accountID string) (*api.Ack, error)
	ListCloudFindings(ctx context.Context) ([]api.Finding, error)
	UpdateCloudFinding(ctx context.Context, id string, status api.FindingStatus) (*api.Finding, error)
}

type AccountForm struct {
	AccountID string
	Name      string
	Provider  string
}

type FormView struct {
	Open      bool
	Pending   bool
	Err       string
	AccountID string
	Name      string
	Provider  string
}

type AccountView struct {
	domain.CloudAccount
	ProviderLabel string
	Syncing       bool
	SyncErr       string
}

// SyncLabel is the text of the account's sync control.
func (a AccountView) SyncLabel() string {
	if a.Syncing {
		return SyncingLabel
	}
	return "Sync"
}

type FindingView struct {
	findings.FindingView
	Flow string
}

type View struct {
	Accounts view.Collection[AccountView]
	Findings view.Collection[FindingView]
	Form     FormView
}

type Page struct {
	cache   *query.Cache
	exec    *mutation.Executor
	backend Backend
	editor  *findings.Editor

	mu       sync.Mutex
	formOpen bool
	formErr  string
	form     AccountForm
	syncErrs map[string]string
	unsubs   []func()
}

func New(cache *query.Cache, exec *mutation.Executor, backend Backend) (*Page, error) {
	err := cache.Register(KeyAccounts, func(ctx context.Context) (any, error) {
		accounts, err := backend.ListCloudAccounts(ctx)
		if err != nil {
			return nil, err
		}
		return adapters.MapCloudAccountsApiToDomain(accounts), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register accounts query: %w", err)
	}

	err = cache.Register(KeyFindings, func(ctx context.Context) (any, error) {
		items, err := backend.ListCloudFindings(ctx)
		if err != nil {
			return nil, err
		}
		return adapters.MapFindingsApiToDomain(items, domain.SourceCloudMonitor), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register findings query: %w", err)
	}

	editor := findings.NewEditor(domain.SourceCloudMonitor, KeyFindings, exec,
		func(ctx context.Context, id string, status domain.Status) error {
			_, err := backend.UpdateCloudFinding(ctx, id, adapters.MapStatusDomainToApi(status))
			return err
		})

	return &Page{
		cache:    cache,
		exec:     exec,
		backend:  backend,
		editor:   editor,
		syncErrs: make(map[string]string),
	}, nil
}

func (p *Page) Name() string {
	return "cloud"
}

func (p *Page) Title() string {
	return "Cloud Monitor"
}

func (p *Page) Keys() []query.Key {
	return []query.Key{KeyAccounts, KeyFindings}
}

func (p *Page) Mount(_ context.Context, onChange func()) error {
	p.mu.Lock()
	mounted := len(p.unsubs) > 0
	p.mu.Unlock()
	if mounted {
		return fmt.Errorf("page %s is already mounted", p.Name())
	}
	if onChange == nil {
		onChange = func() {}
	}

	unsubs, err := view.Observe(p.cache, p.Keys(), onChange)
	if err != nil {
		return err
	}
	unsubs = append(unsubs, p.exec.Subscribe(func(string, mutation.Status) { onChange() }))

	p.mu.Lock()
	p.unsubs = unsubs
	p.mu.Unlock()
	return nil
}

func (p *Page) Unmount() {
	p.mu.Lock()
	unsubs := p.unsubs
	p.unsubs = nil
	p.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

func (p *Page) Load(ctx context.Context) error {
	var g errgroup.Group
	for _, key := range p.Keys() {
		key := key
		g.Go(func() error {
			_, err := p.cache.Fetch(ctx, key)
			return err
		})
	}
	return g.Wait()
}

func (p *Page) Snapshot() View {
	accountsState := p.cache.Get(KeyAccounts)
	findingsState := p.cache.Get(KeyFindings)

	p.mu.Lock()
	defer p.mu.Unlock()

	accounts := view.Map(
		view.FromState[domain.CloudAccount](accountsState, EmptyAccountsMessage),
		func(items []domain.CloudAccount) []AccountView {
			res := make([]AccountView, 0, len(items))
			for _, a := range items {
				res = append(res, AccountView{
					CloudAccount:  a,
					ProviderLabel: strings.ToUpper(a.Provider),
					Syncing:       p.exec.State(syncMutationName(a.ID)).Pending(),
					SyncErr:       p.syncErrs[a.ID],
				})
			}
			return res
		},
	)

	items := view.Map(
		view.FromState[domain.Finding](findingsState, EmptyFindingsMessage),
		func(items []domain.Finding) []FindingView {
			views := p.editor.Apply(items, findingsState.UpdatedAt)
			res := make([]FindingView, 0, len(views))
			for _, v := range views {
				res = append(res, FindingView{FindingView: v, Flow: Flow(v.Finding)})
			}
			return res
		},
	)

	return View{
		Accounts: accounts,
		Findings: items,
		Form: FormView{
			Open:      p.formOpen,
			Pending:   p.exec.State(MutationAddAccount).Pending(),
			Err:       p.formErr,
			AccountID: p.form.AccountID,
			Name:      p.form.Name,
			Provider:  p.form.Provider,
		},
	}
}

// Flow renders the network flow of a finding, or "" unless both ends are known.
func Flow(f domain.Finding) string {
	if !f.HasFlow() {
		return ""
	}
	if f.Protocol == "" {
		return fmt.Sprintf("%s → %s", f.SourceIP, f.DestinationIP)
	}
	return fmt.Sprintf("%s → %s (%s)", f.SourceIP, f.DestinationIP, f.Protocol)
}

func (p *Page) OpenAddForm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.formOpen = true
}

func (p *Page) CancelAddForm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.formOpen = false
	p.formErr = ""
	p.form = AccountForm{}
}

func (p *Page) SubmitAddAccount(ctx context.Context, form AccountForm) error {
	form.Provider = strings.ToLower(strings.TrimSpace(form.Provider))

	p.mu.Lock()
	p.formOpen = true
	p.form = form
	var missing []string
	if strings.TrimSpace(form.AccountID) == "" {
		missing = append(missing, "account id")
	}
	if form.Provider == "" {
		missing = append(missing, "cloud provider")
	}
	if len(missing) > 0 {
		err := fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
		p.formErr = err.Error()
		p.mu.Unlock()
		return err
	}
	p.formErr = ""
	p.mu.Unlock()

	res := p.exec.Execute(ctx, mutation.Mutation{
		Name: MutationAddAccount,
		Do: func(ctx context.Context) (any, error) {
			return p.backend.CreateCloudAccount(ctx, api.CreateCloudAccountRequest{
				AccountID:     strings.TrimSpace(form.AccountID),
				AccountName:   strings.TrimSpace(form.Name),
				CloudProvider: form.Provider,
			})
		},
		Invalidates: AddAccountInvalidates,
		OnSuccess: func(any) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.formOpen = false
			p.form = AccountForm{}
		},
		OnError: func(err error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.formErr = err.Error()
		},
	})
	return res.Err
}

// TriggerSync syncs one account. Only that account shows as syncing while the
// request runs.
func (p *Page) TriggerSync(ctx context.Context, accountID string) error {
	p.mu.Lock()
	delete(p.syncErrs, accountID)
	p.mu.Unlock()

	res := p.exec.Execute(ctx, mutation.Mutation{
		Name: syncMutationName(accountID),
		Long: true,
		Do: func(ctx context.Context) (any, error) {
			return p.backend.TriggerSync(ctx, accountID)
		},
		Invalidates: SyncInvalidates,
		OnError: func(err error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.syncErrs[accountID] = err.Error()
		},
	})
	return res.Err
}

func (p *Page) ChangeFindingStatus(ctx context.Context, findingID, status string) error {
	return p.editor.Change(ctx, findingID, status)
}

func (p *Page) DismissFindingError(findingID string) {
	p.editor.DismissError(findingID)
}

func syncMutationName(accountID string) string {
	return "sync:" + accountID
}
