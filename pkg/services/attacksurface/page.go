package attacksurface

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
	KeyRepos    query.Key = "attack-surface-repos"
	KeyFindings query.Key = "attack-surface-findings"

	MutationAddRepository = "add-repository"

	EmptyReposMessage    = "No repositories added yet."
	EmptyFindingsMessage = "No findings yet. Run a scan to get started."
)

// Invalidation sets of the page's mutations.
var (
	AddRepositoryInvalidates = []query.Key{KeyRepos}
	ScanInvalidates          = []query.Key{KeyFindings}
)

type Backend interface {
	ListRepositories(ctx context.Context) ([]api.Repository, error)
	CreateRepository(ctx context.Context, req api.CreateRepositoryRequest) (*api.Repository, error)
	TriggerScan(ctx context.Context, repoID string, req api.ScanRequest) (*api.Ack, error)
	ListAttackSurfaceFindings(ctx context.Context) ([]api.Finding, error)
	UpdateAttackSurfaceFinding(ctx context.Context, id string, status api.FindingStatus) (*api.Finding, error)
}

// TokenPrompter asks the user for a GitHub token for a single action. ok is
// false when the user dismissed the prompt.
type TokenPrompter interface {
	PromptToken(ctx context.Context, label string) (token string, ok bool, err error)
}

type TokenPrompterFunc func(ctx context.Context, label string) (string, bool, error)

func (f TokenPrompterFunc) PromptToken(ctx context.Context, label string) (string, bool, error) {
	return f(ctx, label)
}

// StaticToken answers every prompt with the same token.
func StaticToken(token string) TokenPrompter {
	return TokenPrompterFunc(func(context.Context, string) (string, bool, error) {
		return token, token != "", nil
	})
}

type RepositoryForm struct {
	Name  string
	URL   string
	Token string
}

func (f RepositoryForm) missing() []string {
	var missing []string
	if strings.TrimSpace(f.Name) == "" {
		missing = append(missing, "repository name")
	}
	if strings.TrimSpace(f.URL) == "" {
		missing = append(missing, "repository url")
	}
	if strings.TrimSpace(f.Token) == "" {
		missing = append(missing, "github token")
	}
	return missing
}

type FormView struct {
	Open    bool
	Pending bool
	Err     string
	Name    string
	URL     string
}

type ScanView struct {
	Pending bool
	Err     string
}

type View struct {
	Repos    view.Collection[domain.Repository]
	Findings view.Collection[findings.FindingView]
	Form     FormView
	Scans    map[string]ScanView
}

func (v View) Scan(repoID string) ScanView {
	return v.Scans[repoID]
}

type Page struct {
	cache   *query.Cache
	exec    *mutation.Executor
	backend Backend
	editor  *findings.Editor

	mu       sync.Mutex
	formOpen bool
	formErr  string
	form     RepositoryForm
	scanErrs map[string]string
	unsubs   []func()
}

func New(cache *query.Cache, exec *mutation.Executor, backend Backend) (*Page, error) {
	err := cache.Register(KeyRepos, func(ctx context.Context) (any, error) {
		repos, err := backend.ListRepositories(ctx)
		if err != nil {
			return nil, err
		}
		return adapters.MapRepositoriesApiToDomain(repos), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register repositories query: %w", err)
	}

	err = cache.Register(KeyFindings, func(ctx context.Context) (any, error) {
		items, err := backend.ListAttackSurfaceFindings(ctx)
		if err != nil {
			return nil, err
		}
		return adapters.MapFindingsApiToDomain(items, domain.SourceAttackSurface), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register findings query: %w", err)
	}

	editor := findings.NewEditor(domain.SourceAttackSurface, KeyFindings, exec,
		func(ctx context.Context, id string, status domain.Status) error {
			_, err := backend.UpdateAttackSurfaceFinding(ctx, id, adapters.MapStatusDomainToApi(status))
			return err
		})

	return &Page{
		cache:    cache,
		exec:     exec,
		backend:  backend,
		editor:   editor,
		scanErrs: make(map[string]string),
	}, nil
}

func (p *Page) Name() string {
	return "attack-surface"
}

func (p *Page) Title() string {
	return "Attack Surface Monitor"
}

func (p *Page) Keys() []query.Key {
	return []query.Key{KeyRepos, KeyFindings}
}

// Mount observes the page's queries until Unmount. onChange is called after
// every change of a query or of one of the page's mutations.
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

// Load fetches both collections concurrently. Each lands in its own cache
// slot whatever happens to the other.
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
	reposState := p.cache.Get(KeyRepos)
	findingsState := p.cache.Get(KeyFindings)

	repos := view.FromState[domain.Repository](reposState, EmptyReposMessage)
	items := view.Map(
		view.FromState[domain.Finding](findingsState, EmptyFindingsMessage),
		func(items []domain.Finding) []findings.FindingView {
			return p.editor.Apply(items, findingsState.UpdatedAt)
		},
	)

	p.mu.Lock()
	defer p.mu.Unlock()

	scans := make(map[string]ScanView)
	if repos.Loaded {
		for _, r := range repos.Items {
			scans[r.ID] = ScanView{
				Pending: p.exec.State(scanMutationName(r.ID)).Pending(),
				Err:     p.scanErrs[r.ID],
			}
		}
	}

	return View{
		Repos:    repos,
		Findings: items,
		Form: FormView{
			Open:    p.formOpen,
			Pending: p.exec.State(MutationAddRepository).Pending(),
			Err:     p.formErr,
			Name:    p.form.Name,
			URL:     p.form.URL,
		},
		Scans: scans,
	}
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
	p.form = RepositoryForm{}
}

// SubmitAddRepository closes the form once the backend created the
// repository. On any failure the form stays open with the error.
func (p *Page) SubmitAddRepository(ctx context.Context, form RepositoryForm) error {
	p.mu.Lock()
	p.formOpen = true
	p.form = RepositoryForm{Name: form.Name, URL: form.URL}
	if missing := form.missing(); len(missing) > 0 {
		err := fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
		p.formErr = err.Error()
		p.mu.Unlock()
		return err
	}
	p.formErr = ""
	p.mu.Unlock()

	res := p.exec.Execute(ctx, mutation.Mutation{
		Name: MutationAddRepository,
		Do: func(ctx context.Context) (any, error) {
			return p.backend.CreateRepository(ctx, api.CreateRepositoryRequest{
				RepoName:    strings.TrimSpace(form.Name),
				RepoURL:     strings.TrimSpace(form.URL),
				GithubToken: form.Token,
			})
		},
		Invalidates: AddRepositoryInvalidates,
		OnSuccess: func(any) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.formOpen = false
			p.form = RepositoryForm{}
		},
		OnError: func(err error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.formErr = err.Error()
		},
	})
	return res.Err
}

// TriggerScan asks prompter for a token and starts a scan of the repository.
// A dismissed prompt sends nothing.
func (p *Page) TriggerScan(ctx context.Context, repoID string, prompter TokenPrompter) error {
	token, ok, err := prompter.PromptToken(ctx, "Enter GitHub token:")
	if err != nil {
		return fmt.Errorf("failed to read github token: %w", err)
	}
	if !ok || token == "" {
		return nil
	}

	p.mu.Lock()
	delete(p.scanErrs, repoID)
	p.mu.Unlock()

	res := p.exec.Execute(ctx, mutation.Mutation{
		Name: scanMutationName(repoID),
		Long: true,
		Do: func(ctx context.Context) (any, error) {
			return p.backend.TriggerScan(ctx, repoID, api.ScanRequest{GithubToken: token})
		},
		Invalidates: ScanInvalidates,
		OnError: func(err error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.scanErrs[repoID] = err.Error()
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

func scanMutationName(repoID string) string {
	return "scan:" + repoID
}
