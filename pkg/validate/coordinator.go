package validate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/proselab/lintd/pkg/diag"
	"github.com/proselab/lintd/pkg/engine"
	"github.com/proselab/lintd/pkg/fixes"
	"github.com/proselab/lintd/pkg/ignore"
	"github.com/proselab/lintd/pkg/lintconfig"
)

// Settings are the reconfigurable knobs the editor controls.
type Settings struct {
	// Engine names the lint engine to resolve. Empty keeps the current one.
	Engine string

	// ConfigPath is an explicit lint-config path tried after the workspace
	// search.
	ConfigPath string

	// IgnoreFile is the path to the ignore file, if any.
	IgnoreFile string

	// TargetPath is a glob limiting linting to matching workspace paths.
	TargetPath string
}

// docState is the per-document correlation state. The repository is
// destroyed and recreated on reconfiguration, never mutated across one.
// runMu serializes validation runs for the document: Clear and the Register
// loop of one run must never interleave with another run's, or the
// repository would mix records from two generations.
type docState struct {
	runMu      sync.Mutex
	doc        Document
	repo       *fixes.Repository
	engine     engine.Engine
	configPath string
}

// Options configures a Coordinator.
type Options struct {
	Workspace string
	Registry  *engine.Registry
	Notifier  Notifier
	Settings  Settings
	// Source tags outgoing diagnostics. Defaults to "lintd".
	Source string
	// Home overrides the home-directory config search root, for tests.
	Home string
}

// Coordinator orchestrates lint runs for open documents. All process-wide
// mutable state (the engine resolver, the ignore cache, the document
// repositories) lives on the instance, so independent coordinators can
// coexist.
type Coordinator struct {
	mu       sync.Mutex
	docs     map[string]*docState
	settings Settings

	resolver *engine.Resolver
	configs  *lintconfig.Resolver
	filter   *ignore.Filter
	mapper   diag.Mapper
	notifier Notifier
	progress *ProgressTracker
}

// NewCoordinator creates a coordinator and applies the initial settings.
func NewCoordinator(opts Options) (*Coordinator, error) {
	source := opts.Source
	if source == "" {
		source = "lintd"
	}
	c := &Coordinator{
		docs:     make(map[string]*docState),
		settings: opts.Settings,
		notifier: opts.Notifier,
		mapper:   diag.Mapper{Source: source},
		filter:   ignore.New(opts.Workspace),
	}
	c.resolver = engine.NewResolver(opts.Registry, opts.Settings.Engine, opts.Notifier.NoEngine)
	c.configs = &lintconfig.Resolver{
		Workspace: opts.Workspace,
		Explicit:  opts.Settings.ConfigPath,
		Home:      opts.Home,
		OnMissing: opts.Notifier.NoConfig,
	}
	c.progress = NewProgressTracker(opts.Notifier.ProgressStart, opts.Notifier.ProgressStop)
	if err := c.filter.Configure(opts.Settings.TargetPath, opts.Settings.IgnoreFile); err != nil {
		return nil, err
	}
	return c, nil
}

// Open starts tracking a document and creates its fix repository.
func (c *Coordinator) Open(doc Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[doc.URI] = &docState{
		doc:  doc,
		repo: fixes.NewRepository(doc.URI),
	}
}

// Update replaces the tracked text and version for an already-open document.
func (c *Coordinator) Update(doc Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.docs[doc.URI]; ok {
		state.doc = doc
	}
}

// Close stops tracking a document, destroying its repository and clearing
// its published diagnostics.
func (c *Coordinator) Close(uri string) {
	c.mu.Lock()
	_, tracked := c.docs[uri]
	delete(c.docs, uri)
	c.mu.Unlock()
	if tracked {
		c.notifier.PublishDiagnostics(uri, nil)
	}
}

// Document returns the tracked document for uri.
func (c *Coordinator) Document(uri string) (Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.docs[uri]
	if !ok {
		return Document{}, false
	}
	return state.doc, true
}

// Repository returns the fix repository for uri.
func (c *Coordinator) Repository(uri string) (*fixes.Repository, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.docs[uri]
	if !ok {
		return nil, false
	}
	return state.repo, true
}

// OpenDocuments returns the tracked documents, ordered by URI.
func (c *Coordinator) OpenDocuments() []Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs := make([]Document, 0, len(c.docs))
	for _, state := range c.docs {
		docs = append(docs, state.doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

// ValidateSingle runs one document through the full pipeline. Diagnostics
// and an OK status publish on success; failures publish an ERROR status
// carrying the cause. Progress signals wrap the run regardless of outcome.
func (c *Coordinator) ValidateSingle(ctx context.Context, doc Document) error {
	c.progress.Start()
	defer c.progress.Stop()

	c.Update(doc)
	if err := c.validate(ctx, doc.URI); err != nil {
		c.notifier.Status(Status{
			Kind:    StatusError,
			Message: fmt.Sprintf("validation of %s failed", doc.URI),
			Cause:   err.Error(),
		})
		return err
	}
	c.notifier.Status(Status{Kind: StatusOK})
	return nil
}

// ValidateMany validates a batch concurrently. Per-document failures do not
// abort the batch: documents that succeed publish their diagnostics as soon
// as they complete, and all failures aggregate into one batch-level status
// after every document has settled. Progress signals wrap the whole batch.
func (c *Coordinator) ValidateMany(ctx context.Context, docs []Document) error {
	c.progress.Start()
	defer c.progress.Stop()

	var (
		mu   sync.Mutex
		errs []error
	)
	group, ctx := errgroup.WithContext(ctx)
	for _, doc := range docs {
		doc := doc
		group.Go(func() error {
			c.Update(doc)
			if err := c.validate(ctx, doc.URI); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", doc.URI, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	if len(errs) == 0 {
		c.notifier.Status(Status{Kind: StatusOK})
		return nil
	}
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}
	c.notifier.Status(Status{
		Kind:    StatusError,
		Message: fmt.Sprintf("%d of %d documents failed validation", len(errs), len(docs)),
		Cause:   strings.Join(messages, "; "),
	})
	return errors.Join(errs...)
}

// Reconfigure applies new settings: the engine is re-resolved, the ignore
// cache reloads, and every tracked document has its diagnostics cleared and
// its repository destroyed and recreated before the batch revalidation.
// This is the sole recovery path after a settings or ignore-file change.
func (c *Coordinator) Reconfigure(ctx context.Context, settings Settings) error {
	c.mu.Lock()
	c.settings = settings
	c.configs.Explicit = settings.ConfigPath
	for uri, state := range c.docs {
		c.notifier.PublishDiagnostics(uri, nil)
		c.docs[uri] = &docState{
			doc:  state.doc,
			repo: fixes.NewRepository(uri),
		}
	}
	c.mu.Unlock()

	c.resolver.Reset(settings.Engine)
	if err := c.filter.Configure(settings.TargetPath, settings.IgnoreFile); err != nil {
		return err
	}
	return c.ValidateMany(ctx, c.OpenDocuments())
}

// validate runs the per-document pipeline. The deliberate skip cases
// (engine unresolved, non-file document, ineligible path, no configuration,
// unsupported extension) resolve successfully with no effect; anything else
// propagates as an error carrying the original cause.
func (c *Coordinator) validate(ctx context.Context, uri string) error {
	c.mu.Lock()
	state, tracked := c.docs[uri]
	c.mu.Unlock()
	if !tracked {
		return nil
	}

	// One run per document at a time. A concurrent run for the same
	// document (watcher-triggered batch vs. an editor-triggered single)
	// waits here, so clear-then-register stays one uninterrupted unit.
	state.runMu.Lock()
	defer state.runMu.Unlock()

	c.mu.Lock()
	doc := state.doc
	c.mu.Unlock()

	factory, err := c.resolver.Get()
	if err != nil {
		if errors.Is(err, engine.ErrUnavailable) {
			return nil
		}
		return err
	}
	if doc.Path == "" {
		return nil
	}
	if !c.filter.IsTarget(doc.Path) {
		return nil
	}

	configPath := c.configs.Find()
	if configPath == "" {
		return nil
	}

	// Rebind the engine only when the configuration path changed, so
	// repeated validations reuse the same instance.
	eng := state.engine
	if eng == nil || state.configPath != configPath {
		eng, err = factory(configPath)
		if err != nil {
			return fmt.Errorf("bind engine to %s: %w", configPath, err)
		}
		state.engine = eng
		state.configPath = configPath
	}

	ext := filepath.Ext(doc.Path)
	if !engine.Supports(eng, ext) {
		return nil
	}

	// Lint the in-memory text, not the on-disk file, so unsaved edits are
	// covered.
	state.repo.Clear()
	findings, err := eng.ExecuteOnText(ctx, doc.Text, ext)
	if err != nil {
		return fmt.Errorf("lint %s: %w", doc.Path, err)
	}

	diagnostics := make([]diag.Diagnostic, 0, len(findings))
	for _, finding := range findings {
		d, f := c.mapper.ToDiagnostic(finding)
		diagnostics = append(diagnostics, d)
		state.repo.Register(doc.Version, d, f)
	}
	c.notifier.PublishDiagnostics(doc.URI, diagnostics)
	return nil
}
