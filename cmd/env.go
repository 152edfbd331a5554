package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/authority"
	"github.com/sells-group/prospect-cli/internal/checkpoint"
	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/triangulate"
	"github.com/sells-group/prospect-cli/internal/verify"
	"github.com/sells-group/prospect-cli/internal/webhook"
	anthropicpkg "github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/attom"
	"github.com/sells-group/prospect-cli/pkg/fec"
	"github.com/sells-group/prospect-cli/pkg/notion"
	"github.com/sells-group/prospect-cli/pkg/perplexity"
	"github.com/sells-group/prospect-cli/pkg/propublica"
	sfpkg "github.com/sells-group/prospect-cli/pkg/salesforce"
	"github.com/sells-group/prospect-cli/pkg/sec"
)

// researchEnv bundles the long-lived collaborators a command needs.
type researchEnv struct {
	Store      checkpoint.Store
	Breakers   *resilience.BreakerRegistry
	Researcher *pipeline.Researcher
	Salesforce sfpkg.Client
	Notion     notion.Client
	Webhook    *webhook.Deliverer
}

func (e *researchEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context) (checkpoint.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "prospect.db"
		}
		return checkpoint.NewSQLite(path)
	case "postgres":
		return checkpoint.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "memory":
		return checkpoint.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initResearchEnv builds the full research environment. Sources without
// credentials are left nil; their steps run as skipped.
func initResearchEnv(ctx context.Context) (*researchEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	breakers := resilience.NewBreakerRegistry(map[string]resilience.CircuitBreakerConfig{
		pipeline.ServiceAnthropic:  resilience.ClassConfig(pipeline.ServiceAnthropic, resilience.ClassPrimary),
		pipeline.ServicePerplexity: resilience.ClassConfig(pipeline.ServicePerplexity, resilience.ClassSecondary),
		pipeline.ServiceFEC:        resilience.ClassConfig(pipeline.ServiceFEC, resilience.ClassVerifier),
		pipeline.ServiceSEC:        resilience.ClassConfig(pipeline.ServiceSEC, resilience.ClassVerifier),
		pipeline.ServiceProPublica: resilience.ClassConfig(pipeline.ServiceProPublica, resilience.ClassVerifier),
		pipeline.ServiceAttom:      resilience.ClassConfig(pipeline.ServiceAttom, resilience.ClassSecondary),
	})

	var clients pipeline.Clients
	var fecClient fec.Client
	var secClient sec.Client
	var ppClient propublica.Client

	if cfg.FEC.Key != "" {
		fecClient = fec.NewClient(cfg.FEC.Key, fec.WithBaseURL(cfg.FEC.BaseURL))
		clients.FEC = fecClient
	}
	if cfg.SEC.UserAgent != "" {
		secClient = sec.NewClient(cfg.SEC.UserAgent, sec.WithBaseURL(cfg.SEC.BaseURL))
		clients.SEC = secClient
	}
	// ProPublica needs no key.
	ppClient = propublica.NewClient()
	clients.ProPublica = ppClient

	if cfg.Attom.Key != "" {
		clients.Attom = attom.NewClient(cfg.Attom.Key, attom.WithBaseURL(cfg.Attom.BaseURL))
	}
	if cfg.Perplexity.Key != "" {
		clients.WebSearch = pipeline.NewWebSearcher(perplexity.NewClient(
			cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		))
	}
	if cfg.Anthropic.Key != "" {
		clients.Synthesizer = pipeline.NewSynthesizer(
			anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	}

	auth, err := loadAuthority()
	if err != nil {
		st.Close()
		return nil, err
	}

	executor := pipeline.NewExecutor(st, breakers, pipeline.ExecutorConfig{
		MaxRetries: cfg.Pipeline.MaxRetries,
		BaseDelay:  time.Duration(cfg.Pipeline.BaseDelaySecs) * time.Second,
		MaxDelay:   time.Duration(cfg.Pipeline.MaxDelaySecs) * time.Second,
	})
	engine := triangulate.NewEngine(triangulate.NewScorer(triangulate.DefaultScorerConfig(), auth))
	verifier := verify.NewVerifier(
		verify.Config{Variance: cfg.Verify.Variance, ReportingFloor: cfg.Verify.ReportingFloor},
		verify.DefaultCheckers(fecClient, secClient, ppClient),
	)

	env := &researchEnv{
		Store:      st,
		Breakers:   breakers,
		Researcher: pipeline.NewResearcher(executor, pipeline.DefaultSteps(clients), engine, verifier),
		Webhook:    webhook.NewDeliverer(cfg.Webhook),
	}

	if cfg.Salesforce.ClientID != "" {
		sfClient, err := initSalesforce()
		if err != nil {
			zap.L().Warn("salesforce init failed, CRM write-back disabled", zap.Error(err))
		} else {
			env.Salesforce = sfClient
		}
	}
	if cfg.Notion.Token != "" {
		env.Notion = notion.NewClient(cfg.Notion.Token)
	}

	return env, nil
}

func loadAuthority() (*authority.Registry, error) {
	if cfg.Authority.OverridesFile == "" {
		return authority.NewRegistry(), nil
	}
	reg, err := authority.NewRegistryFromFile(cfg.Authority.OverridesFile)
	if err != nil {
		return nil, eris.Wrap(err, "load authority overrides")
	}
	return reg, nil
}

func initSalesforce() (sfpkg.Client, error) {
	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}
