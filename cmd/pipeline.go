package cmd

import (
	"context"
	"log/slog"

	"github.com/nikogura/cv-generator/pkg/config"
	"github.com/nikogura/cv-generator/pkg/generator"
	"github.com/nikogura/cv-generator/pkg/llm"
	"github.com/nikogura/cv-generator/pkg/renderer"
	"github.com/nikogura/cv-generator/pkg/session"
	"github.com/nikogura/cv-generator/pkg/template"
	"github.com/pkg/errors"
)

// newTextGenerator returns the client for the configured provider.
func newTextGenerator(ctx context.Context, cfg config.Config) (gen llm.Generator, err error) {
	model := cfg.GetGenerationModel()
	apiKey := cfg.APIKey()

	switch cfg.Provider {
	case config.ProviderAnthropic:
		gen, err = llm.NewClaudeClient(apiKey, model)
	default:
		gen, err = llm.NewGeminiClient(ctx, apiKey, model)
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to create %s client", cfg.Provider)
		return gen, err
	}

	return gen, err
}

// buildPipeline wires the generation service over sessions rooted at sessionRoot.
func buildPipeline(ctx context.Context, cfg config.Config, sessionRoot string, logger *slog.Logger) (svc *generator.Service, sessions *session.Manager, err error) {
	var templates *template.Provider
	templates, err = template.NewProvider(cfg.TemplatePath)
	if err != nil {
		return svc, sessions, err
	}

	sessions, err = session.NewManager(sessionRoot)
	if err != nil {
		return svc, sessions, err
	}

	var gen llm.Generator
	gen, err = newTextGenerator(ctx, cfg)
	if err != nil {
		return svc, sessions, err
	}

	compiler := renderer.NewCompiler(renderer.Options{
		Binary:   cfg.Compiler.Binary,
		Timeout:  cfg.CompileTimeout(),
		Disabled: cfg.Compiler.Disabled,
		Logger:   logger,
	})

	svc = generator.New(generator.Options{
		Sessions:       sessions,
		Templates:      templates,
		Rewriter:       llm.NewRewriter(gen),
		Compiler:       compiler,
		RewriteTimeout: cfg.LLMTimeout(),
		Logger:         logger,
	})

	logger.Info("pipeline ready",
		"provider", svc.Provider(),
		"template", templates.Path(),
		"sessions", sessions.Root(),
		"compiler_available", svc.CompilerAvailable(),
	)

	return svc, sessions, err
}
