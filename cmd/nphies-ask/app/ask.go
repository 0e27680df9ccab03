// Package app provides the NPHIES command line client.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/nphies-rag/cmd/nphies-ask/app/options"
	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/nphies/biz"
	"github.com/kart-io/nphies-rag/pkg/infra/app"
	"github.com/kart-io/nphies-rag/pkg/utils/json"
)

const (
	// Name is the name of the application.
	Name = "nphies-ask"

	commandDesc = `Ask the NPHIES assistant a single question.

Builds the knowledge index from the local Q&A file, retrieves the closest
chunks and prints the generated answer.`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewAskOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Ask the NPHIES assistant a question"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.AskOptions) app.RunFunc {
	return func() error {
		cfg := opts.Config()
		if err := cfg.LogOptions.Init(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if opts.NphiesOptions.QueryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.NphiesOptions.QueryTimeout)
			defer cancel()
		}

		pipeline, err := cfg.NewPipeline(ctx)
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
		defer pipeline.Close(context.Background())

		return ask(ctx, pipeline.Service, opts, os.Stdout)
	}
}

// ask answers opts.Question with svc and writes the result to w.
func ask(ctx context.Context, svc biz.Service, opts *options.AskOptions, w io.Writer) error {
	lang, err := model.ParseLanguage(opts.Language)
	if err != nil {
		return err
	}

	answer, err := svc.Answer(ctx, opts.Question, lang)
	if err != nil {
		return err
	}

	if opts.Output == options.OutputJSON {
		return json.NewEncoder(w).Encode(answer)
	}

	if _, err := fmt.Fprintln(w, answer.Text); err != nil {
		return err
	}
	if !opts.ShowSources {
		return nil
	}
	for i, src := range answer.Sources {
		if _, err := fmt.Fprintf(w, "\n[%d] offset=%d distance=%.4f\n%s\n", i+1, src.SourceOffset, src.Distance, src.Preview); err != nil {
			return err
		}
	}
	return nil
}
