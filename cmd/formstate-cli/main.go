package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-formstate/pkg/engine"
	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/loader"
	pkgopenapi "github.com/goliatone/go-formstate/pkg/openapi"
	"github.com/goliatone/go-formstate/pkg/renderers/summary"
	"github.com/goliatone/go-formstate/pkg/renderers/tui"
	"github.com/goliatone/go-formstate/pkg/response"
)

func main() {
	definition := flag.String("definition", "", "form definition path or URL (YAML or JSON)")
	openapiDoc := flag.String("openapi", "", "OpenAPI document to import the definition from")
	operation := flag.String("operation", "", "operation ID when importing from OpenAPI")
	prefill := flag.String("response", "", "response document to prefill the session with")
	output := flag.String("output", "", "submitted response output file (stdout if empty)")
	summaryOut := flag.String("summary", "", "write an HTML summary to this file")
	watch := flag.Bool("watch", false, "watch the definition and re-render the summary on change")
	allowHTTP := flag.Bool("allow-http", false, "allow loading definitions over HTTP(S)")
	flag.Parse()

	ctx := context.Background()

	if *definition == "" && *openapiDoc == "" {
		log.Fatal("either -definition or -openapi is required")
	}
	if *watch && *summaryOut == "" {
		log.Fatal("-watch requires -summary")
	}

	var opts []loader.Option
	if *allowHTTP {
		opts = append(opts, loader.WithHTTPFallback(15*time.Second))
	}
	docs := loader.New(opts...)

	if *watch {
		if err := watchSummary(ctx, docs, *definition, *openapiDoc, *operation, *prefill, *summaryOut); err != nil {
			log.Fatalf("watch: %v", err)
		}
		return
	}

	def, err := loadDefinition(ctx, docs, *definition, *openapiDoc, *operation)
	if err != nil {
		log.Fatalf("load definition: %v", err)
	}

	session, err := openSession(ctx, docs, def, *prefill)
	if err != nil {
		log.Fatalf("open session: %v", err)
	}

	filler := tui.New()
	submitted, err := filler.Fill(ctx, session)
	if err != nil {
		if errors.Is(err, tui.ErrAborted) {
			session.Cancel()
			log.Fatal("aborted")
		}
		log.Fatalf("fill: %v", err)
	}

	if *summaryOut != "" {
		if err := writeSummary(session.Snapshot(), *summaryOut); err != nil {
			log.Fatalf("write summary: %v", err)
		}
		fmt.Printf("Summary written to %s\n", *summaryOut)
	}

	if err := writeResponse(submitted, *output); err != nil {
		log.Fatalf("write response: %v", err)
	}
}

func loadDefinition(ctx context.Context, docs *loader.Loader, definition, openapiDoc, operation string) (*item.Tree, error) {
	if openapiDoc != "" {
		if operation == "" {
			return nil, fmt.Errorf("-operation is required with -openapi")
		}
		doc, err := docs.Load(ctx, parseSource(openapiDoc))
		if err != nil {
			return nil, err
		}
		return pkgopenapi.New().Import(ctx, doc.Raw(), operation)
	}
	return docs.LoadDefinition(ctx, parseSource(definition))
}

func openSession(ctx context.Context, docs *loader.Loader, def *item.Tree, prefill string) (*engine.Session, error) {
	eng, err := engine.New(def)
	if err != nil {
		return nil, err
	}
	var sessionOpts []engine.SessionOption
	if prefill != "" {
		resp, err := docs.LoadResponse(ctx, parseSource(prefill))
		if err != nil {
			return nil, fmt.Errorf("load response: %w", err)
		}
		sessionOpts = append(sessionOpts, engine.WithResponse(resp))
	}
	return eng.OpenSession(sessionOpts...)
}

// watchSummary re-renders the HTML summary whenever the definition (or the
// prefill response) changes on disk. Intended for iterating on a form
// definition next to a browser.
func watchSummary(ctx context.Context, docs *loader.Loader, definition, openapiDoc, operation, prefill, out string) error {
	render := func() error {
		def, err := loadDefinition(ctx, docs, definition, openapiDoc, operation)
		if err != nil {
			return err
		}
		session, err := openSession(ctx, docs, def, prefill)
		if err != nil {
			return err
		}
		return writeSummary(session.Snapshot(), out)
	}

	if err := render(); err != nil {
		log.Printf("render: %v", err)
	} else {
		log.Printf("summary written to %s", out)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	for _, path := range []string{definition, openapiDoc, prefill} {
		if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
			continue
		}
		// watch the directory; editors replace files on save
		dir := filepath.Dir(path)
		if !watched[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			watched[dir] = true
		}
	}

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			// debounce editor save bursts
			if time.Since(last) < 100*time.Millisecond {
				continue
			}
			last = time.Now()
			if err := render(); err != nil {
				log.Printf("render: %v", err)
				continue
			}
			log.Printf("summary written to %s", out)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		}
	}
}

func writeSummary(snap *engine.Snapshot, path string) error {
	renderer, err := summary.New()
	if err != nil {
		return err
	}
	html, err := renderer.Render(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(html), 0o644)
}

func writeResponse(tree *response.Tree, path string) error {
	payload, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println(string(payload))
		return nil
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return err
	}
	fmt.Printf("Response written to %s\n", path)
	return nil
}

func parseSource(raw string) loader.Source {
	path := strings.TrimSpace(raw)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return loader.SourceFromURL(path)
	}
	return loader.SourceFromFile(path)
}
