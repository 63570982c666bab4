// Package telemetry reports which languages and kernels opened notebooks use.
//
// Observers receive the parsed stored document. They are notified on a
// best-effort basis: a failing observer never affects the decode that
// triggered it.
package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/nbserde/internal/language"
)

// Observer is notified with every parsed notebook document.
type Observer interface {
	ObserveNotebook(ctx context.Context, doc map[string]any) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, doc map[string]any) error

// ObserveNotebook calls f.
func (f ObserverFunc) ObserveNotebook(ctx context.Context, doc map[string]any) error {
	return f(ctx, doc)
}

// Usage is the language information extracted from a notebook document.
type Usage struct {
	Language string
	Kernel   string
}

// Extract reads the kernel language and kernel name from doc's metadata.
// Language is the editor language id; it is empty when the document names none.
func Extract(doc map[string]any) Usage {
	md, _ := doc["metadata"].(map[string]any)
	u := Usage{}
	if lang := language.FromMetadata(md); lang != "" {
		u.Language = language.Translate(lang)
	}
	if spec, ok := md["kernelspec"].(map[string]any); ok {
		u.Kernel, _ = spec["name"].(string)
	}
	return u
}

// NewLogObserver returns an Observer that logs language usage at Info level.
func NewLogObserver(logger *slog.Logger) Observer {
	return ObserverFunc(func(ctx context.Context, doc map[string]any) error {
		u := Extract(doc)
		logger.InfoContext(ctx, "notebook language",
			slog.String("language", u.Language),
			slog.String("kernel", u.Kernel))
		return nil
	})
}

// Recorder persists language usage counters.
type Recorder interface {
	RecordLanguage(ctx context.Context, language, kernel string) error
}

// NewRecorderObserver returns an Observer that stores usage in rec.
// Documents that name no language are not recorded.
func NewRecorderObserver(rec Recorder) Observer {
	return ObserverFunc(func(ctx context.Context, doc map[string]any) error {
		u := Extract(doc)
		if u.Language == "" {
			return nil
		}
		return rec.RecordLanguage(ctx, u.Language, u.Kernel)
	})
}

// Multi notifies every observer in order and joins their errors.
func Multi(observers ...Observer) Observer {
	return ObserverFunc(func(ctx context.Context, doc map[string]any) error {
		var errs []error
		for _, o := range observers {
			if o == nil {
				continue
			}
			if err := o.ObserveNotebook(ctx, doc); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
