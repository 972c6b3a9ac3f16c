// Package validate checks an image config and its options before any
// filesystem work starts.
package validate

import (
	"sort"

	"github.com/menta2k/appropriate-images/pkg/types"
)

// Item is one selected entry of the work-set
type Item struct {
	ID    string
	Entry types.ImageEntry
}

// WorkSet is the validated, id-ordered selection of entries to process
type WorkSet []Item

// IDs returns the ids of the work-set in order
func (w WorkSet) IDs() []string {
	ids := make([]string, len(w))
	for i, item := range w {
		ids[i] = item.ID
	}
	return ids
}

// Validate checks cfg and opts and resolves the work-set. Every violation of a
// stage is reported together as types.UsageErrors. Per-entry checks only run
// once the global checks pass. Crop values are not checked here.
func Validate(cfg types.ImageConfig, opts types.GenerateOptions) (WorkSet, error) {
	if cfg == nil {
		return nil, &types.UsageError{Option: "config", Message: "config is required"}
	}

	var errs types.UsageErrors
	if opts.InputDirectory == "" {
		errs = append(errs, &types.UsageError{Option: "inputDirectory", Message: "options.inputDirectory is required"})
	}
	if opts.OutputDirectory == "" {
		errs = append(errs, &types.UsageError{Option: "outputDirectory", Message: "options.outputDirectory is required"})
	}
	if opts.MaxConcurrency < 0 {
		errs = append(errs, &types.UsageError{Option: "maxConcurrency", Message: "options.maxConcurrency must be positive"})
	}
	for _, id := range opts.IDs {
		if _, ok := cfg[id]; !ok {
			errs = append(errs, types.Usagef(id, "%q is not a valid image id", id))
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	work := selectEntries(cfg, opts.IDs)
	for _, item := range work {
		errs = append(errs, checkEntry(item.ID, item.Entry)...)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return work, nil
}

func selectEntries(cfg types.ImageConfig, ids []string) WorkSet {
	if ids == nil {
		ids = make([]string, 0, len(cfg))
		for id := range cfg {
			ids = append(ids, id)
		}
	}

	seen := make(map[string]struct{}, len(ids))
	work := make(WorkSet, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		work = append(work, Item{ID: id, Entry: cfg[id]})
	}
	sort.Slice(work, func(i, j int) bool { return work[i].ID < work[j].ID })
	return work
}

func checkEntry(id string, entry types.ImageEntry) types.UsageErrors {
	var errs types.UsageErrors
	if entry.Basename == "" {
		errs = append(errs, types.Usagef(id, "basename missing for %q", id))
	}
	if entry.Sizes == nil {
		errs = append(errs, types.Usagef(id, "sizes missing for %q", id))
	}
	for i, size := range entry.Sizes {
		if size.Width <= 0 {
			errs = append(errs, types.Usagef(id, "width missing for %q size %d", id, i))
		}
		if size.Height < 0 {
			errs = append(errs, types.Usagef(id, "height must be positive for %q size %d", id, i))
		}
	}
	return errs
}
