package tonal

import (
	"errors"
	"fmt"
)

// ErrInvalidTemplate is returned when a quality table cannot produce a template bank.
var ErrInvalidTemplate = errors.New("invalid chord template")

// ChordTemplate is the reference pitch-class vector of one chord quality at one root.
type ChordTemplate struct {
	Root      int                   `json:"root"`
	Quality   Quality               `json:"quality"`
	Vector    [PitchClasses]float64 `json:"vector"`
	Intervals int                   `json:"intervals"` // number of distinct pitch classes

	order int // position in the bank
}

// Label returns the chord label the template stands for.
func (t ChordTemplate) Label() ChordLabel {
	return ChordLabel{Root: t.Root, Quality: t.Quality}
}

// TemplateOptions adjusts template generation without changing its structure.
type TemplateOptions struct {
	// RootWeight is the value placed on the root bin. Zero means 1.0 (binary templates).
	RootWeight float64 `json:"root_weight"`
}

type templateKey struct {
	root    int
	quality Quality
}

// TemplateBank holds one template per (root, quality), generated root-major and
// then in quality table order. It is read-only after construction and may be
// shared by any number of concurrent matchers.
type TemplateBank struct {
	templates []ChordTemplate
	index     map[templateKey]int
	qualities QualityTable
}

// NewTemplateBank builds templates for every root 0..11 and every quality in table.
func NewTemplateBank(table QualityTable, opts TemplateOptions) (*TemplateBank, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if opts.RootWeight < 0 {
		return nil, fmt.Errorf("%w: root weight %.3f is negative", ErrInvalidTemplate, opts.RootWeight)
	}

	rootWeight := opts.RootWeight
	if rootWeight == 0 {
		rootWeight = 1.0
	}

	qualities := make(QualityTable, len(table))
	for i, def := range table {
		intervals := make([]int, len(def.Intervals))
		copy(intervals, def.Intervals)
		qualities[i] = QualityDef{Quality: def.Quality, Intervals: intervals}
	}

	bank := &TemplateBank{
		templates: make([]ChordTemplate, 0, PitchClasses*len(qualities)),
		index:     make(map[templateKey]int, PitchClasses*len(qualities)),
		qualities: qualities,
	}

	for root := range PitchClasses {
		for _, def := range qualities {
			tmpl := ChordTemplate{Root: root, Quality: def.Quality, order: len(bank.templates)}
			for _, interval := range def.Intervals {
				bin := (interval + root) % PitchClasses
				if tmpl.Vector[bin] == 0 {
					tmpl.Intervals++
				}
				tmpl.Vector[bin] = 1.0
			}
			tmpl.Vector[root] = rootWeight

			bank.index[templateKey{root: root, quality: def.Quality}] = len(bank.templates)
			bank.templates = append(bank.templates, tmpl)
		}
	}

	return bank, nil
}

// Lookup returns the template for (root, quality).
func (b *TemplateBank) Lookup(root int, quality Quality) (ChordTemplate, bool) {
	i, ok := b.index[templateKey{root: root, quality: quality}]
	if !ok {
		return ChordTemplate{}, false
	}
	return b.templates[i], true
}

// Templates returns a copy of all templates in generation order.
func (b *TemplateBank) Templates() []ChordTemplate {
	out := make([]ChordTemplate, len(b.templates))
	copy(out, b.templates)
	return out
}

// Len returns the number of templates.
func (b *TemplateBank) Len() int {
	return len(b.templates)
}

// Qualities returns a copy of the quality table the bank was built from.
func (b *TemplateBank) Qualities() QualityTable {
	out := make(QualityTable, len(b.qualities))
	for i, def := range b.qualities {
		intervals := make([]int, len(def.Intervals))
		copy(intervals, def.Intervals)
		out[i] = QualityDef{Quality: def.Quality, Intervals: intervals}
	}
	return out
}
