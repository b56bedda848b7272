package sitemap

import (
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Protocol limits for a single sitemap file.
const (
	DefaultMaxEntries = 50000
	DefaultMaxBytes   = 49 << 20
)

// Limits bounds one generated document.
type Limits struct {
	MaxEntries int
	MaxBytes   int
}

// DefaultLimits returns the protocol limits.
func DefaultLimits() Limits {
	return Limits{MaxEntries: DefaultMaxEntries, MaxBytes: DefaultMaxBytes}
}

func (l Limits) withDefaults() Limits {
	if l.MaxEntries <= 0 {
		l.MaxEntries = DefaultMaxEntries
	}
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBytes
	}
	return l
}

// Options configures a Builder.
type Options struct {
	BaseURL string
	Limits  Limits
	// Now is the generation time; lastmod never exceeds its date.
	Now time.Time
	// Exclude holds doublestar patterns matched against unescaped paths.
	Exclude []string
}

// Admission is what happened to one candidate.
type Admission int

// Admission outcomes.
const (
	Admitted Admission = iota
	Duplicate
	Excluded
	OverBytes
	OverCount
	Invalid
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case Duplicate:
		return "duplicate"
	case Excluded:
		return "excluded"
	case OverBytes:
		return "over_bytes"
	case OverCount:
		return "over_count"
	default:
		return "invalid"
	}
}

// Stats counts candidates by admission outcome.
type Stats map[Admission]int

// Result is a finished, budgeted sitemap.
type Result struct {
	Entries []Entry
	// Bytes is the exact size of the encoded document.
	Bytes int
	Stats Stats
}

// Builder admits candidates in the order they are added, enforcing deduplication and budgets.
// Not safe for concurrent use.
type Builder struct {
	opts  Options
	seen  map[string]struct{}
	out   []Entry
	bytes int
	stats Stats
}

// NewBuilder creates a builder. Zero limits take the protocol defaults.
func NewBuilder(opts Options) *Builder {
	opts.Limits = opts.Limits.withDefaults()
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	return &Builder{
		opts:  opts,
		seen:  make(map[string]struct{}),
		bytes: envelopeSize(),
		stats: make(Stats),
	}
}

// Add proposes one candidate. Dropped candidates never abort generation.
func (b *Builder) Add(c Candidate) Admission {
	a := b.admit(c)
	b.stats[a]++
	return a
}

func (b *Builder) admit(c Candidate) Admission {
	if len(b.out) >= b.opts.Limits.MaxEntries {
		return OverCount
	}
	if c.Path == "" {
		return Invalid
	}
	if b.excluded(c.Path) {
		return Excluded
	}

	loc := JoinURL(b.opts.BaseURL, c.Path)
	if _, dup := b.seen[loc]; dup {
		return Duplicate
	}

	freq := c.ChangeFreq
	if !freq.IsValid() {
		freq = ""
	}
	e := Entry{
		Loc:        loc,
		LastMod:    ResolveLastMod(c.Dates, b.opts.Now),
		Priority:   clampPriority(c.Priority),
		ChangeFreq: freq,
	}
	line, err := renderEntry(e)
	if err != nil {
		return Invalid
	}
	if b.bytes+len(line) > b.opts.Limits.MaxBytes {
		return OverBytes
	}

	b.seen[loc] = struct{}{}
	b.out = append(b.out, e)
	b.bytes += len(line)
	return Admitted
}

func (b *Builder) excluded(p string) bool {
	for _, pattern := range b.opts.Exclude {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

// Len returns the number of admitted entries.
func (b *Builder) Len() int { return len(b.out) }

// Result returns the admitted entries. The builder may keep accepting candidates afterwards.
func (b *Builder) Result() Result {
	entries := make([]Entry, len(b.out))
	copy(entries, b.out)
	stats := make(Stats, len(b.stats))
	for k, v := range b.stats {
		stats[k] = v
	}
	return Result{Entries: entries, Bytes: b.bytes, Stats: stats}
}

// Build admits candidates in order and returns the bounded result.
func Build(candidates []Candidate, opts Options) Result {
	b := NewBuilder(opts)
	for _, c := range candidates {
		b.Add(c)
	}
	return b.Result()
}
