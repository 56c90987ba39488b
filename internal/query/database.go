package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cairo-m/compiler/internal/source"
	"github.com/cairo-m/compiler/internal/types"
)

// defaultCacheSize bounds every per-query memo table. A long-lived editor
// session touches far fewer than this many distinct (file, revision)
// pairs before the oldest ones stop being queried at all, so eviction
// only ever reclaims genuinely cold entries.
const defaultCacheSize = 256

// revKey is the cache key shared by every file-scoped tracked function:
// the file's path plus the text revision it was computed against. Bumping
// Revision in SetText naturally mints a new key, so a stale result simply
// stops being reachable rather than needing to be hunted down and
// deleted - the purge in invalidate below is belt-and-braces cleanup so a
// long session doesn't pin superseded revisions in memory.
type revKey struct {
	Path string
	Rev  uint64
}

func (k revKey) String() string { return fmt.Sprintf("%s@%d", k.Path, k.Rev) }

// Database is the incremental query engine of spec.md §4.1. It owns the
// set of tracked source files and every memoization table keyed off their
// revisions; every compiler phase is a method below rather than a free
// function, so that phase is always routed through the cache instead of
// being callable "by accident" uncached.
type Database struct {
	log *slog.Logger

	mu       sync.RWMutex
	files    map[string]*source.File
	interner *types.Interner

	parse     *tracked[revKey, parseResult]
	index     *tracked[revKey, indexResult]
	chk       *tracked[revKey, checkResult]
	validate  *tracked[revKey, validateResult]
	lower     *tracked[revKey, lowerResult]
	codegen   *tracked[revKey, codegenResult]

	resolveType *tracked[astTypeKey, resolveTypeResult]
	defType     *tracked[defKey, defTypeResult]
	exprType    *tracked[exprKey, exprTypeResult]

	tables []interface{ purge() }
}

// New creates an empty Database. A nil logger discards log output, matching
// the teacher's interp.New(w io.Writer)-style "nil means silent" default.
func New(log *slog.Logger) *Database {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	db := &Database{
		log:      log,
		files:    map[string]*source.File{},
		interner: types.NewInterner(),

		parse:    newTracked[revKey, parseResult]("parse", defaultCacheSize),
		index:    newTracked[revKey, indexResult]("semantic_index", defaultCacheSize),
		chk:      newTracked[revKey, checkResult]("check", defaultCacheSize),
		validate: newTracked[revKey, validateResult]("validate", defaultCacheSize),
		lower:    newTracked[revKey, lowerResult]("lower_to_mir", defaultCacheSize),
		codegen:  newTracked[revKey, codegenResult]("generate_casm", defaultCacheSize),

		resolveType: newTracked[astTypeKey, resolveTypeResult]("resolve_ast_type", defaultCacheSize),
		defType:     newTracked[defKey, defTypeResult]("definition_type", defaultCacheSize),
		exprType:    newTracked[exprKey, exprTypeResult]("expression_type", defaultCacheSize),
	}
	db.tables = []interface{ purge() }{
		db.parse, db.index, db.chk, db.validate, db.lower, db.codegen,
		db.resolveType, db.defType, db.exprType,
	}
	return db
}

// SetText registers path's current text, bumping Revision if the file was
// already known with different text (spec.md §4.1 "revision bumps on
// every edit"; a no-op SetText - same text written back - intentionally
// does NOT bump the revision, which is what makes invariant §8.1.8
// idempotence-across-revisions observable: re-running a query after a
// no-op edit must hit the same cache entry, not merely an equal one).
func (db *Database) SetText(path, text string) {
	db.mu.Lock()
	f, ok := db.files[path]
	if !ok {
		db.files[path] = &source.File{Path: path, Text: text}
		db.mu.Unlock()
		db.log.Debug("source set", "file", path, "revision", uint64(0))
		return
	}
	if f.Text == text {
		db.mu.Unlock()
		return
	}
	f.Text = text
	f.Revision++
	rev := f.Revision
	db.mu.Unlock()

	db.log.Debug("source edited", "file", path, "revision", rev)
	db.invalidate(context.Background())
}

// invalidate purges every per-query memo table. A bumped revision already
// makes a file's old entries unreachable by key, so this is redundant for
// correctness; it exists to bound memory on a long-lived Database that
// keeps editing the same file, and runs each table's purge concurrently
// via errgroup since the tables share no state and a purge touches only
// its own table's lock.
func (db *Database) invalidate(ctx context.Context) {
	g, _ := errgroup.WithContext(ctx)
	for _, t := range db.tables {
		t := t
		g.Go(func() error {
			t.purge()
			return nil
		})
	}
	_ = g.Wait()
}

func (db *Database) file(path string) (*source.File, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	f, ok := db.files[path]
	return f, ok
}

func (db *Database) key(path string) revKey {
	f, ok := db.file(path)
	if !ok {
		return revKey{Path: path}
	}
	return revKey{Path: path, Rev: f.Revision}
}
