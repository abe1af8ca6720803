package engine

import (
	"sync"

	"sqlerd/internal/generator"
	"sqlerd/internal/parser"
	"sqlerd/internal/schema"
)

// Session owns the current database of one editing surface. Commands are
// serialized; a load replaces the database atomically and bumps the
// generation so commands prepared against the previous model can be refused.
type Session struct {
	mu         sync.Mutex
	db         *schema.Database
	generation uint64
	parseOpts  []parser.Option
	applyOpts  []Option
}

// NewSession starts with an empty database holding only the default schema.
func NewSession(name string, applyOpts []Option, parseOpts ...parser.Option) *Session {
	return &Session{
		db:        schema.NewDatabase(name),
		parseOpts: parseOpts,
		applyOpts: applyOpts,
	}
}

// Load parses ddl and replaces the current database with the result. The
// parse result is returned so callers can report what was skipped.
func (s *Session) Load(ddl, name string) (*parser.Result, uint64) {
	res := parser.Parse(ddl, name, s.parseOpts...)
	gen := s.Replace(res.Database)
	return res, gen
}

// Replace installs db as the current database and returns the new generation.
func (s *Session) Replace(db *schema.Database) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db = db.Clone()
	s.generation++
	return s.generation
}

// Apply runs cmd against whatever database is current.
func (s *Session) Apply(cmd Command) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(cmd)
}

// ApplyAt runs cmd only if the database has not been replaced since
// generation was observed.
func (s *Session) ApplyAt(generation uint64, cmd Command) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		msg := ""
		if cmd != nil {
			msg = cmd.String()
		}
		return s.generation, reject(ErrStaleCommand, "", "", "", msg)
	}
	return s.applyLocked(cmd)
}

func (s *Session) applyLocked(cmd Command) (uint64, error) {
	next, err := Apply(s.db, cmd, s.applyOpts...)
	if err != nil {
		return s.generation, err
	}
	s.db = next
	return s.generation, nil
}

// Database returns a copy of the current database and its generation.
func (s *Session) Database() (*schema.Database, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Clone(), s.generation
}

// Render generates the DDL script for the current database.
func (s *Session) Render(opts generator.Options) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(generator.GenerateBytes(s.db, opts))
}
