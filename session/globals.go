package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/melport/melport/mel"
)

// Globals reads and writes MEL global variables. Reads go through a
// generated wrapper procedure so scalar and array globals round-trip with
// their declared result categories; writes re-declare the global before
// assigning, the way MEL requires inside procedure scope.
//
// A name-to-type cache avoids repeated whatIs probes. Names are accepted
// with or without the leading $ and canonicalized before use.
type Globals struct {
	s *Session

	mu    sync.Mutex
	types map[string]mel.Type
}

func newGlobals(s *Session) *Globals {
	return &Globals{
		s:     s,
		types: make(map[string]mel.Type),
	}
}

// normalizeName canonicalizes a global variable name to its $-prefixed form.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "$" {
		return "", ErrEmptyName
	}
	if !strings.HasPrefix(name, "$") {
		name = "$" + name
	}
	return name, nil
}

// Declare validates the type against the declarable MEL variable types,
// normalizes the name, and primes the type cache. It returns the
// canonicalized name. No host round trip is made; the declaration itself
// happens lazily on the next Get or Set.
func (g *Globals) Declare(typ mel.Type, name string) (string, error) {
	if !mel.IsValidType(typ) {
		return "", fmt.Errorf("type must be a valid MEL variable type (%s), got %q", joinTypes(), typ)
	}
	name, err := normalizeName(name)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.types[name] = typ
	g.mu.Unlock()
	return name, nil
}

func joinTypes() string {
	parts := make([]string, len(mel.Types))
	for i, t := range mel.Types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

// TypeOf probes the host for a global variable's declared type with whatIs.
func (g *Globals) TypeOf(ctx context.Context, name string) (mel.Type, error) {
	name, err := normalizeName(name)
	if err != nil {
		return "", err
	}
	info, err := g.s.WhatIs(ctx, name)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(info)
	if len(fields) == 2 && fields[1] == "variable" {
		return mel.Type(fields[0]), nil
	}
	return "", fmt.Errorf("%w: %s is %q", ErrUnknownGlobalType, name, info)
}

// resolveType finds the MEL type for a variable: the explicit argument
// wins, then the cache, then a whatIs probe. Whatever resolves primes the
// cache.
func (g *Globals) resolveType(ctx context.Context, name string, explicit mel.Type) (mel.Type, error) {
	typ := explicit
	if typ == "" {
		g.mu.Lock()
		typ = g.types[name]
		g.mu.Unlock()
	}
	if typ == "" {
		probed, err := g.TypeOf(ctx, name)
		if err != nil {
			return "", err
		}
		typ = probed
	}
	if _, err := g.Declare(typ, name); err != nil {
		return "", err
	}
	return typ, nil
}

// Get reads a MEL global variable, resolving its type from the cache or a
// whatIs probe.
func (g *Globals) Get(ctx context.Context, name string) (*mel.Result, error) {
	return g.GetTyped(ctx, name, "")
}

// GetTyped reads a MEL global variable with an explicitly declared type.
func (g *Globals) GetTyped(ctx context.Context, name string, typ mel.Type) (*mel.Result, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	typ, err = g.resolveType(ctx, name, typ)
	if err != nil {
		return nil, err
	}

	elem := typ.Elem()
	procName := "melport_get_global_" + string(elem)
	decl := name
	if typ.IsArray() {
		procName += "Array"
		decl += "[]"
	}

	cmd := fmt.Sprintf("global proc %s %s() { global %s %s; return %s; } %s();",
		typ, procName, elem, decl, name, procName)

	kind, err := mel.KindOf(typ)
	if err != nil {
		return nil, err
	}
	return g.s.runTyped(ctx, cmd, kind)
}

// Set writes a MEL global variable, resolving its type from the cache or a
// whatIs probe.
func (g *Globals) Set(ctx context.Context, name string, value any) error {
	return g.SetTyped(ctx, name, "", value)
}

// SetTyped writes a MEL global variable with an explicitly declared type.
func (g *Globals) SetTyped(ctx context.Context, name string, typ mel.Type, value any) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	typ, err = g.resolveType(ctx, name, typ)
	if err != nil {
		return err
	}

	lit, err := mel.Format(value)
	if err != nil {
		return fmt.Errorf("value for %s: %w", name, err)
	}

	elem := typ.Elem()
	decl := name
	if typ.IsArray() {
		decl += "[]"
	}

	cmd := fmt.Sprintf("global %s %s; %s=%s;", elem, decl, name, lit)
	_, err = g.s.Eval(ctx, cmd)
	return err
}

// SetIndex assigns one element of an array global.
func (g *Globals) SetIndex(ctx context.Context, name string, index int, value any) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("index must be non-negative, got %d", index)
	}
	typ, err := g.resolveType(ctx, name, "")
	if err != nil {
		return err
	}
	if !typ.IsArray() {
		return fmt.Errorf("%s is a %s, not an array", name, typ)
	}

	lit, err := mel.Format(value)
	if err != nil {
		return fmt.Errorf("value for %s[%d]: %w", name, index, err)
	}

	cmd := fmt.Sprintf("global %s %s[]; %s[%d]=%s;", typ.Elem(), name, name, index, lit)
	_, err = g.s.Eval(ctx, cmd)
	return err
}

// Names lists all global variable names known to the host.
func (g *Globals) Names(ctx context.Context) ([]string, error) {
	res, err := g.s.runTyped(ctx, "env", mel.KindStringArray)
	if err != nil {
		return nil, err
	}
	return res.Strings()
}

// CachedType returns the cached type for a name, if any.
func (g *Globals) CachedType(name string) (mel.Type, bool) {
	name, err := normalizeName(name)
	if err != nil {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	typ, ok := g.types[name]
	return typ, ok
}
