// Package filter evaluates CEL boolean expressions against entities.
//
// Expressions see one variable, item, holding the entity's JSON form:
//
//	item.status == 'Completed' && item.priority in ['High', 'Medium']
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var celNewEnv = cel.NewEnv

// MaxCacheSize is the maximum number of compiled programs kept by a Compiler.
const MaxCacheSize = 256

// ErrNotBoolean is returned when an expression does not yield a boolean.
var ErrNotBoolean = errors.New("filter expression must return a boolean")

// Program is a compiled filter.
type Program struct {
	expr string
	prg  cel.Program
}

// Expr returns the source expression.
func (p *Program) Expr() string { return p.expr }

// Match evaluates the program against one item.
func (p *Program) Match(item map[string]interface{}) (bool, error) {
	out, _, err := p.prg.Eval(map[string]interface{}{"item": item})
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", p.expr, err)
	}
	match, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w, got %T", ErrNotBoolean, out.Value())
	}
	return match, nil
}

// Compiler compiles and caches filter programs. Safe for concurrent use.
type Compiler struct {
	env        *cel.Env
	mu         sync.RWMutex
	cache      map[string]*Program
	cacheOrder []string
}

func NewCompiler() (*Compiler, error) {
	env, err := celNewEnv(
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Compiler{
		env:   env,
		cache: make(map[string]*Program),
	}, nil
}

// Compile returns the program for expr, compiling it on first use.
func (c *Compiler) Compile(expr string) (*Program, error) {
	c.mu.RLock()
	p, ok := c.cache[expr]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.cache[expr]; ok {
		return p, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w, got %s", ErrNotBoolean, out)
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}

	if len(c.cache) >= MaxCacheSize {
		oldest := c.cacheOrder[0]
		delete(c.cache, oldest)
		c.cacheOrder = c.cacheOrder[1:]
	}
	p = &Program{expr: expr, prg: prg}
	c.cache[expr] = p
	c.cacheOrder = append(c.cacheOrder, expr)
	return p, nil
}

// ToMap converts a value into the map form programs evaluate against.
func ToMap(v interface{}) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
