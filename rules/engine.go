// Package rules evaluates CEL expressions against documents, so query
// conditions can be written as strings like
//
//	doc.age >= 18 && doc.role == "admin"
//
// and handed to the store as ordinary predicates.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"

	"github.com/kartikbazzad/atomicdb"
)

// Engine compiles and evaluates CEL expressions with the document bound
// as `doc`. Compiled programs are cached per expression.
type Engine struct {
	env      *cel.Env
	prgCache sync.Map // map[string]cel.Program
}

// NewEngine creates an Engine with the standard environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("doc", decls.NewMapType(decls.String, decls.Dyn)),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Engine{env: env}, nil
}

func (e *Engine) program(expression string) (cel.Program, error) {
	if val, ok := e.prgCache.Load(expression); ok {
		return val.(cel.Program), nil
	}
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %s", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program construction error: %s", err)
	}
	e.prgCache.Store(expression, prg)
	return prg, nil
}

// Evaluate runs the expression against one document. An empty expression
// matches nothing; the literals "true" and "false" short-circuit.
func (e *Engine) Evaluate(expression string, doc map[string]interface{}) (bool, error) {
	if expression == "" {
		return false, nil
	}
	if expression == "true" {
		return true, nil
	}
	if expression == "false" {
		return false, nil
	}

	prg, err := e.program(expression)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{"doc": doc})
	if err != nil {
		return false, fmt.Errorf("eval error: %s", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean")
	}
	return result, nil
}

// Predicate compiles the expression once and wraps it as a store
// predicate. Documents whose evaluation errors do not match; such
// predicates always scan.
func (e *Engine) Predicate(expression string) (atomicdb.Pred, error) {
	if expression != "" && expression != "true" && expression != "false" {
		if _, err := e.program(expression); err != nil {
			return atomicdb.Pred{}, err
		}
	}
	return atomicdb.MatchFunc(func(doc atomicdb.Document) bool {
		ok, err := e.Evaluate(expression, doc)
		return err == nil && ok
	}), nil
}
