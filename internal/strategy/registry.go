package strategy

import (
	"fmt"
	"sort"

	"golang-quant/internal/dto"
	"golang-quant/pkg/apperror"
)

// Constructor builds a strategy from a fully merged parameter set.
type Constructor func(params dto.Params) (Strategy, error)

type Definition struct {
	ID          string
	Description string
	Defaults    dto.Params
	New         Constructor
}

// Registry maps strategy ids to their constructor and default parameters.
// It is filled once at startup and read concurrently afterwards.
type Registry struct {
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// NewDefaultRegistry returns a registry holding the built-in strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range builtins() {
		r.MustRegister(def)
	}
	return r
}

func (r *Registry) Register(def Definition) error {
	if def.ID == "" || def.New == nil {
		return fmt.Errorf("strategy definition needs an id and a constructor")
	}
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("strategy %q already registered", def.ID)
	}
	if def.Defaults == nil {
		def.Defaults = dto.Params{}
	}
	r.defs[def.ID] = def
	return nil
}

func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(id string) (Definition, error) {
	def, ok := r.defs[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: strategy %q", apperror.ErrNotFound, id)
	}
	return def, nil
}

func (r *Registry) Defaults(id string) (dto.Params, error) {
	def, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return def.Defaults.Clone(), nil
}

// Build merges override over the defaults of id and constructs the strategy.
// Parameter names the strategy does not declare are rejected.
func (r *Registry) Build(id string, override dto.Params) (Strategy, error) {
	def, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if err := r.CheckParamNames(id, override); err != nil {
		return nil, err
	}
	return def.New(def.Defaults.Merge(override))
}

func (r *Registry) CheckParamNames(id string, params dto.Params) error {
	def, err := r.Get(id)
	if err != nil {
		return err
	}
	for name := range params {
		if _, ok := def.Defaults[name]; !ok {
			return apperror.Strategy("strategy %q has no parameter %q", id, name)
		}
	}
	return nil
}

func (r *Registry) Has(id string) bool {
	_, ok := r.defs[id]
	return ok
}

func (r *Registry) List() []dto.StrategyInfo {
	out := make([]dto.StrategyInfo, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, dto.StrategyInfo{
			ID:          def.ID,
			Description: def.Description,
			Defaults:    def.Defaults.Clone(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
