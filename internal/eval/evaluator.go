// Package eval evaluates PKL profile documents into IR types.
package eval

import (
	"context"
	"fmt"

	"github.com/apple/pkl-go/pkl"

	"github.com/droidtune-io/droidtune/internal/ir"
)

// LoadProfile evaluates a profile document. External properties (-D
// flags) are visible to the document through PKL's read("prop:...")
// mechanism, letting one profile serve several fleets.
func LoadProfile(ctx context.Context, path string, properties map[string]string) (*ir.Profile, error) {
	opts := []func(*pkl.EvaluatorOptions){pkl.PreconfiguredOptions}
	if len(properties) > 0 {
		opts = append(opts, func(o *pkl.EvaluatorOptions) {
			if o.Properties == nil {
				o.Properties = make(map[string]string)
			}
			for k, v := range properties {
				o.Properties[k] = v
			}
		})
	}

	evaluator, err := pkl.NewEvaluator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var profile ir.Profile
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(path), &profile); err != nil {
		return nil, fmt.Errorf("failed to evaluate profile %s: %w", path, err)
	}

	if err := validate(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// validate rejects profiles the engine cannot act on.
func validate(p *ir.Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}
	if p.User < 0 {
		return fmt.Errorf("profile %s: user must be >= 0, got %d", p.Name, p.User)
	}
	if len(p.Mutations) == 0 {
		return fmt.Errorf("profile %s declares no mutations", p.Name)
	}

	// Duplicate keys are legal: a profile may set a key and later
	// overwrite it, and the ledger still keeps the first original.
	for i, m := range p.Mutations {
		if m.Scope == "" || m.Name == "" {
			return fmt.Errorf("profile %s: mutation %d is missing scope or name", p.Name, i)
		}
	}
	return nil
}
