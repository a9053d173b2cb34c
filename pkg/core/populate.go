package core

import (
	"context"
	"fmt"
)

// Populate resolves the reference fields of doc named by paths using loader.
// It is the shared implementation behind Store.Populate.
func Populate(ctx context.Context, loader Loader, doc *Document, paths ...string) error {
	for _, p := range paths {
		tokens := splitPointer(p)
		if len(tokens) == 0 {
			return fmt.Errorf("populate %s: empty field path", doc.Key())
		}

		var cur any = doc.Fields
		for _, tok := range tokens {
			m, ok := cur.(map[string]any)
			if !ok {
				return fmt.Errorf("populate %s%s: not an embedded document at %q", doc.Key(), p, tok)
			}
			cur, ok = m[tok]
			if !ok {
				cur = nil
				break
			}
		}

		switch v := cur.(type) {
		case nil:
			// missing or null fields have nothing to resolve
		case *Reference:
			if err := resolve(ctx, loader, v); err != nil {
				return err
			}
		case []any:
			for _, el := range v {
				if ref, ok := el.(*Reference); ok {
					if err := resolve(ctx, loader, ref); err != nil {
						return err
					}
				}
			}
		default:
			return fmt.Errorf("populate %s%s: field is not a reference (%T)", doc.Key(), p, cur)
		}
	}
	return nil
}

func resolve(ctx context.Context, loader Loader, ref *Reference) error {
	if ref.Resolved() {
		return nil
	}
	target, err := loader.Load(ctx, ref.Type, ref.ID)
	if err != nil {
		return fmt.Errorf("failed to populate %s: %w", ref, err)
	}
	ref.Target = target
	return nil
}
