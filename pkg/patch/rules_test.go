package patch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRules(t *testing.T) {
	ctx := context.Background()

	rules, err := CompileRules(
		RuleSpec{Op: Add, Path: "/first_name", When: `value == "Jimmy"`, Set: `"Jimmie"`},
		RuleSpec{Op: Replace, Path: "/last_name", When: `doc.first_name == "JRR"`, Reject: "surname is frozen"},
		RuleSpec{Op: Remove, Skip: true},
		RuleSpec{Path: "/phone_numbers/*", Set: `upper(value)`},
	)
	require.NoError(t, err)
	require.Len(t, rules, 4)

	t.Run("Set", func(t *testing.T) {
		store, engine := seedLibrary(t, WithRules(rules...))
		_, err := engine.ApplyByID(ctx, "author", "tolkien", Patch{
			AddOp("/first_name", "Jimmy"),
			AddOp("/phone_numbers/-", "abc"),
		})
		require.NoError(t, err)

		stored := load(t, store, "author", "tolkien")
		assert.Equal(t, "Jimmie", stored.Fields["first_name"])
		assert.Equal(t, "ABC", stored.Fields["phone_numbers"].([]any)[2])
	})

	t.Run("When Is False", func(t *testing.T) {
		store, engine := seedLibrary(t, WithRules(rules...))
		_, err := engine.ApplyByID(ctx, "author", "tolkien", Patch{AddOp("/first_name", "John")})
		require.NoError(t, err)
		assert.Equal(t, "John", load(t, store, "author", "tolkien").Fields["first_name"])
	})

	t.Run("Reject", func(t *testing.T) {
		_, engine := seedLibrary(t, WithRules(rules...))
		_, err := engine.ApplyByID(ctx, "author", "tolkien", Patch{ReplaceOp("/last_name", "Lewis")})
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("Skip", func(t *testing.T) {
		_, engine := seedLibrary(t, WithRules(rules...))
		res, err := engine.ApplyByID(ctx, "author", "tolkien", Patch{RemoveOp("/last_name")})
		require.NoError(t, err)
		assert.Equal(t, []int{0}, res.Skipped)
	})

	t.Run("Invalid Specs", func(t *testing.T) {
		_, err := CompileRules(RuleSpec{When: "value ==="})
		assert.Error(t, err)

		_, err = CompileRules(RuleSpec{When: `"not a bool"`})
		assert.Error(t, err)

		_, err = CompileRules(RuleSpec{Op: "merge"})
		assert.ErrorIs(t, err, ErrInvalidOperation)

		_, err = CompileRules(RuleSpec{Set: "1", Skip: true})
		assert.Error(t, err)
	})
}
