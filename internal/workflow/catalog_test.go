package workflow

import (
	"testing"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepNumbers(steps []*models.StepConfiguration) []int {
	var numbers []int
	for _, s := range steps {
		numbers = append(numbers, s.StepNumber)
	}
	return numbers
}

func TestCatalogService_CreateStep(t *testing.T) {
	env := newEngineEnv(t)

	t.Run("rejects a taken step number", func(t *testing.T) {
		err := env.catalog.CreateStep(&models.StepConfiguration{
			StepNumber:           5,
			StepName:             "Duplikat",
			RequiredEmployeeRole: "VER",
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects contradictory branch flags", func(t *testing.T) {
		err := env.catalog.CreateStep(&models.StepConfiguration{
			StepNumber:           8,
			StepName:             "Cabang Ganda",
			RequiredEmployeeRole: "VER",
			IsLsOnly:             true,
			IsNonLsOnly:          true,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects a parallel flag without a group", func(t *testing.T) {
		err := env.catalog.CreateStep(&models.StepConfiguration{
			StepNumber:           8,
			StepName:             "Paralel Tanpa Grup",
			RequiredEmployeeRole: "VER",
			IsParallel:           true,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("appends a valid step", func(t *testing.T) {
		step := &models.StepConfiguration{
			StepNumber:           8,
			StepName:             "Arsip Berkas",
			RequiredEmployeeRole: "PABPD",
		}
		require.NoError(t, env.catalog.CreateStep(step))
		assert.NotZero(t, step.ID)

		steps, err := env.catalog.ListSteps()
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, stepNumbers(steps))
	})
}

func TestCatalogService_UpdateStep(t *testing.T) {
	env := newEngineEnv(t)

	steps, err := env.catalog.ListSteps()
	require.NoError(t, err)

	t.Run("rejects moving onto an occupied number", func(t *testing.T) {
		step := *steps[4]
		step.StepNumber = 6
		assert.ErrorIs(t, env.catalog.UpdateStep(&step), ErrValidation)
	})

	t.Run("rejects an unknown step", func(t *testing.T) {
		assert.ErrorIs(t, env.catalog.UpdateStep(&models.StepConfiguration{
			ID:                   999,
			StepNumber:           9,
			StepName:             "Hilang",
			RequiredEmployeeRole: "VER",
		}), ErrNotFound)
	})

	t.Run("updates in place", func(t *testing.T) {
		step := *steps[4]
		step.StepName = "Verifikasi Ulang"
		require.NoError(t, env.catalog.UpdateStep(&step))

		got, err := env.catalog.GetStep(step.ID)
		require.NoError(t, err)
		assert.Equal(t, "Verifikasi Ulang", got.StepName)
	})
}

func TestCatalogService_DeleteStep(t *testing.T) {
	env := newEngineEnv(t)

	steps, err := env.catalog.ListSteps()
	require.NoError(t, err)

	// Remove step 4; the survivors close the gap.
	require.NoError(t, env.catalog.DeleteStep(steps[3].ID))

	remaining, err := env.catalog.ListSteps()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, stepNumbers(remaining))

	// The former step 5 now sits at 4 with its identity intact.
	assert.Equal(t, steps[4].ID, remaining[3].ID)

	assert.ErrorIs(t, env.catalog.DeleteStep(steps[3].ID), ErrNotFound)
}

func TestCatalogService_Reorder(t *testing.T) {
	env := newEngineEnv(t)

	steps, err := env.catalog.ListSteps()
	require.NoError(t, err)

	t.Run("rejects a sparse assignment", func(t *testing.T) {
		orders := make([]StepOrder, len(steps))
		for i, s := range steps {
			orders[i] = StepOrder{ID: s.ID, StepNumber: s.StepNumber}
		}
		orders[0].StepNumber = 9
		assert.ErrorIs(t, env.catalog.Reorder(orders), ErrValidation)
	})

	t.Run("rejects duplicate numbers", func(t *testing.T) {
		orders := []StepOrder{
			{ID: steps[0].ID, StepNumber: 1},
			{ID: steps[1].ID, StepNumber: 1},
		}
		assert.ErrorIs(t, env.catalog.Reorder(orders), ErrValidation)
	})

	t.Run("swaps numbers atomically", func(t *testing.T) {
		orders := make([]StepOrder, len(steps))
		for i, s := range steps {
			orders[i] = StepOrder{ID: s.ID, StepNumber: s.StepNumber}
		}
		// Swap steps 6 and 7. A naive one-by-one update would trip the
		// uniqueness constraint here.
		orders[5].StepNumber = 7
		orders[6].StepNumber = 6
		require.NoError(t, env.catalog.Reorder(orders))

		reordered, err := env.catalog.ListSteps()
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, stepNumbers(reordered))
		assert.Equal(t, steps[6].ID, reordered[5].ID)
		assert.Equal(t, steps[5].ID, reordered[6].ID)
	})
}
