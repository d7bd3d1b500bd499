package detector

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEpochToken(t *testing.T) {
	entityID := uuid.New()
	changedAt := time.Date(2026, 3, 14, 9, 30, 0, 123456789, time.UTC)

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t,
			EpochToken(entityID, "overdue", changedAt),
			EpochToken(entityID, "overdue", changedAt))
	})

	t.Run("fixed length hex", func(t *testing.T) {
		token := EpochToken(entityID, "overdue", changedAt)
		assert.Len(t, token, 32)
		assert.Regexp(t, "^[0-9a-f]+$", token)
	})

	t.Run("changes with any input", func(t *testing.T) {
		base := EpochToken(entityID, "overdue", changedAt)
		assert.NotEqual(t, base, EpochToken(uuid.New(), "overdue", changedAt))
		assert.NotEqual(t, base, EpochToken(entityID, "defaulted", changedAt))
		assert.NotEqual(t, base, EpochToken(entityID, "overdue", changedAt.Add(time.Nanosecond)))
	})

	t.Run("timezone does not matter, instant does", func(t *testing.T) {
		elsewhere := changedAt.In(time.FixedZone("UTC+5", 5*3600))
		assert.Equal(t,
			EpochToken(entityID, "overdue", changedAt),
			EpochToken(entityID, "overdue", elsewhere))
	})
}
