package detector

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EpochToken derives the dedup key for one contiguous stay of an entity in a
// triggering state. It is a function of the entity, the state, and the
// moment the entity entered it, never of job-run wall-clock time, so any
// number of repeated or overlapping runs over the same window derive the
// same token, and a later re-entry into the state derives a fresh one.
func EpochToken(entityID uuid.UUID, status string, statusChangedAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(entityID.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(status))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(statusChangedAt.UTC().UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
