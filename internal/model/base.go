package model

import (
	"github.com/google/uuid"
)

// assignID gives a record a fresh UUID unless one was set by the caller.
// Keys are generated in Go so the schema does not depend on gen_random_uuid().
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
