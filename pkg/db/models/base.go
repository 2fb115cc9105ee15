package models

import "github.com/google/uuid"

// ensureID assigns a v4 uuid when the caller left the primary key empty.
// Postgres also defaults ids via gen_random_uuid(); assigning client side
// keeps inserts portable to the sqlite test database.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
