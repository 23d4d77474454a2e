package dcolock

import "github.com/xraph/dcolock/id"

// ID is the identifier type for all dcolock records.
type ID = id.ID

// Prefix identifies the record kind encoded in a TypeID.
type Prefix = id.Prefix
