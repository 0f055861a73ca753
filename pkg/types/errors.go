package types

import "errors"

// Sentinel errors used with errors.Is/As to tell the orchestrator which
// of the error kinds in the error-handling design it is looking at:
// configuration and environment errors are fatal at startup, parse
// errors are fatal for the current batch, and operational errors on the
// producer connection are fatal to the process.
var (
	ErrUnknownNode       = errors.New("pgsyncd: table/schema is not a tree node")
	ErrMissingPrimaryKey = errors.New("pgsyncd: payload missing a primary key column")
	ErrSchemaValidation  = errors.New("pgsyncd: tree schema validation failed")
	ErrBoundsMismatch    = errors.New("pgsyncd: logical slot advance bounds differ from the preceding peek")
	ErrUnknownTgOp       = errors.New("pgsyncd: unrecognized tg_op")
	ErrCheckpointNil     = errors.New("pgsyncd: cannot set a nil checkpoint value")
	ErrNotLeader         = errors.New("pgsyncd: this replica is not the elected leader")
	ErrAlreadyRunning    = errors.New("pgsyncd: a sync instance with this name is already running in this process")
	ErrOperational       = errors.New("pgsyncd: operational error on the source connection")
	ErrParse             = errors.New("pgsyncd: failed to parse a change row or notify payload")
)
