/*
Package config loads the two configuration artifacts pgsyncd accepts:
a per-sync JSON document (spec.md §6's `{database, index?, pipeline?,
plugins?, nodes, setting?, mapping?, mappings?, routing?}` shape,
decoded with encoding/json since the wire format is fixed to JSON) and
an optional YAML cluster manifest listing several sync documents to run
together under one daemon process, in the spirit of the teacher's
`cmd/warren/apply.go` resource-file idiom repurposed here for "run these
syncs together" instead of "apply this cluster resource."

CLI flags for host/port/user/password/sslmode/sslrootcert override or
supply the connection details the JSON document's `database` field
alone does not carry.
*/
package config
