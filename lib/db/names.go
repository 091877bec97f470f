package db

import (
	"regexp"
	"strings"
)

const (
	// MaxNameLength is the byte limit for keyspace and table names
	MaxNameLength = 64

	// SystemKeyspace holds engine internal tables and is always protected
	SystemKeyspace = "system"

	// DefaultKeyspace is the keyspace name used when no other is configured
	DefaultKeyspace = "default"

	// DefaultTable is created in the default keyspace at boot
	DefaultTable = "default"

	// DefaultModel is the model of the default table
	DefaultModel = "keymap(binstr,binstr)"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z_$][a-zA-Z_$0-9]*$`)

// ValidateName checks a keyspace or table name
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > MaxNameLength {
		return NewError(CodeBadName, "name must be 1 to %d bytes long", MaxNameLength)
	}
	if !nameRe.MatchString(name) {
		return NewError(CodeBadName, "invalid container name %q", name)
	}
	return nil
}

// ValidateDefaultKeyspace checks a name configured for the default keyspace. It must
// be a valid name and cannot be the system keyspace.
func ValidateDefaultKeyspace(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if name == SystemKeyspace {
		return NewError(CodeProtectedObject, "%q is reserved for the system keyspace", name)
	}
	return nil
}

// Entity addresses a table, optionally qualified by its keyspace
type Entity struct {
	Keyspace string // empty means the current keyspace of the caller
	Table    string
}

// ParseEntity parses `ks:tbl` or `tbl`. More than one separator or an empty part is
// a BadExpression, the parts themselves must be valid names.
func ParseEntity(s string) (Entity, error) {
	ks, tbl, qualified := strings.Cut(s, ":")
	if !qualified {
		if err := ValidateName(s); err != nil {
			return Entity{}, err
		}
		return Entity{Table: s}, nil
	}
	if ks == "" || tbl == "" || strings.Contains(tbl, ":") {
		return Entity{}, NewError(CodeBadExpression, "expected ks:tbl or tbl, got %q", s)
	}
	if err := ValidateName(ks); err != nil {
		return Entity{}, err
	}
	if err := ValidateName(tbl); err != nil {
		return Entity{}, err
	}
	return Entity{Keyspace: ks, Table: tbl}, nil
}

// Resolve fills in the keyspace from the given default when the entity is unqualified
func (e Entity) Resolve(currentKeyspace string) Entity {
	if e.Keyspace == "" {
		e.Keyspace = currentKeyspace
	}
	return e
}

func (e Entity) String() string {
	if e.Keyspace == "" {
		return e.Table
	}
	return e.Keyspace + ":" + e.Table
}
