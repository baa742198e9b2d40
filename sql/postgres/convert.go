// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package postgres

import (
	"fmt"
	"regexp"
	"strings"

	"oralift.io/oralift/sql/orameta"
)

// A MappedType is the result of translating an Oracle type reference.
// Unmapped results are warnings, never errors: callers fall back to text
// and record the gap.
type MappedType struct {
	T        string
	Unmapped bool
}

// ColumnType translates an Oracle column declaration to its Postgres
// column type.
func ColumnType(c *orameta.Column) MappedType {
	return mapType(c.DataType, c.Length, c.Precision, c.Scale)
}

// AttrType translates an object-type attribute declaration.
func AttrType(a *orameta.TypeAttr) MappedType {
	return mapType(a.DataType, a.Length, a.Precision, a.Scale)
}

// ViewColumnType translates a view column declaration.
func ViewColumnType(c *orameta.ViewColumn) MappedType {
	return mapType(c.DataType, c.Length, c.Precision, c.Scale)
}

// ArgType translates a routine argument or return type. Argument types
// carry no length/precision in ALL_ARGUMENTS worth preserving, so bare
// base types are used.
func ArgType(dataType string) MappedType {
	return mapType(dataType, 0, 0, 0)
}

var tsRe = regexp.MustCompile(`^TIMESTAMP\((\d+)\)`)

func mapType(typ string, length, precision, scale int) MappedType {
	t := strings.ToUpper(strings.TrimSpace(typ))
	switch {
	case t == "NUMBER":
		switch {
		case precision == 0:
			return MappedType{T: "numeric"}
		case scale > 0:
			return MappedType{T: fmt.Sprintf("numeric(%d,%d)", precision, scale)}
		case scale < 0:
			return MappedType{T: fmt.Sprintf("numeric(%d)", precision)}
		case precision <= 4:
			return MappedType{T: "smallint"}
		case precision <= 9:
			return MappedType{T: "integer"}
		case precision <= 18:
			return MappedType{T: "bigint"}
		default:
			return MappedType{T: fmt.Sprintf("numeric(%d)", precision)}
		}
	case t == "INTEGER" || t == "INT" || t == "SMALLINT":
		return MappedType{T: "numeric(38)"}
	case t == "FLOAT" || t == "BINARY_FLOAT" || t == "BINARY_DOUBLE" || t == "REAL" || t == "DOUBLE PRECISION":
		return MappedType{T: "double precision"}
	case t == "VARCHAR2" || t == "VARCHAR" || t == "NVARCHAR2":
		if length > 0 {
			return MappedType{T: fmt.Sprintf("varchar(%d)", length)}
		}
		return MappedType{T: "varchar"}
	case t == "CHAR" || t == "NCHAR" || t == "CHARACTER":
		if length > 0 {
			return MappedType{T: fmt.Sprintf("char(%d)", length)}
		}
		return MappedType{T: "char"}
	case t == "CLOB" || t == "NCLOB" || t == "LONG":
		return MappedType{T: "text"}
	case t == "BLOB" || t == "RAW" || t == "LONG RAW" || t == "BFILE":
		return MappedType{T: "bytea"}
	case t == "DATE":
		return MappedType{T: "timestamp(0)"}
	case strings.HasPrefix(t, "TIMESTAMP"):
		switch {
		case strings.Contains(t, "LOCAL TIME ZONE"), strings.Contains(t, "TIME ZONE"):
			return MappedType{T: "timestamptz"}
		default:
			if m := tsRe.FindStringSubmatch(t); m != nil {
				return MappedType{T: fmt.Sprintf("timestamp(%s)", m[1])}
			}
			return MappedType{T: "timestamp"}
		}
	case strings.HasPrefix(t, "INTERVAL YEAR"):
		return MappedType{T: "interval year to month"}
	case strings.HasPrefix(t, "INTERVAL DAY"):
		return MappedType{T: "interval day to second"}
	case t == "XMLTYPE" || t == "SYS.XMLTYPE":
		return MappedType{T: "xml"}
	case t == "ROWID" || t == "UROWID":
		return MappedType{T: "text"}
	case t == "BOOLEAN":
		return MappedType{T: "boolean"}
	case strings.Contains(typ, "."):
		// Schema-qualified user-defined type: map to the identically
		// named composite type in the lower-cased schema.
		parts := strings.SplitN(typ, ".", 2)
		return MappedType{T: QualIdent(parts[0], parts[1])}
	default:
		return MappedType{T: "text", Unmapped: true}
	}
}

// UDType returns the Postgres type name for a user-defined object type
// declared in the given schema.
func UDType(schema, name string) MappedType {
	return MappedType{T: QualIdent(schema, name)}
}

// reserved is the set of Postgres reserved words that force quoting of a
// normalized identifier.
var reserved = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "asymmetric": true, "both": true,
	"case": true, "cast": true, "check": true, "collate": true, "column": true,
	"constraint": true, "create": true, "current_catalog": true,
	"current_date": true, "current_role": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "default": true,
	"deferrable": true, "desc": true, "distinct": true, "do": true, "else": true,
	"end": true, "except": true, "false": true, "fetch": true, "for": true,
	"foreign": true, "from": true, "grant": true, "group": true, "having": true,
	"in": true, "initially": true, "intersect": true, "into": true,
	"lateral": true, "leading": true, "limit": true, "localtime": true,
	"localtimestamp": true, "not": true, "null": true, "offset": true,
	"on": true, "only": true, "or": true, "order": true, "placing": true,
	"primary": true, "references": true, "returning": true, "select": true,
	"session_user": true, "some": true, "symmetric": true, "table": true,
	"then": true, "to": true, "trailing": true, "true": true, "union": true,
	"unique": true, "user": true, "using": true, "variadic": true, "when": true,
	"where": true, "window": true, "with": true,
}

// Ident normalizes an Oracle identifier for Postgres: it is lower-cased
// unconditionally and quoted only when it is a reserved word or contains
// characters outside [a-z0-9_$] or starts with a digit. Applying Ident
// twice is a fixed point.
func Ident(s string) string {
	s = strings.ToLower(strings.Trim(s, `"`))
	if s == "" {
		return s
	}
	if reserved[s] || !plainIdent(s) {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// Name returns the catalog name an identifier normalizes to: the
// lower-cased form without the quoting Ident may add. Comparisons and
// query binds against pg_catalog use this form.
func Name(s string) string {
	return strings.ToLower(strings.Trim(s, `"`))
}

// QualIdent returns schema.name with both parts normalized.
func QualIdent(schema, name string) string {
	if schema == "" {
		return Ident(name)
	}
	return Ident(schema) + "." + Ident(name)
}

func plainIdent(s string) bool {
	if s[0] >= '0' && s[0] <= '9' {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '$':
		default:
			return false
		}
	}
	return true
}

var (
	numLit  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	strLit  = regexp.MustCompile(`^'([^']|'')*'$`)
	nextval = regexp.MustCompile(`(?i)^(?:"?([A-Za-z0-9_$#]+)"?\.)?"?([A-Za-z0-9_$#]+)"?\.NEXTVAL$`)
)

// MapDefault translates an Oracle column default expression through the
// fixed recognizer table. The second return value reports whether the
// expression was recognized; unrecognized defaults are dropped by the
// caller and surfaced as warnings.
func MapDefault(expr, schema string) (string, bool) {
	d := strings.TrimSpace(expr)
	switch strings.ToUpper(d) {
	case "":
		return "", false
	case "SYSDATE", "SYSTIMESTAMP", "CURRENT_TIMESTAMP":
		return "CURRENT_TIMESTAMP", true
	case "CURRENT_DATE":
		return "CURRENT_DATE", true
	case "USER", "CURRENT_USER":
		return "CURRENT_USER", true
	case "NULL":
		return "NULL", true
	case "SYS_GUID()":
		return "gen_random_uuid()", true
	}
	if numLit.MatchString(d) || strLit.MatchString(d) {
		return d, true
	}
	if m := nextval.FindStringSubmatch(d); m != nil {
		owner := m[1]
		if owner == "" {
			owner = schema
		}
		return fmt.Sprintf("nextval('%s')", QualIdent(owner, m[2])), true
	}
	return "", false
}
