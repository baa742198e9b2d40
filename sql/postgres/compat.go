// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package postgres

import (
	"context"
	"fmt"
	"strings"

	"oralift.io/oralift/sql/orameta"
)

// Tier classifies how faithfully a compatibility function emulates its
// Oracle counterpart.
type Tier string

const (
	TierFull    Tier = "FULL"    // semantically complete
	TierPartial Tier = "PARTIAL" // subset of Oracle behaviour
	TierStub    Tier = "STUB"    // signature only
)

// A CompatFunc is one entry of the fixed compatibility catalogue.
type CompatFunc struct {
	Schema string // empty for top-level helpers
	Name   string
	Args   string
	Tier   Tier
	Body   string // full CREATE OR REPLACE FUNCTION statement
}

// Qualified returns the installed name of the function.
func (f *CompatFunc) Qualified() string {
	if f.Schema == "" {
		return f.Name
	}
	return f.Schema + "." + f.Name
}

// compatSchemas emulate Oracle package namespaces.
var compatSchemas = []string{"dbms_output", "dbms_lob", "dbms_utility", "utl_file"}

// Catalogue returns the fixed, deterministically ordered compatibility
// catalogue. The slice is rebuilt per call so callers may not mutate
// shared state.
func Catalogue() []CompatFunc {
	return []CompatFunc{
		{Name: "nvl", Args: "anyelement, anyelement", Tier: TierFull, Body: `
CREATE OR REPLACE FUNCTION nvl(v anyelement, d anyelement) RETURNS anyelement AS $$
  SELECT COALESCE(v, d)
$$ LANGUAGE sql IMMUTABLE`},
		{Name: "nvl2", Args: "anyelement, anyelement, anyelement", Tier: TierFull, Body: `
CREATE OR REPLACE FUNCTION nvl2(v anyelement, a anyelement, b anyelement) RETURNS anyelement AS $$
  SELECT CASE WHEN v IS NOT NULL THEN a ELSE b END
$$ LANGUAGE sql IMMUTABLE`},
		{Name: "add_months", Args: "timestamp, integer", Tier: TierFull, Body: `
CREATE OR REPLACE FUNCTION add_months(d timestamp, n integer) RETURNS timestamp AS $$
  SELECT d + make_interval(months => n)
$$ LANGUAGE sql IMMUTABLE`},
		{Name: "last_day", Args: "timestamp", Tier: TierFull, Body: `
CREATE OR REPLACE FUNCTION last_day(d timestamp) RETURNS timestamp AS $$
  SELECT (date_trunc('month', d) + interval '1 month - 1 day')::timestamp
$$ LANGUAGE sql IMMUTABLE`},
		{Name: "months_between", Args: "timestamp, timestamp", Tier: TierPartial, Body: `
CREATE OR REPLACE FUNCTION months_between(a timestamp, b timestamp) RETURNS numeric AS $$
  SELECT (EXTRACT(year FROM a) - EXTRACT(year FROM b)) * 12
       + (EXTRACT(month FROM a) - EXTRACT(month FROM b))
       + (EXTRACT(day FROM a) - EXTRACT(day FROM b)) / 31.0
$$ LANGUAGE sql IMMUTABLE`},
		{Name: "instr", Args: "text, text", Tier: TierFull, Body: `
CREATE OR REPLACE FUNCTION instr(str text, sub text) RETURNS integer AS $$
  SELECT position(sub IN str)
$$ LANGUAGE sql IMMUTABLE`},
		{Name: "instr", Args: "text, text, integer", Tier: TierPartial, Body: `
CREATE OR REPLACE FUNCTION instr(str text, sub text, pos integer) RETURNS integer AS $$
  SELECT CASE WHEN pos < 1 THEN 0
              WHEN position(sub IN substr(str, pos)) = 0 THEN 0
              ELSE position(sub IN substr(str, pos)) + pos - 1 END
$$ LANGUAGE sql IMMUTABLE`},
		{Name: "sysdate", Args: "", Tier: TierFull, Body: `
CREATE OR REPLACE FUNCTION sysdate() RETURNS timestamp AS $$
  SELECT CURRENT_TIMESTAMP::timestamp(0)
$$ LANGUAGE sql STABLE`},
		{Name: "decode", Args: "variadic anyarray", Tier: TierPartial, Body: `
CREATE OR REPLACE FUNCTION decode(VARIADIC args anyarray) RETURNS anyelement AS $$
DECLARE
  i integer := 2;
BEGIN
  WHILE i < array_length(args, 1) LOOP
    IF args[1] IS NOT DISTINCT FROM args[i] THEN
      RETURN args[i + 1];
    END IF;
    i := i + 2;
  END LOOP;
  IF array_length(args, 1) % 2 = 0 THEN
    RETURN args[array_length(args, 1)];
  END IF;
  RETURN NULL;
END;
$$ LANGUAGE plpgsql IMMUTABLE`},
		{Name: "sys_context", Args: "text, text", Tier: TierPartial, Body: `
CREATE OR REPLACE FUNCTION sys_context(ns text, param text) RETURNS text AS $$
  SELECT CASE upper(param)
    WHEN 'SESSION_USER' THEN session_user::text
    WHEN 'CURRENT_USER' THEN current_user::text
    WHEN 'CURRENT_SCHEMA' THEN current_schema()::text
    WHEN 'DB_NAME' THEN current_database()::text
    WHEN 'HOST' THEN COALESCE(inet_client_addr()::text, 'localhost')
    ELSE NULL END
  WHERE upper(ns) = 'USERENV'
$$ LANGUAGE sql STABLE`},
		{Schema: "dbms_output", Name: "put_line", Args: "text", Tier: TierPartial, Body: `
CREATE OR REPLACE FUNCTION dbms_output.put_line(msg text) RETURNS void AS $$
BEGIN
  RAISE NOTICE '%', msg;
END;
$$ LANGUAGE plpgsql`},
		{Schema: "dbms_output", Name: "put", Args: "text", Tier: TierPartial, Body: `
CREATE OR REPLACE FUNCTION dbms_output.put(msg text) RETURNS void AS $$
BEGIN
  RAISE NOTICE '%', msg;
END;
$$ LANGUAGE plpgsql`},
		{Schema: "dbms_output", Name: "enable", Args: "integer", Tier: TierStub, Body: `
CREATE OR REPLACE FUNCTION dbms_output.enable(buffer_size integer DEFAULT NULL) RETURNS void AS $$
BEGIN
  NULL;
END;
$$ LANGUAGE plpgsql`},
		{Schema: "dbms_lob", Name: "getlength", Args: "text", Tier: TierFull, Body: `
CREATE OR REPLACE FUNCTION dbms_lob.getlength(lob text) RETURNS integer AS $$
  SELECT length(lob)
$$ LANGUAGE sql IMMUTABLE`},
		{Schema: "dbms_lob", Name: "getlength", Args: "bytea", Tier: TierFull, Body: `
CREATE OR REPLACE FUNCTION dbms_lob.getlength(lob bytea) RETURNS integer AS $$
  SELECT octet_length(lob)
$$ LANGUAGE sql IMMUTABLE`},
		{Schema: "dbms_lob", Name: "substr", Args: "text, integer, integer", Tier: TierFull, Body: `
CREATE OR REPLACE FUNCTION dbms_lob.substr(lob text, amount integer DEFAULT 32767, off integer DEFAULT 1) RETURNS text AS $$
  SELECT substr(lob, off, amount)
$$ LANGUAGE sql IMMUTABLE`},
		{Schema: "dbms_utility", Name: "get_time", Args: "", Tier: TierPartial, Body: `
CREATE OR REPLACE FUNCTION dbms_utility.get_time() RETURNS bigint AS $$
  SELECT (EXTRACT(EPOCH FROM clock_timestamp()) * 100)::bigint
$$ LANGUAGE sql VOLATILE`},
		{Schema: "dbms_utility", Name: "format_error_backtrace", Args: "", Tier: TierStub, Body: `
CREATE OR REPLACE FUNCTION dbms_utility.format_error_backtrace() RETURNS text AS $$
  SELECT ''::text
$$ LANGUAGE sql STABLE`},
		{Schema: "utl_file", Name: "fopen", Args: "text, text, text", Tier: TierStub, Body: `
CREATE OR REPLACE FUNCTION utl_file.fopen(loc text, name text, mode text) RETURNS integer AS $$
BEGIN
  RAISE EXCEPTION 'not implemented: utl_file.fopen' USING ERRCODE = '0A000';
END;
$$ LANGUAGE plpgsql`},
		{Schema: "utl_file", Name: "put_line", Args: "integer, text", Tier: TierStub, Body: `
CREATE OR REPLACE FUNCTION utl_file.put_line(handle integer, line text) RETURNS void AS $$
BEGIN
  RAISE EXCEPTION 'not implemented: utl_file.put_line' USING ERRCODE = '0A000';
END;
$$ LANGUAGE plpgsql`},
		{Schema: "utl_file", Name: "fclose", Args: "integer", Tier: TierStub, Body: `
CREATE OR REPLACE FUNCTION utl_file.fclose(handle integer) RETURNS void AS $$
BEGIN
  NULL;
END;
$$ LANGUAGE plpgsql`},
	}
}

// A CompatReport is the result of installing the catalogue.
type CompatReport struct {
	InstalledFull    []string                          `json:"installedFull"`
	InstalledPartial []string                          `json:"installedPartial"`
	InstalledStubs   []string                          `json:"installedStubs"`
	Failed           []orameta.ItemError[string]       `json:"failed"`
}

// Counts returns installed and failed counts.
func (r *CompatReport) Counts() (installed, failed int) {
	return len(r.InstalledFull) + len(r.InstalledPartial) + len(r.InstalledStubs), len(r.Failed)
}

// InstallCompat installs the compatibility catalogue. Installation is
// idempotent: every body is CREATE OR REPLACE and package schemas are
// created with IF NOT EXISTS.
func (c *Creator) InstallCompat(ctx context.Context) *CompatReport {
	r := &CompatReport{}
	for _, s := range compatSchemas {
		ddl := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", s)
		if err := c.exec(ctx, "compat", ddl); err != nil {
			r.Failed = append(r.Failed, orameta.ItemError[string]{Item: s, Err: err.Error(), SQL: ddl})
		}
	}
	for _, f := range Catalogue() {
		ddl := strings.TrimSpace(f.Body)
		if err := c.exec(ctx, "compat", ddl); err != nil {
			r.Failed = append(r.Failed, orameta.ItemError[string]{Item: f.Qualified(), Err: err.Error(), SQL: ddl})
			continue
		}
		switch f.Tier {
		case TierFull:
			r.InstalledFull = append(r.InstalledFull, f.Qualified())
		case TierPartial:
			r.InstalledPartial = append(r.InstalledPartial, f.Qualified())
		default:
			r.InstalledStubs = append(r.InstalledStubs, f.Qualified())
		}
	}
	return r
}

// compatVerifyQuery checks a function's presence by schema and name.
const compatVerifyQuery = `
SELECT COUNT(*) FROM pg_proc p
JOIN pg_namespace n ON n.oid = p.pronamespace
WHERE n.nspname = $1 AND p.proname = $2
`

// VerifyCompat asserts every catalogue entry is present in pg_proc.
func (c *Creator) VerifyCompat(ctx context.Context) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, f := range Catalogue() {
		schema := f.Schema
		if schema == "" {
			schema = "public"
		}
		var n int
		if err := c.db.QueryRowContext(ctx, compatVerifyQuery, schema, f.Name).Scan(&n); err != nil {
			o.Error(f.Qualified(), compatVerifyQuery, err)
			continue
		}
		if n == 0 {
			o.Error(f.Qualified(), compatVerifyQuery, fmt.Errorf("function %s is missing", f.Qualified()))
			continue
		}
		o.Add(f.Qualified())
	}
	return o
}
