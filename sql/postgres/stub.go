// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"oralift.io/oralift/sql/internal/sqlx"
	"oralift.io/oralift/sql/orameta"
)

// StubErrcode is the SQLSTATE raised by every generated stub body.
const StubErrcode = "0A000" // feature_not_supported

// stubBody returns a PL/pgSQL body raising the well-known
// not-implemented exception for the named object.
func stubBody(name string) string {
	return fmt.Sprintf(
		"BEGIN\n  RAISE EXCEPTION 'not implemented: %%', %s USING ERRCODE = '%s';\nEND;",
		pq.QuoteLiteral(name), StubErrcode,
	)
}

// ViewStubs creates empty-result views with the correct column list and
// result types, satisfying forward references from later phases.
func (c *Creator) ViewStubs(ctx context.Context, views []*orameta.View) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, v := range views {
		name := QualIdent(v.Schema, v.Name)
		b := sqlx.B("CREATE VIEW").P(name)
		b.Wrap(func(b *sqlx.Builder) {
			b.MapComma(len(v.Columns), func(i int, b *sqlx.Builder) {
				b.P(Ident(v.Columns[i].Name))
			})
		})
		b.P("AS SELECT")
		b.MapComma(len(v.Columns), func(i int, b *sqlx.Builder) {
			m := ViewColumnType(v.Columns[i])
			if m.Unmapped {
				o.Warn(orameta.Warning{
					Object:  name,
					Column:  v.Columns[i].Name,
					Message: fmt.Sprintf("unmapped view column type %q", v.Columns[i].DataType),
				})
			}
			b.P("NULL::" + m.T)
		})
		b.P("WHERE false")
		apply(ctx, c, o, name, "view_stubs", b.String())
	}
	return o
}

// ViewImplementations replaces view stubs with their translated bodies.
// Views whose Oracle SQL did not survive translation keep their stubs
// and are reported as skipped.
func (c *Creator) ViewImplementations(ctx context.Context, views []*orameta.View) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, v := range views {
		name := QualIdent(v.Schema, v.Name)
		body := v.Translated
		if body == "" {
			var ok bool
			if body, ok = TranslateQuery(v.Definition); !ok {
				o.Skip(name, "untranslatable view body")
				continue
			}
		}
		drop := sqlx.B("DROP VIEW IF EXISTS").P(name).String()
		create := sqlx.B("CREATE VIEW").P(name, "AS", body).String()
		if err := c.exec(ctx, "views", drop+";\n"+create); err != nil {
			o.Error(name, create, err)
			continue
		}
		o.Add(name)
	}
	return o
}

// RoutineStubs creates functions and procedures whose signatures match
// the Oracle counterparts after type mapping but whose bodies raise the
// not-implemented exception. Packaged routines are flattened.
func (c *Creator) RoutineStubs(ctx context.Context, routines []*orameta.Routine) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, r := range routines {
		name := QualIdent(r.Schema, r.FlatName())
		b := sqlx.B("CREATE")
		if r.Type == orameta.Procedure {
			b.P("PROCEDURE")
		} else {
			b.P("FUNCTION")
		}
		b.P(name)
		argList(b, r.Args)
		if r.Type == orameta.Function && outArgs(r.Args) < 2 {
			ret := ArgType(r.Return)
			b.P("RETURNS", ret.T)
		}
		b.P("AS $$\n" + stubBody(name) + "\n$$ LANGUAGE plpgsql")
		apply(ctx, c, o, name, "routine_stubs", b.String())
	}
	return o
}

// outArgs counts OUT and IN/OUT arguments. With two or more of them the
// function result type is the implied record, and an explicit RETURNS
// clause is rejected by Postgres (42P13).
func outArgs(args []*orameta.RoutineArg) int {
	n := 0
	for _, a := range args {
		switch strings.ToUpper(a.InOut) {
		case "OUT", "IN/OUT", "INOUT":
			n++
		}
	}
	return n
}

func argList(b *sqlx.Builder, args []*orameta.RoutineArg) {
	b.Wrap(func(b *sqlx.Builder) {
		b.MapComma(len(args), func(i int, b *sqlx.Builder) {
			a := args[i]
			switch strings.ToUpper(a.InOut) {
			case "OUT":
				b.P("OUT")
			case "IN/OUT", "INOUT":
				b.P("INOUT")
			}
			if a.Name != "" {
				b.P(Ident(a.Name))
			}
			b.P(ArgType(a.DataType).T)
		})
	})
}

// methodName returns the flattened Postgres function name of a type
// method, e.g. type PERSON method AGE becomes person_age.
func methodName(m *orameta.TypeMethod) string {
	return strings.ToLower(m.TypeName + "_" + m.Name)
}

// TypeMethodStubs creates one function per object-type method. Member
// methods receive the composite type as their leading self argument.
func (c *Creator) TypeMethodStubs(ctx context.Context, methods []*orameta.TypeMethod) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, m := range methods {
		name := QualIdent(m.Schema, methodName(m))
		b := c.typeMethodHead(m, name)
		b.P("AS $$\n" + stubBody(name) + "\n$$ LANGUAGE plpgsql")
		apply(ctx, c, o, name, "type_method_stubs", b.String())
	}
	return o
}

// TypeMethodImplementations replaces method stubs whose bodies survive
// the curated expression translation; anything else keeps its stub.
func (c *Creator) TypeMethodImplementations(ctx context.Context, methods []*orameta.TypeMethod) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, m := range methods {
		name := QualIdent(m.Schema, methodName(m))
		body, ok := TranslateBody(m.Body)
		if !ok {
			o.Skip(name, "untranslatable method body")
			continue
		}
		b := c.typeMethodHead(m, name)
		b.P("AS $$\n" + body + "\n$$ LANGUAGE plpgsql")
		ddl := strings.Replace(b.String(), "CREATE FUNCTION", "CREATE OR REPLACE FUNCTION", 1)
		if err := c.exec(ctx, "type_methods", ddl); err != nil {
			o.Error(name, ddl, err)
			continue
		}
		o.Add(name)
	}
	return o
}

func (c *Creator) typeMethodHead(m *orameta.TypeMethod, name string) *sqlx.Builder {
	b := sqlx.B("CREATE FUNCTION").P(name)
	args := m.Args
	if strings.ToUpper(m.MethodType) != "STATIC" {
		self := &orameta.RoutineArg{Name: "self", DataType: m.Schema + "." + m.TypeName}
		args = append([]*orameta.RoutineArg{self}, m.Args...)
	}
	argList(b, args)
	ret := "void"
	if m.Return != "" {
		ret = ArgType(m.Return).T
	}
	b.P("RETURNS", ret)
	return b
}

// TriggerImplementations creates a trigger function and its trigger per
// Oracle trigger. Bodies that do not survive translation get a raising
// stub function and the trigger is installed disabled, so data loads
// are not broken by half-translated logic.
func (c *Creator) TriggerImplementations(ctx context.Context, triggers []*orameta.Trigger) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, t := range triggers {
		name := QualIdent(t.Schema, strings.ToLower(t.Name))
		fname := QualIdent(t.Schema, "trg_"+strings.ToLower(t.Name))
		body, translated := TranslateBody(t.Body)
		if !translated {
			body = stubBody(name)
		}
		fn := sqlx.B("CREATE OR REPLACE FUNCTION").P(fname + "()").
			P("RETURNS trigger AS $$\n" + body + "\n$$ LANGUAGE plpgsql").String()
		trg := sqlx.B("CREATE TRIGGER").P(Ident(t.Name)).
			P(triggerTiming(t.Timing), t.Event).
			P("ON", QualIdent(t.Schema, t.Table)).
			P("FOR EACH", triggerLevel(t.Level)).
			P("EXECUTE FUNCTION", fname+"()").String()
		ddl := fn + ";\n" + trg
		if !translated {
			ddl += ";\n" + sqlx.B("ALTER TABLE").P(QualIdent(t.Schema, t.Table),
				"DISABLE TRIGGER", Ident(t.Name)).String()
			o.Warn(orameta.Warning{Object: name, Message: "trigger body not translated; installed disabled"})
		}
		apply(ctx, c, o, name, "triggers", ddl)
	}
	return o
}

func triggerTiming(t string) string {
	u := strings.ToUpper(t)
	switch {
	case strings.Contains(u, "INSTEAD"):
		return "INSTEAD OF"
	case strings.Contains(u, "AFTER"):
		return "AFTER"
	default:
		return "BEFORE"
	}
}

func triggerLevel(l string) string {
	if strings.Contains(strings.ToUpper(l), "STATEMENT") {
		return "STATEMENT"
	}
	return "ROW"
}

// SynonymViews emulates Oracle synonyms with pass-through views.
// Synonyms over database links are skipped, as are synonyms whose
// target is not among the known migrated objects.
func (c *Creator) SynonymViews(ctx context.Context, syns []*orameta.Synonym, known map[string]bool) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, s := range syns {
		name := QualIdent(s.Owner, s.Name)
		if s.Remote() {
			o.Skip(name, "remote synonym")
			continue
		}
		target := QualIdent(s.TargetOwner, s.TargetName)
		if known != nil && !known[target] {
			o.Skip(name, "unknown synonym target")
			continue
		}
		b := sqlx.B("CREATE VIEW").P(name, "AS SELECT * FROM", target)
		apply(ctx, c, o, name, "synonyms", b.String())
	}
	return o
}

var (
	sysdateRe = regexp.MustCompile(`(?i)\bSYSDATE\b`)
	systsRe   = regexp.MustCompile(`(?i)\bSYSTIMESTAMP\b`)
	dualRe    = regexp.MustCompile(`(?i)\s+FROM\s+"?DUAL"?\s*$`)
	identRe   = regexp.MustCompile(`"[A-Z][A-Z0-9_$#]*"`)
	outerRe   = regexp.MustCompile(`\(\+\)`)
	returnRe  = regexp.MustCompile(`(?is)^\s*BEGIN\s+RETURN\s+(.+?);\s*END\s*;?\s*$`)
)

// TranslateExpr applies the textual Oracle-to-Postgres rewrites that are
// safe on scalar expressions: built-in pseudo columns and quoted
// upper-case identifiers. Everything else passes through; the installed
// compatibility layer resolves Oracle built-in calls at runtime.
func TranslateExpr(expr string) string {
	e := sysdateRe.ReplaceAllString(expr, "CURRENT_TIMESTAMP")
	e = systsRe.ReplaceAllString(e, "CURRENT_TIMESTAMP")
	e = identRe.ReplaceAllStringFunc(e, func(s string) string {
		return Ident(s)
	})
	return strings.TrimSpace(e)
}

// TranslateQuery rewrites an Oracle query body for Postgres. Queries
// using constructs with no textual equivalent (old-style (+) outer
// joins) are rejected and keep their stubs.
func TranslateQuery(q string) (string, bool) {
	if outerRe.MatchString(q) {
		return "", false
	}
	s := strings.TrimRight(strings.TrimSpace(q), ";")
	s = dualRe.ReplaceAllString(s, "")
	return TranslateExpr(s), true
}

// TranslateBody translates the curated subset of PL/SQL bodies: a single
// RETURN of a scalar expression. Anything richer is left to the stub
// path; automatic PL/SQL translation is out of scope.
func TranslateBody(body string) (string, bool) {
	m := returnRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return fmt.Sprintf("BEGIN\n  RETURN %s;\nEND;", TranslateExpr(m[1])), true
}
