// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package postgres

import (
	"context"
	"fmt"

	"oralift.io/oralift/sql/orameta"
)

const (
	viewExistsQuery = `
SELECT COUNT(*) FROM pg_views WHERE schemaname = $1 AND viewname = $2
`
	triggerExistsQuery = `
SELECT COUNT(*) FROM pg_trigger t
JOIN pg_class c ON c.oid = t.tgrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND t.tgname = $2 AND NOT t.tgisinternal
`
)

// VerifyViews asserts that every extracted view exists on the Postgres
// side, whether as stub or as implementation.
func (c *Creator) VerifyViews(ctx context.Context, views []*orameta.View) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, v := range views {
		name := QualIdent(v.Schema, v.Name)
		var n int
		if err := c.db.QueryRowContext(ctx, viewExistsQuery, Name(v.Schema), Name(v.Name)).Scan(&n); err != nil {
			o.Error(name, viewExistsQuery, err)
			continue
		}
		if n == 0 {
			o.Error(name, viewExistsQuery, fmt.Errorf("view %s is missing", name))
			continue
		}
		o.Add(name)
	}
	return o
}

// VerifyTriggers asserts that every extracted trigger exists.
func (c *Creator) VerifyTriggers(ctx context.Context, triggers []*orameta.Trigger) *orameta.Outcome[string] {
	o := orameta.NewOutcome[string]()
	for _, t := range triggers {
		name := QualIdent(t.Schema, t.Name)
		var n int
		if err := c.db.QueryRowContext(ctx, triggerExistsQuery, Name(t.Schema), Name(t.Name)).Scan(&n); err != nil {
			o.Error(name, triggerExistsQuery, err)
			continue
		}
		if n == 0 {
			o.Error(name, triggerExistsQuery, fmt.Errorf("trigger %s is missing", name))
			continue
		}
		o.Add(name)
	}
	return o
}
