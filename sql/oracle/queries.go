// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package oracle

// Queries against the Oracle data dictionary. All of them are filtered
// to a single schema; the extractor iterates the configured schema set.
const (
	// Query to list database schemas. Internal and recycle-bin users
	// are excluded up front.
	schemasQuery = `
SELECT username FROM all_users
WHERE INSTR(username, '$') = 0
  AND username NOT IN (
	'SYS', 'SYSTEM', 'OUTLN', 'XDB', 'CTXSYS', 'MDSYS', 'ORDSYS', 'ORDDATA',
	'ORDPLUGINS', 'DBSNMP', 'APPQOSSYS', 'WMSYS', 'EXFSYS', 'OLAPSYS',
	'SI_INFORMTN_SCHEMA', 'ANONYMOUS', 'LBACSYS', 'DVSYS', 'AUDSYS',
	'OJVMSYS', 'GSMADMIN_INTERNAL', 'REMOTE_SCHEDULER_AGENT', 'DIP',
	'ORACLE_OCM', 'XS$NULL'
  )
ORDER BY username`

	// Query to list schema synonyms.
	synonymsQuery = `
SELECT synonym_name, table_owner, table_name, db_link
FROM all_synonyms
WHERE owner = :1
ORDER BY synonym_name`

	// Query to list user-defined object types.
	objectTypesQuery = `
SELECT type_name FROM all_types
WHERE owner = :1 AND typecode = 'OBJECT'
ORDER BY type_name`

	// Query to list the attributes of one object type, in declaration
	// order.
	typeAttrsQuery = `
SELECT attr_name, attr_type_name, length, precision, scale
FROM all_type_attrs
WHERE owner = :1 AND type_name = :2
ORDER BY attr_no`

	// Query to list schema sequences. Bounds are selected as text since
	// Oracle sequence limits exceed 64-bit range.
	sequencesQuery = `
SELECT sequence_name, min_value, max_value, increment_by, cycle_flag, cache_size, last_number
FROM all_sequences
WHERE sequence_owner = :1
ORDER BY sequence_name`

	// Query to list schema tables. IOT overflow segments, nested and
	// recycle-bin tables are excluded.
	tablesQuery = `
SELECT table_name FROM all_tables
WHERE owner = :1
  AND nested = 'NO'
  AND (iot_type IS NULL OR iot_type = 'IOT')
  AND table_name NOT LIKE 'BIN$%'
ORDER BY table_name`

	// Query to list table (or view) columns in position order.
	columnsQuery = `
SELECT column_name, data_type, char_length, data_length, data_precision, data_scale,
       nullable, data_default, column_id
FROM all_tab_columns
WHERE owner = :1 AND table_name = :2
ORDER BY column_id`

	// Query to list the enabled constraints of a schema. NOT NULL check
	// constraints are filtered out in code since they are carried by
	// column nullability already.
	constraintsQuery = `
SELECT table_name, constraint_name, constraint_type, search_condition,
       r_owner, r_constraint_name, deferrable, deferred
FROM all_constraints
WHERE owner = :1
  AND constraint_type IN ('P', 'U', 'R', 'C')
  AND status = 'ENABLED'
  AND table_name NOT LIKE 'BIN$%'
ORDER BY table_name, constraint_name`

	// Query to list the columns of one constraint in key order.
	constraintColumnsQuery = `
SELECT column_name FROM all_cons_columns
WHERE owner = :1 AND constraint_name = :2
ORDER BY position`

	// Query to resolve the table of a referenced constraint.
	refConstraintQuery = `
SELECT table_name FROM all_constraints
WHERE owner = :1 AND constraint_name = :2`

	// Query to list schema views with their Oracle definition.
	viewsQuery = `
SELECT view_name, text FROM all_views
WHERE owner = :1
ORDER BY view_name`

	// Query to list standalone functions and procedures.
	objectsQuery = `
SELECT object_name, object_type FROM all_objects
WHERE owner = :1 AND object_type IN ('FUNCTION', 'PROCEDURE')
ORDER BY object_name`

	// Query to list package members.
	packageProceduresQuery = `
SELECT object_name, procedure_name FROM all_procedures
WHERE owner = :1 AND object_type = 'PACKAGE' AND procedure_name IS NOT NULL
ORDER BY object_name, subprogram_id`

	// Query to list the arguments of one routine. Position 0 carries
	// the return type of a function.
	argumentsQuery = `
SELECT argument_name, data_type, in_out, position
FROM all_arguments
WHERE owner = :1 AND object_name = :2
  AND NVL(package_name, '-') = NVL(:3, '-')
  AND data_level = 0
ORDER BY position`

	// Query to list object-type methods.
	typeMethodsQuery = `
SELECT type_name, method_name, method_type, instantiable
FROM all_type_methods
WHERE owner = :1
ORDER BY type_name, method_no`

	// Query to list the parameters of one type method, skipping the
	// implicit SELF parameter.
	methodParamsQuery = `
SELECT param_name, param_type_name FROM all_method_params
WHERE owner = :1 AND type_name = :2 AND method_name = :3 AND param_name <> 'SELF'
ORDER BY param_no`

	// Query for the result type of one type method.
	methodResultQuery = `
SELECT result_type_name FROM all_method_results
WHERE owner = :1 AND type_name = :2 AND method_name = :3`

	// Query for the PL/SQL source of a type body.
	typeBodyQuery = `
SELECT text FROM all_source
WHERE owner = :1 AND name = :2 AND type = 'TYPE BODY'
ORDER BY line`

	// Query to list schema triggers on tables.
	triggersQuery = `
SELECT trigger_name, trigger_type, triggering_event, table_name, trigger_body
FROM all_triggers
WHERE owner = :1 AND base_object_type IN ('TABLE', 'VIEW') AND status = 'ENABLED'
ORDER BY trigger_name`
)
