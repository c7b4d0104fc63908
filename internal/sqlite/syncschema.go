package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/random"
)

// schemaDiff lists what differs between the live schema and the target schema attached as schemaTarget.
type schemaDiff struct {
	DeletedTables []string
	NewTables     []string
	ChangedTables []changedTable
}

type changedTable struct {
	Name       string `db:"name"`
	CurrentSQL string `db:"current_sql"`
	TargetSQL  string `db:"target_sql"`
}

func (d schemaDiff) empty() bool {
	return len(d.DeletedTables) == 0 && len(d.NewTables) == 0 && len(d.ChangedTables) == 0
}

// migrateTo synchronizes the live schema with schemaDefinition, usually the embedded schema.sql.
//
// The migration is declarative: the target schema is created in a scratch in-memory database and compared against
// sqlite_schema. Removed tables are dropped, new tables created and changed tables rebuilt with the generalized
// ALTER TABLE procedure https://www.sqlite.org/lang_altertable.html#otheralter keeping the columns both versions
// share. Indexes and triggers are recreated whenever their SQL differs.
//
// See https://david.rothlis.net/declarative-schema-migration-for-sqlite/.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	// ATTACH and the foreign_keys pragma are no-ops inside a transaction so the work is pinned to one connection.
	var conn *sqlx.Conn
	if conn, err = db.ReadWrite.Connx(ctx); err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer func() {
		err = errors.Join(err, errors.Wrap(conn.Close(), "release connection"))
	}()

	detach, err := attachTarget(ctx, conn, schemaDefinition)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, detach())
	}()

	if _, err = conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign keys")
	}
	defer func() {
		// Leaving foreign keys off would silently break cascading deletes of chat messages and log entries.
		if _, fkErr := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, errors.Wrap(fkErr, "re-enable foreign keys"))
		}
	}()

	var tx *sqlx.Tx
	if tx, err = conn.BeginTxx(ctx, nil); err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction", errors.SlogError(rollbackErr))
		}
	}()

	diff, err := diffSchema(ctx, tx)
	if err != nil {
		return err
	}
	if !diff.empty() {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "migrating schema",
			slog.Any("deleted_tables", diff.DeletedTables),
			slog.Int("new_tables", len(diff.NewTables)),
			slog.Int("changed_tables", len(diff.ChangedTables)))
	}
	if err = db.applyTables(ctx, tx, diff); err != nil {
		return err
	}
	for _, kind := range []string{"index", "trigger"} {
		if err = db.syncObjects(ctx, tx, kind); err != nil {
			return err
		}
	}

	if err = checkForeignKeys(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit migration")
	}
	return nil
}

// attachTarget creates schemaDefinition in a scratch database and attaches it to conn as schemaTarget.
func attachTarget(ctx context.Context, conn *sqlx.Conn, schemaDefinition string) (func() error, error) {
	var (
		name         string
		dbNameLength uint = 20
		err          error
	)
	if name, err = random.Letters(dbNameLength); err != nil {
		return nil, errors.Wrap(err, "generate target name")
	}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	target, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open schema target")
	}
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, errors.Join(errors.Wrap(err, "create schema target"), target.Close())
	}
	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", dsn); err != nil {
		return nil, errors.Join(errors.Wrap(err, "attach schema target"), target.Close())
	}
	return func() error {
		_, detachErr := conn.ExecContext(ctx, "DETACH DATABASE schemaTarget")
		return errors.Join(
			errors.Wrap(detachErr, "detach schema target"),
			errors.Wrap(target.Close(), "close schema target"),
		)
	}, nil
}

func diffSchema(ctx context.Context, tx *sqlx.Tx) (schemaDiff, error) {
	var diff schemaDiff
	if err := tx.SelectContext(ctx, &diff.DeletedTables, `SELECT current.name
FROM sqlite_schema AS current
         LEFT JOIN schemaTarget.sqlite_schema AS target ON current.name = target.name AND current.type = target.type
WHERE current.type = 'table' AND target.type IS NULL AND current.name NOT LIKE 'sqlite_%'`); err != nil {
		return diff, errors.Wrap(err, "query deleted tables")
	}
	if err := tx.SelectContext(ctx, &diff.NewTables, `SELECT target.sql
FROM schemaTarget.sqlite_schema AS target
         LEFT JOIN sqlite_schema AS current ON current.name = target.name AND current.type = target.type
WHERE target.type = 'table' AND current.type IS NULL AND target.name NOT LIKE 'sqlite_%'`); err != nil {
		return diff, errors.Wrap(err, "query new tables")
	}
	if err := tx.SelectContext(ctx, &diff.ChangedTables, `SELECT current.name AS name,
       current.sql  AS current_sql,
       target.sql   AS target_sql
FROM sqlite_schema AS current
         JOIN schemaTarget.sqlite_schema AS target ON current.name = target.name AND current.type = target.type
WHERE current.type = 'table' AND current.name NOT LIKE 'sqlite_%' AND current.sql <> target.sql`); err != nil {
		return diff, errors.Wrap(err, "query changed tables")
	}
	return diff, nil
}

func (db *Database) applyTables(ctx context.Context, tx *sqlx.Tx, diff schemaDiff) error {
	for _, table := range diff.DeletedTables {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q", table)); err != nil {
			return errors.Wrap(err, "drop table", slog.String("table", table))
		}
	}
	for _, query := range diff.NewTables {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", query))
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "create table", slog.String("query", query))
		}
	}
	for _, table := range diff.ChangedTables {
		if err := db.rebuildTable(ctx, tx, table); err != nil {
			return errors.Wrap(err, "rebuild table", slog.String("table", table.Name))
		}
	}
	return nil
}

// rebuildTable recreates table with its target definition and copies over the columns both definitions share.
func (db *Database) rebuildTable(ctx context.Context, tx *sqlx.Tx, table changedTable) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "rebuilding table",
		slog.String("table", table.Name),
		slog.String("current_sql", table.CurrentSQL),
		slog.String("target_sql", table.TargetSQL))

	staging := table.Name + "_migration_temp"
	if _, err := tx.ExecContext(ctx, strings.Replace(table.TargetSQL, table.Name, staging, 1)); err != nil {
		return errors.Wrap(err, "create staging table")
	}

	// Quoted so that columns named after keywords, like position, survive the copy.
	var columns []string
	if err := tx.SelectContext(ctx, &columns, `SELECT '"' || target.name || '"'
FROM pragma_table_info(:table) AS current
         JOIN pragma_table_info(:table, 'schemaTarget') AS target ON target.name = current.name`,
		sql.Named("table", table.Name)); err != nil {
		return errors.Wrap(err, "query shared columns")
	}
	shared := strings.Join(columns, ", ")
	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", //nolint:gosec // identifiers come from sqlite_schema
		staging, shared, shared, table.Name)
	if _, err := tx.ExecContext(ctx, copySQL); err != nil {
		return errors.Wrap(err, "copy rows", slog.String("query", copySQL))
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q", table.Name)); err != nil {
		return errors.Wrap(err, "drop current table")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %q RENAME TO %q", staging, table.Name)); err != nil {
		return errors.Wrap(err, "rename staging table")
	}
	return nil
}

// syncObjects drops the indexes or triggers that are gone or changed in the target schema and creates the missing
// ones. It runs after the tables because rebuilding a table drops its indexes and triggers.
func (db *Database) syncObjects(ctx context.Context, tx *sqlx.Tx, kind string) error {
	var stale []string
	if err := tx.SelectContext(ctx, &stale, `SELECT current.name
FROM sqlite_schema AS current
         LEFT JOIN schemaTarget.sqlite_schema AS target ON current.name = target.name AND current.type = target.type
WHERE current.type = :type AND current.sql IS NOT NULL AND (target.sql IS NULL OR current.sql <> target.sql)`,
		sql.Named("type", kind)); err != nil {
		return errors.Wrap(err, "query stale schema objects", slog.String("type", kind))
	}
	for _, name := range stale {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping schema object",
			slog.String("type", kind), slog.String("name", name))
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP %s %q", strings.ToUpper(kind), name)); err != nil {
			return errors.Wrap(err, "drop schema object", slog.String("name", name))
		}
	}

	var missing []string
	if err := tx.SelectContext(ctx, &missing, `SELECT target.sql
FROM schemaTarget.sqlite_schema AS target
         LEFT JOIN sqlite_schema AS current ON current.name = target.name AND current.type = target.type
WHERE target.type = :type AND target.sql IS NOT NULL AND current.name IS NULL`,
		sql.Named("type", kind)); err != nil {
		return errors.Wrap(err, "query missing schema objects", slog.String("type", kind))
	}
	for _, query := range missing {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating schema object", slog.String("query", query))
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "create schema object", slog.String("query", query))
		}
	}
	return nil
}

func checkForeignKeys(ctx context.Context, tx *sqlx.Tx) (err error) {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return errors.Wrap(err, "check foreign keys")
	}
	defer func() {
		err = errors.Join(err, errors.Wrap(rows.Close(), "close foreign key check"))
	}()
	if rows.Next() {
		return errors.New("foreign key violations after migration")
	}
	return errors.Wrap(rows.Err(), "read foreign key check")
}
