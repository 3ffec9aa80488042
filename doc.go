/*
Package dbmo runs SQL text and stored procedures against any database/sql backend through one
small pipeline: parse placeholders, bind parameters, execute, map rows.

Statements are written with named placeholders (@name by default, :name for Oracle). The same
statement can be bound three ways:

	e.Query(ctx, "SELECT * FROM users WHERE age > @age AND city = @city", dbmo.Args(18, "Paris"))
	e.Query(ctx, "SELECT * FROM users WHERE age > @age", dbmo.Named(map[string]any{"age": 18}))
	e.Query(ctx, "SELECT * FROM users WHERE age > @Age", dbmo.Entity(filter))

Positional values follow the order of the distinct placeholder names; a placeholder that occurs
twice takes its value once. Binding is all-or-nothing: an unresolved placeholder fails with
ErrBinding before anything reaches the backend.

Partial INSERT and UPDATE statements are completed from their column lists:

	e.Insert(ctx, "INSERT INTO users (name, age)", dbmo.Entity(u))
	// INSERT INTO users (name, age) VALUES(@name, @age)
	e.Update(ctx, "UPDATE users (name, age) WHERE id=@id", dbmo.Entity(u))
	// UPDATE users SET name=@name, age=@age WHERE id=@id

Rows come back as *Record values (ordered, case-insensitive columns) or, with QueryAs, as typed
structs filled through db/column tags, field names or SetXxx methods.

Providers for SQLite, MySQL, PostgreSQL, SQL Server, Oracle and DuckDB live under drivers/; any
other database/sql driver can be used through drivers/ansi.

Basic Usage:

	e, err := sqlite.Open("data source=app.db", dbmo.WithVerbose(true))
	if err != nil {
		log.Fatal(err)
	}
	defer e.Close()

	err = e.Transaction(ctx, func(tx *dbmo.Engine) error {
		_, err := tx.Exec(ctx, "UPDATE accounts SET balance = balance - @n WHERE id = @id", dbmo.Args(10, 1))
		return err
	})

An Engine holds one connection and one transaction at a time and is not safe for concurrent
use; Session returns an independent engine sharing the same pool.
*/
package dbmo
