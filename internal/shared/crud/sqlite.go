package crud

import (
	"database/sql"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteDriver is the database/sql driver behind OpenSQLite. Its connections
// carry unicode_lower, a LOWER that folds non-ASCII letters like postgres.
const SQLiteDriver = "sqlite3_unicode"

var registerSQLite sync.Once

// OpenSQLite returns a gorm dialector for dsn on SQLiteDriver.
func OpenSQLite(dsn string) gorm.Dialector {
	registerSQLite.Do(func() {
		sql.Register(SQLiteDriver, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("unicode_lower", strings.ToLower, true)
			},
		})
	})
	return sqlite.New(sqlite.Config{DriverName: SQLiteDriver, DSN: dsn})
}
