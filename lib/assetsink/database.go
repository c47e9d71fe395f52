package assetsink

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Database selects where the sql sink writes, a local sqlite file or a remote
// libsql server.
type Database struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"authToken"`
}

func (config Database) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		return openRemote(config.Url, config.AuthToken)
	}
	if config.File == "" {
		return nil, fmt.Errorf("neither a database file nor a url was specified")
	}

	dbpath, err := filepath.Abs(config.File)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(filepath.Dir(dbpath), 0777)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		return nil, err
	}
	// sqlite only has one writer, queueing in database/sql beats SQLITE_BUSY
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openRemote(rawUrl, authToken string) (*sql.DB, error) {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return nil, err
	}
	if authToken != "" {
		query := u.Query()
		query.Set("authToken", authToken)
		u.RawQuery = query.Encode()
	}
	return sql.Open("libsql", u.String())
}
