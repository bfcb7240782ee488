package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
)

// Defaults matching the compose manifest
const (
	DefaultHost     = "mssql"
	DefaultPort     = 1433
	DefaultDatabase = "vault"
	DefaultUser     = "sa"
)

// journalTable records applied scripts
const journalTable = "[dbo].[Migration]"

// ConnectionSettings locate the SQL Server instance
type ConnectionSettings struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// DefaultConnectionSettings returns settings for the bundled mssql container
func DefaultConnectionSettings(password string) ConnectionSettings {
	return ConnectionSettings{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Database: DefaultDatabase,
		User:     DefaultUser,
		Password: password,
	}
}

// URL returns the sqlserver:// connection string for database
func (s ConnectionSettings) URL(database string) string {
	query := url.Values{}
	query.Set("database", database)
	query.Set("connection timeout", "30")
	query.Set("encrypt", "disable")

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(s.User, s.Password),
		Host:     net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// SQLServer is a Database backed by go-mssqldb
type SQLServer struct {
	master   *sql.DB
	vault    *sql.DB
	database string
}

// NewSQLServerConnector returns a Connector opening a new pair of connections
// per call: master for database creation and the target database for scripts
func NewSQLServerConnector(settings ConnectionSettings) Connector {
	return func(ctx context.Context) (Database, error) {
		master, err := sql.Open("sqlserver", settings.URL("master"))
		if err != nil {
			return nil, fmt.Errorf("failed to open master connection: %w", err)
		}
		if err := master.PingContext(ctx); err != nil {
			master.Close()
			return nil, err
		}

		vault, err := sql.Open("sqlserver", settings.URL(settings.Database))
		if err != nil {
			master.Close()
			return nil, fmt.Errorf("failed to open %s connection: %w", settings.Database, err)
		}
		return &SQLServer{master: master, vault: vault, database: settings.Database}, nil
	}
}

func (s *SQLServer) EnsureDatabase(ctx context.Context) error {
	name := quoteLiteral(s.database)
	ident := quoteIdentifier(s.database)

	create := fmt.Sprintf("IF ((SELECT COUNT(1) FROM sys.databases WHERE [name] = %s) = 0) "+
		"CREATE DATABASE %s;", name, ident)
	if _, err := s.master.ExecContext(ctx, create); err != nil {
		return err
	}

	autoClose := fmt.Sprintf("IF ((SELECT DATABASEPROPERTYEX([name], 'IsAutoClose') "+
		"FROM sys.databases WHERE [name] = %s) = 1) ALTER DATABASE %s SET AUTO_CLOSE OFF;", name, ident)
	_, err := s.master.ExecContext(ctx, autoClose)
	return err
}

func (s *SQLServer) EnsureJournal(ctx context.Context) error {
	_, err := s.vault.ExecContext(ctx, "IF OBJECT_ID(N'"+journalTable+"', N'U') IS NULL "+
		"CREATE TABLE "+journalTable+" ("+
		"[Id] INT IDENTITY(1,1) NOT NULL CONSTRAINT [PK_Migration_Id] PRIMARY KEY, "+
		"[ScriptName] NVARCHAR(255) NOT NULL, "+
		"[Applied] DATETIME NOT NULL);")
	return err
}

func (s *SQLServer) AppliedScripts(ctx context.Context) (map[string]bool, error) {
	rows, err := s.vault.QueryContext(ctx, "SELECT [ScriptName] FROM "+journalTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// Apply runs every batch of the script and the journal insert in one
// transaction
func (s *SQLServer) Apply(ctx context.Context, script Script) error {
	batches, err := SplitBatches(script.Contents)
	if err != nil {
		return err
	}

	tx, err := s.vault.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, batch := range batches {
		if _, err := tx.ExecContext(ctx, batch); err != nil {
			tx.Rollback()
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+journalTable+" ([ScriptName], [Applied]) VALUES (@name, @applied)",
		sql.Named("name", script.Name),
		sql.Named("applied", time.Now().UTC()),
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLServer) Close() error {
	vaultErr := s.vault.Close()
	if err := s.master.Close(); err != nil {
		return err
	}
	return vaultErr
}

func quoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func quoteLiteral(value string) string {
	return "N'" + strings.ReplaceAll(value, "'", "''") + "'"
}
