package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dimitrije/lorewiki-api/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Postgres is a disposable server shared by every test in one package. Tests
// run against it one at a time and start from empty tables.
type Postgres struct {
	container testcontainers.Container
	url       string
	db        *database.DB
}

type TestDB struct {
	DB *database.DB
}

// StartPostgres boots a container and applies the migrations once.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "lorewiki",
				"POSTGRES_PASSWORD": "lorewiki",
				"POSTGRES_DB":       "lorewiki_test",
			},
			// The server restarts once after initdb; the second line is the real one.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	pg := &Postgres{container: container}
	if err := pg.connect(ctx); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return pg, nil
}

func (pg *Postgres) connect(ctx context.Context) error {
	host, err := pg.container.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := pg.container.MappedPort(ctx, "5432")
	if err != nil {
		return fmt.Errorf("failed to get container port: %w", err)
	}
	pg.url = fmt.Sprintf("postgres://lorewiki:lorewiki@%s:%s/lorewiki_test?sslmode=disable", host, port.Port())

	db, err := database.New(ctx, pg.url)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	pg.db = db
	return nil
}

// URL is the connection string of the running server.
func (pg *Postgres) URL() string {
	return pg.url
}

func (pg *Postgres) Terminate(ctx context.Context) error {
	if pg.db != nil {
		pg.db.Close()
	}
	return pg.container.Terminate(ctx)
}

// Fresh empties every table and hands the shared pool to t.
func (pg *Postgres) Fresh(t *testing.T) *TestDB {
	t.Helper()
	tdb := &TestDB{DB: pg.db}
	tdb.CleanTables(t)
	return tdb
}

// CleanTables truncates every table the migrations created.
func (tdb *TestDB) CleanTables(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	rows, err := tdb.DB.Pool.Query(ctx, `SELECT tablename FROM pg_tables WHERE schemaname = 'public'`)
	if err != nil {
		t.Fatalf("failed to list tables: %v", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			t.Fatalf("failed to scan table name: %v", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	if len(tables) == 0 {
		return
	}

	if _, err := tdb.DB.Pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE"); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}
