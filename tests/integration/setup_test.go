package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"

	"github.com/dimitrije/lorewiki-api/tests/testutil"
)

var pg *testutil.Postgres

func TestMain(m *testing.M) {
	flag.Parse()
	if !testing.Short() {
		var err error
		pg, err = testutil.StartPostgres(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "integration tests will be skipped: %v\n", err)
		}
	}

	code := m.Run()
	if pg != nil {
		_ = pg.Terminate(context.Background())
	}
	os.Exit(code)
}

// setupTest returns the shared database with every table empty.
func setupTest(t *testing.T) *testutil.TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	if pg == nil {
		t.Skip("postgres is not available")
	}
	return pg.Fresh(t)
}
