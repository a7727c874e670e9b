// Command codegen generates codes from segment rules.
//
// Counters live in Redis (--redis-addr), a SQL database (--sql-driver and
// --sql-dsn) or, with neither set, in memory for the life of one command.
//
//	codegen --rules rules.json generate invoice -p dept=HR
//	codegen --rules rules.json batch invoice --count 100 --async
//	codegen serial status invoice --redis-addr localhost:6379
//	codegen serve-metrics --addr :9090
package main

import (
	"context"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/getpup/codegen/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
