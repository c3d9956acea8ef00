package main

import (
	"fmt"
	"os"
	"os/exec"

	"papertrader/src/config"
	"papertrader/src/database"
	"papertrader/src/datamodels"
)

// Applies the atlas migrations to the postgres archive named in the config
// (CONFIG_PATH or config.local.yaml, PAPERTRADER_ARCHIVE_POSTGRES_* overrides).

func main() {
	appConfig, err := config.Load("")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if appConfig.Archive.Driver != datamodels.ArchiveDriverPostgres {
		fmt.Printf("archive.driver is %q, migrations only apply to postgres\n", appConfig.Archive.Driver)
		os.Exit(1)
	}

	uri := database.MakeConnectionString(&appConfig.Archive.Postgres)

	fmt.Printf("Executing migrations against archive at %s:%d/%s\n",
		appConfig.Archive.Postgres.Host, appConfig.Archive.Postgres.Port, appConfig.Archive.Postgres.Database)

	cmd := exec.Command("atlas", "migrate", "apply",
		"--url", uri,
		"--dir", "file://atlas/migrations",
	)
	output, err := cmd.CombinedOutput()

	fmt.Print(string(output))

	if err != nil {
		fmt.Printf("failed to run atlas migrations: %v\n", err)
		os.Exit(1)
	}
}
