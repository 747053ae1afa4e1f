package eventdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE sighting(
			id INTEGER PRIMARY KEY,
			time INT NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			x INT NOT NULL,
			y INT NOT NULL,
			width INT NOT NULL,
			height INT NOT NULL,
			frame_width INT NOT NULL,
			frame_height INT NOT NULL,
			snapshot_path TEXT
		);

		CREATE INDEX idx_sighting_time ON sighting(time);
		CREATE INDEX idx_sighting_label ON sighting(label);
	`))

	return migs
}
