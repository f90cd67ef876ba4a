package sqlite

func (s Storage) RunMigrations() error {
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		provider_id VARCHAR NOT NULL,
		user_config TEXT NOT NULL DEFAULT '{}',
		internal_config TEXT NOT NULL DEFAULT '{}',
		last_modified INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS accounts_user_provider ON accounts (user_id, provider_id)`,
}
