package migrations

// GetSQLiteMigrations returns all SQLite migrations in order
func GetSQLiteMigrations() []Migration {
	return []Migration{
		{
			Version:     "001",
			Description: "Initial schema - messages table",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS messages (
					id TEXT PRIMARY KEY,
					kind TEXT NOT NULL,
					title TEXT NOT NULL,
					body TEXT NOT NULL DEFAULT '',
					tool_name TEXT,
					thread_id TEXT,
					thread_title TEXT,
					received_at DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_messages_received_at ON messages(received_at DESC);
			`,
			DownSQL: `
				DROP INDEX IF EXISTS idx_messages_received_at;
				DROP TABLE IF EXISTS messages;
			`,
		},
		{
			Version:     "002",
			Description: "Index messages by kind for filtered listings",
			UpSQL: `
				CREATE INDEX IF NOT EXISTS idx_messages_kind ON messages(kind, received_at DESC);
			`,
			DownSQL: `
				DROP INDEX IF EXISTS idx_messages_kind;
			`,
		},
	}
}
