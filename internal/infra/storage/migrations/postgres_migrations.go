package migrations

// GetPostgresMigrations returns all PostgreSQL migrations in order
func GetPostgresMigrations() []Migration {
	return []Migration{
		{
			Version:     "001",
			Description: "Initial schema - messages table",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS messages (
					id VARCHAR(255) PRIMARY KEY,
					kind VARCHAR(32) NOT NULL,
					title TEXT NOT NULL,
					body TEXT NOT NULL DEFAULT '',
					tool_name VARCHAR(255),
					thread_id VARCHAR(255),
					thread_title TEXT,
					received_at TIMESTAMP WITH TIME ZONE NOT NULL
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
