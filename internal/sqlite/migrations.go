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
	`CREATE TABLE IF NOT EXISTS courses (
		id VARCHAR NOT NULL PRIMARY KEY,
		name VARCHAR NOT NULL DEFAULT "",
		code VARCHAR NOT NULL DEFAULT "",
		term VARCHAR NOT NULL DEFAULT "",
		raw_outline_sha VARCHAR NOT NULL DEFAULT "",
		created_at VARCHAR NOT NULL DEFAULT ""
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id VARCHAR NOT NULL PRIMARY KEY,
		course_id VARCHAR NOT NULL,
		title VARCHAR NOT NULL,
		type VARCHAR NOT NULL DEFAULT "other",
		start_at VARCHAR NOT NULL,
		end_at VARCHAR NULL DEFAULT NULL,
		location VARCHAR NULL DEFAULT NULL,
		notes VARCHAR NULL DEFAULT NULL,
		source_page INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (course_id) REFERENCES courses (id)
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		platform VARCHAR NOT NULL PRIMARY KEY,
		email VARCHAR NOT NULL,
		auth TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS event_links (
		app_event_id VARCHAR NOT NULL PRIMARY KEY,
		provider_id VARCHAR NOT NULL,
		course_id VARCHAR NOT NULL
	)`,
}
