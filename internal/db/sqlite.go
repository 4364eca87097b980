package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reelscribe/backend/internal/db/models"
	"github.com/reelscribe/backend/internal/notify"
)

type Database struct {
	db *sql.DB
}

func NewSQLite(path string) (*Database, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	d := &Database{db: sqlDB}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		phone_carrier TEXT NOT NULL DEFAULT '',
		whatsapp TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		source_url TEXT NOT NULL,
		text TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		line_count INTEGER NOT NULL DEFAULT 0,
		sent_email INTEGER NOT NULL DEFAULT 0,
		sent_sms INTEGER NOT NULL DEFAULT 0,
		sent_whatsapp INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_user ON transcripts(user_id);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'received',
		source_url TEXT NOT NULL,
		params TEXT NOT NULL,
		result TEXT,
		error TEXT,
		error_kind TEXT,
		failed_stage TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME,
		completed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_user ON jobs(user_id);
	`
	_, err := d.db.Exec(schema)
	return err
}

// CreateUser inserts a new account with an already-hashed password.
func (d *Database) CreateUser(email, passwordHash, name string) (*models.User, error) {
	result, err := d.db.Exec(
		"INSERT INTO users (email, password, name) VALUES (?, ?, ?)",
		email, passwordHash, name,
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return d.GetUserByID(id)
}

func (d *Database) GetUserByEmail(email string) (*models.User, error) {
	u := &models.User{}
	err := d.db.QueryRow(
		"SELECT id, email, password, name, phone, phone_carrier, whatsapp, created_at FROM users WHERE email = ?",
		email,
	).Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Phone, &u.PhoneCarrier, &u.WhatsApp, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Database) GetUserByID(id int64) (*models.User, error) {
	u := &models.User{}
	err := d.db.QueryRow(
		"SELECT id, email, password, name, phone, phone_carrier, whatsapp, created_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Phone, &u.PhoneCarrier, &u.WhatsApp, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateProfile overwrites the optional profile fields.
func (d *Database) UpdateProfile(userID int64, name, phone, phoneCarrier, whatsapp string) error {
	_, err := d.db.Exec(
		"UPDATE users SET name = ?, phone = ?, phone_carrier = ?, whatsapp = ? WHERE id = ?",
		name, phone, phoneCarrier, whatsapp, userID,
	)
	return err
}

// SaveTranscript stores a finished transcript and returns its ID.
func (d *Database) SaveTranscript(userID int64, sourceURL, text, language string, lineCount int) (int64, error) {
	result, err := d.db.Exec(
		"INSERT INTO transcripts (user_id, source_url, text, language, line_count) VALUES (?, ?, ?, ?, ?)",
		userID, sourceURL, text, language, lineCount,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetTranscript returns a transcript only if it belongs to userID.
func (d *Database) GetTranscript(id, userID int64) (*models.Transcript, error) {
	t := &models.Transcript{}
	err := d.db.QueryRow(`
		SELECT id, user_id, source_url, text, language, line_count, sent_email, sent_sms, sent_whatsapp, created_at
		FROM transcripts WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&t.ID, &t.UserID, &t.SourceURL, &t.Text, &t.Language, &t.LineCount,
		&t.SentEmail, &t.SentSMS, &t.SentWhatsApp, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTranscripts returns the user's most recent transcripts, newest first.
func (d *Database) ListTranscripts(userID int64, limit int) ([]*models.Transcript, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, source_url, text, language, line_count, sent_email, sent_sms, sent_whatsapp, created_at
		FROM transcripts WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transcripts := []*models.Transcript{}
	for rows.Next() {
		t := &models.Transcript{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.SourceURL, &t.Text, &t.Language, &t.LineCount,
			&t.SentEmail, &t.SentSMS, &t.SentWhatsApp, &t.CreatedAt); err != nil {
			return nil, err
		}
		transcripts = append(transcripts, t)
	}
	return transcripts, rows.Err()
}

// MarkDelivered records a successful delivery on the transcript row.
func (d *Database) MarkDelivered(transcriptID int64, channel notify.Channel) error {
	var column string
	switch channel {
	case notify.ChannelEmail:
		column = "sent_email"
	case notify.ChannelSMS:
		column = "sent_sms"
	case notify.ChannelWhatsApp:
		column = "sent_whatsapp"
	default:
		return fmt.Errorf("unknown channel: %s", channel)
	}
	_, err := d.db.Exec("UPDATE transcripts SET "+column+" = 1 WHERE id = ?", transcriptID)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying sql.DB for use by other packages (e.g., job queue)
func (d *Database) DB() *sql.DB {
	return d.db
}
