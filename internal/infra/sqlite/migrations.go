package sqlite

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS bills (
    bill_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    upload_ts INTEGER,
    extracted_text TEXT NOT NULL,
    bill_type TEXT NOT NULL,
    supplier TEXT,
    amount REAL,
    bill_date TEXT,
    due_date TEXT,
    billing_period_start TEXT,
    billing_period_end TEXT,
    consumption TEXT,
    account_number TEXT,
    extraction_confidence TEXT NOT NULL,
    needs_manual_review INTEGER NOT NULL,
    extracted_date TEXT,
    extracted_amount TEXT,
    extracted_supplier TEXT,
    checksum_xxhash TEXT,
    gcs_uri TEXT
);

CREATE INDEX IF NOT EXISTS idx_bills_user_upload ON bills(user_id, upload_ts);
CREATE INDEX IF NOT EXISTS idx_bills_user_checksum ON bills(user_id, checksum_xxhash);
`

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
