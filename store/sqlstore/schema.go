package sqlstore

// schema is portable between SQLite and PostgreSQL. Amounts are decimal text,
// dates are YYYY-MM-DD and timestamps RFC 3339, so ordering on the raw column
// is chronological in both.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		annual_entitlement TEXT NOT NULL,
		accrual TEXT NOT NULL,
		carry_forward_allowed BOOLEAN NOT NULL DEFAULT FALSE,
		max_carry_forward TEXT,
		encashment_allowed BOOLEAN NOT NULL DEFAULT FALSE,
		hourly_allowed BOOLEAN NOT NULL DEFAULT FALSE,
		requires_approval BOOLEAN NOT NULL DEFAULT TRUE,
		approval_flow TEXT NOT NULL DEFAULT 'MULTI_LEVEL',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_leave_types_code ON leave_types(code)`,

	`CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		opening_balance TEXT NOT NULL,
		credited TEXT NOT NULL,
		carry_forward TEXT NOT NULL,
		pending TEXT NOT NULL,
		used TEXT NOT NULL,
		lapsed TEXT NOT NULL,
		encashed TEXT NOT NULL,
		carried_out TEXT NOT NULL DEFAULT '0',
		credited_through INTEGER NOT NULL DEFAULT 0,
		lapse_recorded BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, leave_type_id, year)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leave_balances_employee_year
		ON leave_balances(employee_id, year)`,

	`CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		day_type TEXT NOT NULL,
		total_days TEXT NOT NULL,
		total_hours TEXT,
		reason TEXT,
		status TEXT NOT NULL,
		approval_flow TEXT NOT NULL,
		manager_status TEXT NOT NULL,
		manager_id TEXT,
		manager_remarks TEXT,
		manager_acted_at TEXT,
		hr_status TEXT NOT NULL,
		hr_id TEXT,
		hr_remarks TEXT,
		hr_acted_at TEXT,
		cancel_remarks TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leave_requests_employee ON leave_requests(employee_id, start_date)`,
	`CREATE INDEX IF NOT EXISTS idx_leave_requests_status ON leave_requests(status)`,

	`CREATE TABLE IF NOT EXISTS attendance_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		standard_start TEXT NOT NULL,
		standard_end TEXT NOT NULL,
		grace_minutes_in INTEGER NOT NULL DEFAULT 0,
		grace_minutes_out INTEGER NOT NULL DEFAULT 0,
		regular_hours_per_day TEXT NOT NULL,
		auto_deduct_break BOOLEAN NOT NULL DEFAULT FALSE,
		break_minutes INTEGER,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		clock_in TEXT,
		clock_out TEXT,
		regular_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		break_duration TEXT NOT NULL,
		late_arrival BOOLEAN NOT NULL DEFAULT FALSE,
		late_minutes INTEGER NOT NULL DEFAULT 0,
		early_departure BOOLEAN NOT NULL DEFAULT FALSE,
		early_minutes INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		capture_method TEXT NOT NULL,
		approval_status TEXT NOT NULL,
		approver_id TEXT,
		approval_note TEXT,
		approved_at TEXT,
		remarks TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	// One record per employee-day.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_records_day
		ON attendance_records(employee_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_records_approval
		ON attendance_records(approval_status, date)`,

	`CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		branch_id TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_holidays_branch_date ON holidays(branch_id, date)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique ON holidays(branch_id, date, name)`,
}
